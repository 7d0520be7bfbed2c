package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sports-analytics/internal/session"
)

func TestOpenTokenStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{TokenStore: StoreMemory}},
		{"sqlite", Config{TokenStore: StoreSQLite, DBPath: filepath.Join(t.TempDir(), "tokens.db"), StorePoll: 50 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := tt.cfg.OpenTokenStore(ctx)
			if err != nil {
				t.Fatalf("OpenTokenStore() error = %v", err)
			}
			defer closeStore()

			want := session.Tokens{Access: "a", Refresh: "r", Subscription: session.SubscriptionActive}
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Access != want.Access || got.Refresh != want.Refresh || got.Subscription != want.Subscription {
				t.Errorf("Load() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestOpenTokenStoreUnknown(t *testing.T) {
	if _, _, err := (Config{TokenStore: "etcd"}).OpenTokenStore(context.Background()); err == nil {
		t.Error("expected error for unknown store kind")
	}
}
