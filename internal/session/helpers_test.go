package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sports-analytics/internal/api"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, exp time.Time, subscription string) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": exp.Unix(), "user_id": 42}
	if subscription != "" {
		claims["subscription_status"] = subscription
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

type fakeBackend struct {
	mu           sync.Mutex
	refreshCalls int
	loginCalls   int
	refreshFn    func(ctx context.Context, refresh string) (string, error)
	loginFn      func(ctx context.Context, username, password string) (api.LoginResponse, error)
}

func (f *fakeBackend) Refresh(ctx context.Context, refresh string) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("refresh not configured")
	}
	return fn(ctx, refresh)
}

func (f *fakeBackend) Login(ctx context.Context, username, password string) (api.LoginResponse, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	if fn == nil {
		return api.LoginResponse{}, errors.New("login not configured")
	}
	return fn(ctx, username, password)
}

func (f *fakeBackend) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
