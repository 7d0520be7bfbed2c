package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sports-analytics/internal/api"
)

func TestStartResolvesState(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		tokens    func(t *testing.T) Tokens
		wantState State
		wantSub   Subscription
	}{
		{
			name:      "No tokens",
			tokens:    func(t *testing.T) Tokens { return Tokens{} },
			wantState: Anonymous,
			wantSub:   SubscriptionUnknown,
		},
		{
			name: "Active claim",
			tokens: func(t *testing.T) Tokens {
				return Tokens{Access: mintToken(t, now.Add(time.Hour), "active"), Refresh: "r"}
			},
			wantState: AuthenticatedActive,
			wantSub:   SubscriptionActive,
		},
		{
			name: "Expired subscription claim",
			tokens: func(t *testing.T) Tokens {
				return Tokens{Access: mintToken(t, now.Add(time.Hour), "expired"), Refresh: "r"}
			},
			wantState: AuthenticatedInactive,
			wantSub:   SubscriptionInactive,
		},
		{
			name: "Claim missing, cached flag inactive",
			tokens: func(t *testing.T) Tokens {
				return Tokens{Access: mintToken(t, now.Add(time.Hour), ""), Refresh: "r", Subscription: SubscriptionInactive}
			},
			wantState: AuthenticatedInactive,
			wantSub:   SubscriptionInactive,
		},
		{
			name: "Claim beats cached flag",
			tokens: func(t *testing.T) Tokens {
				return Tokens{Access: mintToken(t, now.Add(time.Hour), "active"), Refresh: "r", Subscription: SubscriptionInactive}
			},
			wantState: AuthenticatedActive,
			wantSub:   SubscriptionActive,
		},
		{
			name: "Nothing known admits",
			tokens: func(t *testing.T) Tokens {
				return Tokens{Access: mintToken(t, now.Add(time.Hour), ""), Refresh: "r"}
			},
			wantState: AuthenticatedActive,
			wantSub:   SubscriptionUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			c := NewController(NewMemoryStore(tt.tokens(t)), backend, Options{})
			defer c.Close()

			if err := c.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			snap := c.Snapshot()
			if snap.State != tt.wantState {
				t.Errorf("State = %v, want %v", snap.State, tt.wantState)
			}
			if snap.Subscription != tt.wantSub {
				t.Errorf("Subscription = %v, want %v", snap.Subscription, tt.wantSub)
			}
			if backend.RefreshCalls() != 0 {
				t.Errorf("made %d refresh calls, want 0", backend.RefreshCalls())
			}
		})
	}
}

func TestStartRefreshesExpiredToken(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(time.Hour), "active")
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			if refresh != "r-1" {
				t.Errorf("refresh token = %q, want r-1", refresh)
			}
			return fresh, nil
		},
	}
	store := NewMemoryStore(Tokens{
		Access:  mintToken(t, time.Now().Add(-time.Minute), "active"),
		Refresh: "r-1",
	})

	c := NewController(store, backend, Options{})
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	snap := c.Snapshot()
	if snap.State != AuthenticatedActive || snap.AccessToken != fresh {
		t.Errorf("snapshot = %v with token %q, want authenticated with fresh token", snap.State, snap.AccessToken)
	}
	if backend.RefreshCalls() != 1 {
		t.Errorf("refresh calls = %d, want 1", backend.RefreshCalls())
	}

	stored, _ := store.Load(context.Background())
	if stored.Access != fresh || stored.Refresh != "r-1" {
		t.Errorf("stored tokens = %+v, want fresh access and original refresh", stored)
	}
	if stored.Subscription != SubscriptionActive {
		t.Errorf("cached subscription = %q, want active", stored.Subscription)
	}
}

func TestStartRefreshesWhenOnlyRefreshTokenPresent(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(time.Hour), "")
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) { return fresh, nil },
	}
	c := NewController(NewMemoryStore(Tokens{Refresh: "r", Subscription: SubscriptionInactive}), backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	snap := c.Snapshot()
	if snap.State != AuthenticatedInactive {
		t.Errorf("State = %v, want authenticated_inactive from cached flag", snap.State)
	}
}

func TestStartExpiredWithoutRefreshToken(t *testing.T) {
	backend := &fakeBackend{}
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(-time.Minute), "active")})

	c := NewController(store, backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	if got := c.Snapshot().State; got != Anonymous {
		t.Errorf("State = %v, want anonymous", got)
	}
	if backend.RefreshCalls() != 0 {
		t.Errorf("refresh calls = %d, want 0", backend.RefreshCalls())
	}
	if stored, _ := store.Load(context.Background()); !stored.Empty() {
		t.Errorf("store not cleared: %+v", stored)
	}
}

func TestStartRefreshFailureClearsSession(t *testing.T) {
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			return "", &api.StatusError{Code: 401, Detail: "Token is blacklisted"}
		},
	}
	store := NewMemoryStore(Tokens{Access: "not-a-jwt", Refresh: "r"})

	c := NewController(store, backend, Options{})
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got := c.Snapshot().State; got != Anonymous {
		t.Errorf("State = %v, want anonymous", got)
	}
	if stored, _ := store.Load(context.Background()); !stored.Empty() {
		t.Errorf("store not cleared: %+v", stored)
	}
}

func TestRefreshIsSingleFlight(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(time.Hour), "active")
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			once.Do(func() { close(entered) })
			<-release
			return fresh, nil
		},
	}
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Refresh: "r"})
	c := NewController(store, backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			errs <- err
		}()
	}

	<-entered
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Refresh() error = %v", err)
		}
	}
	if got := backend.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if c.Snapshot().AccessToken != fresh {
		t.Error("snapshot does not carry the refreshed token")
	}
}

func TestRefreshSurvivesCallerCancellation(t *testing.T) {
	fresh := mintToken(t, time.Now().Add(time.Hour), "active")
	release := make(chan struct{})
	backendErr := make(chan error, 1)

	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			<-release
			backendErr <- ctx.Err()
			return fresh, nil
		},
	}
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Refresh: "r"})
	c := NewController(store, backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)
	<-done

	if err := <-backendErr; err != nil {
		t.Errorf("backend saw cancelled context: %v", err)
	}
	if c.Snapshot().AccessToken != fresh {
		t.Error("refresh result was dropped after caller cancellation")
	}
}

// fixedClock returns a clock placed so that a token expiring at exp is due
// for proactive refresh after delay.
func fixedClock(exp time.Time, lead, delay time.Duration) func() time.Time {
	now := exp.Add(-lead - delay)
	return func() time.Time { return now }
}

func TestProactiveRefresh(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	fresh := mintToken(t, exp.Add(time.Hour), "active")
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) { return fresh, nil },
	}
	store := NewMemoryStore(Tokens{Access: mintToken(t, exp, "active"), Refresh: "r"})

	c := NewController(store, backend, Options{
		RefreshLead: time.Minute,
		Now:         fixedClock(exp, time.Minute, 100*time.Millisecond),
	})
	defer c.Close()

	refreshed := make(chan Snapshot, 4)
	cancel := c.Subscribe(func(s Snapshot) {
		if s.AccessToken == fresh {
			refreshed <- s
		}
	})
	defer cancel()

	c.Start(context.Background())
	if backend.RefreshCalls() != 0 {
		t.Fatalf("refreshed before the timer fired")
	}

	select {
	case s := <-refreshed:
		if s.State != AuthenticatedActive {
			t.Errorf("State after proactive refresh = %v", s.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("proactive refresh did not happen")
	}

	// The new token is due an hour later; nothing else fires now.
	time.Sleep(150 * time.Millisecond)
	if got := backend.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestLogoutCancelsTimer(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			return mintToken(t, exp.Add(time.Hour), "active"), nil
		},
	}
	store := NewMemoryStore(Tokens{Access: mintToken(t, exp, "active"), Refresh: "r"})
	c := NewController(store, backend, Options{
		RefreshLead: time.Minute,
		Now:         fixedClock(exp, time.Minute, 150*time.Millisecond),
	})
	defer c.Close()
	c.Start(context.Background())

	if loc := c.Logout(context.Background()); loc != "/login" {
		t.Errorf("Logout() = %q, want /login", loc)
	}
	time.Sleep(400 * time.Millisecond)

	if got := backend.RefreshCalls(); got != 0 {
		t.Errorf("refresh calls after logout = %d, want 0", got)
	}
	if c.Snapshot().State != Anonymous {
		t.Errorf("State after logout = %v", c.Snapshot().State)
	}
}

func TestTimerRearmsOnlyOnTokenChange(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := mintToken(t, exp, "active")
	store := NewMemoryStore(Tokens{Access: token, Refresh: "r"})
	c := NewController(store, &fakeBackend{}, Options{
		RefreshLead: time.Minute,
		Now:         fixedClock(exp, time.Minute, time.Hour),
	})
	defer c.Close()
	c.Start(context.Background())

	c.mu.Lock()
	first := c.timer
	c.mu.Unlock()

	// Same token written by someone else: the timer stays.
	store.Save(context.Background(), Tokens{Access: token, Refresh: "r", Subscription: SubscriptionActive, Writer: "other"})
	c.mu.Lock()
	same := c.timer
	c.mu.Unlock()
	if same != first {
		t.Error("timer re-armed for an unchanged token")
	}

	// New token: the old timer is replaced.
	store.Save(context.Background(), Tokens{Access: mintToken(t, exp.Add(time.Minute), "active"), Refresh: "r", Writer: "other"})
	c.mu.Lock()
	replaced := c.timer
	c.mu.Unlock()
	if replaced == first || replaced == nil {
		t.Error("timer not re-armed for a new token")
	}
}

func TestLogin(t *testing.T) {
	access := mintToken(t, time.Now().Add(time.Hour), "")
	inactive := false
	backend := &fakeBackend{
		loginFn: func(ctx context.Context, username, password string) (api.LoginResponse, error) {
			if password != "hunter2" {
				return api.LoginResponse{}, &api.StatusError{Code: 400, Detail: "Invalid credentials"}
			}
			return api.LoginResponse{Access: access, Refresh: "r", SubscriptionActive: &inactive}, nil
		},
	}
	store := NewMemoryStore(Tokens{})
	c := NewController(store, backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	if _, err := c.Login(context.Background(), "sam", "nope"); !errors.Is(err, api.ErrStatus) {
		t.Errorf("Login() with bad password error = %v", err)
	}
	if c.Snapshot().State != Anonymous {
		t.Errorf("failed login changed state to %v", c.Snapshot().State)
	}

	snap, err := c.Login(context.Background(), "sam", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if snap.State != AuthenticatedInactive {
		t.Errorf("State = %v, want authenticated_inactive", snap.State)
	}

	stored, _ := store.Load(context.Background())
	if stored.Access != access || stored.Refresh != "r" || stored.Subscription != SubscriptionInactive {
		t.Errorf("stored tokens = %+v", stored)
	}
	if stored.Writer != c.ID() {
		t.Errorf("Writer = %q, want controller ID", stored.Writer)
	}
}

func TestExternalStoreChanges(t *testing.T) {
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Refresh: "r"})
	c := NewController(store, &fakeBackend{}, Options{})
	defer c.Close()
	c.Start(context.Background())

	if c.Snapshot().State != AuthenticatedActive {
		t.Fatalf("initial State = %v", c.Snapshot().State)
	}

	// Another tab logs out.
	store.Clear(context.Background())
	if c.Snapshot().State != Anonymous {
		t.Errorf("State after external clear = %v, want anonymous", c.Snapshot().State)
	}

	// Another tab logs in with an inactive subscription.
	other := mintToken(t, time.Now().Add(time.Hour), "inactive")
	store.Save(context.Background(), Tokens{Access: other, Refresh: "r2", Writer: "other-instance"})
	snap := c.Snapshot()
	if snap.State != AuthenticatedInactive || snap.AccessToken != other {
		t.Errorf("State after external login = %v, token match %v", snap.State, snap.AccessToken == other)
	}
}

func TestSubscribeNotifiesTransitions(t *testing.T) {
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Refresh: "r"})
	c := NewController(store, &fakeBackend{}, Options{})
	defer c.Close()

	var mu sync.Mutex
	var states []State
	cancel := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	c.Start(context.Background())
	c.Logout(context.Background())
	cancel()
	store.Save(context.Background(), Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Writer: "x"})

	mu.Lock()
	defer mu.Unlock()
	want := []State{AuthenticatedActive, Anonymous}
	if len(states) != len(want) {
		t.Fatalf("notified states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestAdmitWhileLoading(t *testing.T) {
	c := NewController(NewMemoryStore(Tokens{}), &fakeBackend{}, Options{})
	defer c.Close()

	if d := c.Admit("/expected-value"); d.Verdict != Wait {
		t.Errorf("Admit before Start = %v, want wait", d.Verdict)
	}
	if d := c.Admit("/login"); d.Verdict != Wait {
		t.Errorf("Admit public path before Start = %v, want wait", d.Verdict)
	}

	c.Start(context.Background())
	if d := c.Admit("/expected-value"); d.Verdict != Redirect || d.Location != "/login" {
		t.Errorf("Admit after Start = %+v, want redirect to /login", d)
	}
}

func TestParseAccessClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	claims, err := ParseAccessClaims(mintToken(t, exp, "trialing"))
	if err != nil {
		t.Fatalf("ParseAccessClaims() error = %v", err)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
	if claims.Subscription != SubscriptionActive {
		t.Errorf("Subscription = %v, want active", claims.Subscription)
	}

	// Expired tokens still decode; the controller decides what expiry means.
	if _, err := ParseAccessClaims(mintToken(t, time.Now().Add(-time.Hour), "")); err != nil {
		t.Errorf("expired token failed to decode: %v", err)
	}

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := ParseAccessClaims(bad); err == nil {
			t.Errorf("ParseAccessClaims(%q) expected error", bad)
		}
	}
}

func TestLogoutDuringRefreshStaysLoggedOut(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			close(entered)
			<-release
			return mintToken(t, time.Now().Add(time.Hour), "active"), nil
		},
	}
	store := NewMemoryStore(Tokens{Access: mintToken(t, time.Now().Add(time.Hour), "active"), Refresh: "r-1"})
	c := NewController(store, backend, Options{})
	defer c.Close()
	c.Start(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background())
		errc <- err
	}()

	<-entered
	c.Logout(context.Background())
	close(release)

	if err := <-errc; !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Refresh() error = %v, want ErrUnauthorized", err)
	}
	if got := c.Snapshot().State; got != Anonymous {
		t.Errorf("State = %v, want anonymous", got)
	}
	if stored, _ := store.Load(context.Background()); !stored.Empty() {
		t.Errorf("refresh wrote tokens back after logout: %+v", stored)
	}
}

func TestRefreshTimeoutClearsStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	expired := mintToken(t, time.Now().Add(-time.Minute), "active")
	if err := store.Save(context.Background(), Tokens{Access: expired, Refresh: "r-1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	c := NewController(store, backend, Options{RequestTimeout: 50 * time.Millisecond})
	defer c.Close()
	c.Start(context.Background())

	if got := c.Snapshot().State; got != Anonymous {
		t.Errorf("State = %v, want anonymous", got)
	}
	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !stored.Empty() {
		t.Errorf("store still holds tokens after timed-out refresh: %+v", stored)
	}
}

func TestProactiveRefreshRearmsForSameToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	old := mintToken(t, exp, "active")
	fresh := mintToken(t, exp.Add(time.Hour), "active")

	var mu sync.Mutex
	calls := 0
	backend := &fakeBackend{
		refreshFn: func(ctx context.Context, refresh string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return old, nil
			}
			return fresh, nil
		},
	}
	store := NewMemoryStore(Tokens{Access: old, Refresh: "r"})
	c := NewController(store, backend, Options{
		RefreshLead: time.Minute,
		RetryDelay:  50 * time.Millisecond,
		Now:         fixedClock(exp, time.Minute, 20*time.Millisecond),
	})
	defer c.Close()
	c.Start(context.Background())

	if !waitFor(t, 2*time.Second, func() bool { return c.Snapshot().AccessToken == fresh }) {
		t.Fatalf("no second proactive refresh; refresh calls = %d", backend.RefreshCalls())
	}
	if got := backend.RefreshCalls(); got != 2 {
		t.Errorf("refresh calls = %d, want 2", got)
	}
}
