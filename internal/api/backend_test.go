package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackendClient(BackendConfig{
		BaseURL:           srv.URL + "/api",
		Timeout:           2 * time.Second,
		RequestsPerMinute: 6000,
		MaxRetries:        -1,
	})
}

func TestRefresh(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/token/refresh/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["refresh"] != "r-1" {
			t.Errorf("refresh = %q, want r-1", body["refresh"])
		}
		json.NewEncoder(w).Encode(map[string]string{"access": "a-2"})
	})

	access, err := client.Refresh(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if access != "a-2" {
		t.Errorf("Refresh() = %q, want a-2", access)
	}
}

func TestRefreshAcceptsAccessTokenKey(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "a-3"})
	})

	access, err := client.Refresh(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if access != "a-3" {
		t.Errorf("Refresh() = %q, want a-3", access)
	}
}

func TestRefreshRejected(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Token is invalid or expired"})
	})

	_, err := client.Refresh(context.Background(), "stale")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("Refresh() error = %v, want ErrStatus", err)
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Refresh() error %v is not a *StatusError", err)
	}
	if se.Code != http.StatusUnauthorized || se.Detail != "Token is invalid or expired" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestLogin(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login/" {
			t.Errorf("path = %s, want /api/login/", r.URL.Path)
		}
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "sam" || creds["password"] != "hunter2" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access":              "a-1",
			"refresh":             "r-1",
			"subscription_active": true,
		})
	})

	resp, err := client.Login(context.Background(), "sam", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Access != "a-1" || resp.Refresh != "r-1" {
		t.Errorf("Login() tokens = %q/%q", resp.Access, resp.Refresh)
	}
	if resp.SubscriptionActive == nil || !*resp.SubscriptionActive {
		t.Errorf("SubscriptionActive = %v, want true", resp.SubscriptionActive)
	}

	_, err = client.Login(context.Background(), "sam", "wrong")
	var se *StatusError
	if !errors.As(err, &se) || se.Detail != "Invalid credentials" {
		t.Errorf("Login() with bad password error = %v, want detail", err)
	}
}

func TestFetchJSON(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/games/" {
			t.Errorf("path = %s, want /api/games/", r.URL.Path)
		}
		if r.URL.Query().Get("sport") != "nba" {
			t.Errorf("sport = %q, want nba", r.URL.Query().Get("sport"))
		}
		w.Write([]byte(`[{"game_id":"g1"},{"game_id":"g2"}]`))
	})

	var games []struct {
		GameID string `json:"game_id"`
	}
	if err := client.FetchJSON(context.Background(), "games", url.Values{"sport": {"nba"}}, &games); err != nil {
		t.Fatalf("FetchJSON() error = %v", err)
	}
	if len(games) != 2 || games[1].GameID != "g2" {
		t.Errorf("FetchJSON() = %+v", games)
	}
}

func TestFetchJSONStatus(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})

	var out map[string]interface{}
	err := client.FetchJSON(context.Background(), "missing", nil, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("FetchJSON() error = %v, want 404 StatusError", err)
	}
}

type headerTransport struct {
	base http.RoundTripper
}

func (h headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer test")
	return h.base.RoundTrip(req)
}

func TestWithDataTransport(t *testing.T) {
	var dataAuth, refreshAuth string
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/refresh/":
			refreshAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"access":"a"}`))
		case "/api/check-subscription":
			dataAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"status":"inactive"}`))
		}
	})
	client = client.WithDataTransport(headerTransport{base: http.DefaultTransport})

	status, err := client.CheckSubscription(context.Background())
	if err != nil {
		t.Fatalf("CheckSubscription() error = %v", err)
	}
	if status != "inactive" {
		t.Errorf("status = %q, want inactive", status)
	}
	if _, err := client.Refresh(context.Background(), "r"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if dataAuth != "Bearer test" {
		t.Errorf("data request Authorization = %q", dataAuth)
	}
	if refreshAuth != "" {
		t.Errorf("refresh request carried Authorization %q", refreshAuth)
	}
}

func TestDoRetriesIdempotentRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewRateLimitedClient(6000, time.Second, 3)
	body, err := client.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Errorf("Get() = %q after %d calls, want ok after 3", body, calls.Load())
	}
}

func TestDoDoesNotRetryPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRateLimitedClient(6000, time.Second, 3)
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || calls.Load() != 1 {
		t.Errorf("POST got %d after %d calls, want 500 after 1", resp.StatusCode, calls.Load())
	}
}

func TestDoHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewRateLimitedClient(6000, time.Second, 5)
	start := time.Now()
	if _, err := client.Get(ctx, srv.URL, nil); err == nil {
		t.Fatal("Get() expected error after context deadline")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Get() took %v, want prompt return on cancellation", time.Since(start))
	}
}
