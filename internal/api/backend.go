package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8000/api"
	DefaultRefreshPath = "/token/refresh/"
	DefaultLoginPath   = "/login/"
	requestsPerMinute  = 600
	requestTimeout     = 10 * time.Second
	maxRetries         = 3
)

// ErrStatus marks a non-2xx backend response. Use errors.As with
// *StatusError for the code and detail.
var ErrStatus = errors.New("unexpected status")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v %d", ErrStatus, e.Code)
	}
	return fmt.Sprintf("%v %d: %s", ErrStatus, e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	detail := ""
	if json.Unmarshal(body, &payload) == nil {
		detail = payload.Detail
		if detail == "" {
			detail = payload.Error
		}
	}
	if detail == "" {
		detail = truncateRunes(strings.TrimSpace(string(body)), maxDetailRunes)
	}
	return &StatusError{Code: code, Detail: detail}
}

const maxDetailRunes = 200

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// BackendConfig configures BackendClient.
type BackendConfig struct {
	BaseURL           string
	RefreshPath       string
	LoginPath         string
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        int
}

// LoginResponse is the backend's answer to a successful login.
type LoginResponse struct {
	Access             string `json:"access"`
	Refresh            string `json:"refresh"`
	SubscriptionActive *bool  `json:"subscription_active,omitempty"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// BackendClient talks to the analytics backend: token endpoints on a plain
// client, data endpoints on a client that may carry an authorizing transport.
type BackendClient struct {
	baseURL     string
	refreshPath string
	loginPath   string
	auth        *RateLimitedClient
	data        *RateLimitedClient
}

// NewBackendClient creates a backend client. Zero config fields take
// defaults; a negative MaxRetries disables retries.
func NewBackendClient(cfg BackendConfig) *BackendClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = requestTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = requestsPerMinute
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = maxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}

	client := NewRateLimitedClient(cfg.RequestsPerMinute, cfg.Timeout, cfg.MaxRetries)
	return &BackendClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		refreshPath: cfg.RefreshPath,
		loginPath:   cfg.LoginPath,
		auth:        client,
		data:        client,
	}
}

// WithDataTransport returns a copy whose data requests go through rt.
// Token endpoints keep the plain transport so a refresh never recurses.
func (b *BackendClient) WithDataTransport(rt http.RoundTripper) *BackendClient {
	cp := *b
	cp.data = b.auth.WithTransport(rt)
	return &cp
}

func (b *BackendClient) endpoint(path string) string {
	return b.baseURL + "/" + strings.TrimLeft(path, "/")
}

// postJSON POSTs in as JSON through client and decodes the reply into out.
// A nil out ignores the body.
func (b *BackendClient) postJSON(ctx context.Context, client *RateLimitedClient, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new access token.
func (b *BackendClient) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access      string `json:"access"`
		AccessToken string `json:"accessToken"`
	}
	if err := b.postJSON(ctx, b.auth, b.refreshPath, map[string]string{"refresh": refreshToken}, &resp); err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}

	access := resp.Access
	if access == "" {
		access = resp.AccessToken
	}
	if access == "" {
		return "", fmt.Errorf("refreshing token: response has no access token")
	}
	return access, nil
}

// Login authenticates with username and password.
func (b *BackendClient) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	creds := map[string]string{"username": username, "password": password}
	if err := b.postJSON(ctx, b.auth, b.loginPath, creds, &resp); err != nil {
		return LoginResponse{}, fmt.Errorf("logging in: %w", err)
	}
	if resp.Access == "" || resp.Refresh == "" {
		return LoginResponse{}, fmt.Errorf("logging in: response is missing tokens")
	}
	return resp, nil
}

// FetchJSON GETs {base}/{endpoint}/?params and decodes the body into out.
func (b *BackendClient) FetchJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	u := b.endpoint(strings.Trim(endpoint, "/")) + "/"
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := b.data.Get(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", endpoint, err)
	}
	return nil
}

// CheckSubscription asks the backend for the caller's subscription status
// ("active", "inactive", "expired", ...).
func (b *BackendClient) CheckSubscription(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	body, err := b.data.Get(ctx, b.endpoint("check-subscription"), nil)
	if err != nil {
		return "", fmt.Errorf("checking subscription: %w", err)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing subscription response: %w", err)
	}
	return resp.Status, nil
}
