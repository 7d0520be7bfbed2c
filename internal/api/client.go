package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the backend keeps rejecting credentials
// after a refresh.
var ErrUnauthorized = errors.New("unauthorized")

// RateLimitedClient wraps http.Client with rate limiting
type RateLimitedClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewRateLimitedClient creates a client limited to requestsPerMinute
func NewRateLimitedClient(requestsPerMinute int, timeout time.Duration, maxRetries int) *RateLimitedClient {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	// 600 req/min = 10 req/sec with a burst of 10 seconds worth
	burst := max(requestsPerMinute/6, 1)
	return &RateLimitedClient{
		client: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst),
		maxRetries: maxRetries,
	}
}

// WithTransport returns a client that sends through rt and shares this
// client's limiter.
func (c *RateLimitedClient) WithTransport(rt http.RoundTripper) *RateLimitedClient {
	return &RateLimitedClient{
		client: &http.Client{
			Timeout:   c.client.Timeout,
			Transport: rt,
		},
		limiter:    c.limiter,
		maxRetries: c.maxRetries,
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do executes an HTTP request with rate limiting. Idempotent requests are
// retried with backoff on network errors, 429 and 5xx.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	retries := c.maxRetries
	if !idempotent(req.Method) {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrUnauthorized) || attempt == retries {
				return nil, err
			}
			lastErr = err
			if err := sleepCtx(ctx, time.Duration(1<<attempt)*100*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		// Handle rate limit responses (429)
		if resp.StatusCode == http.StatusTooManyRequests && attempt < retries {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (429)")
			if err := sleepCtx(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return nil, err
			}
			continue
		}

		// Handle server errors with retry
		if resp.StatusCode >= 500 && attempt < retries {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if err := sleepCtx(ctx, time.Duration(1<<attempt)*100*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Get performs a rate-limited GET request
func (c *RateLimitedClient) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}
