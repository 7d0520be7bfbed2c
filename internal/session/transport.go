package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport returns a RoundTripper that sends the session's access token as
// a Bearer credential. A 401 triggers one refresh and one retry; a second
// 401 ends the session and fails with ErrUnauthorized.
func (c *Controller) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authTransport{c: c, base: base}
}

type authTransport struct {
	c    *Controller
	base http.RoundTripper
}

func (t *authTransport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(out)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	token := t.c.Snapshot().AccessToken

	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if !replayable(req) {
		return resp, nil
	}
	discard(resp)

	// Another request may already have refreshed past the token we sent.
	fresh := t.c.Snapshot().AccessToken
	if fresh == "" || fresh == token {
		fresh, err = t.c.refresh(ctx, "reactive")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	retry := req
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		retry = req.Clone(ctx)
		retry.Body = body
	}

	resp, err = t.send(retry, fresh)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		t.c.clear(context.WithoutCancel(ctx))
		return nil, ErrUnauthorized
	}
	return resp, nil
}
