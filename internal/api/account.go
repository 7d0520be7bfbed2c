package api

import (
	"context"
	"fmt"
	"net/url"
)

// Account endpoints, relative to the base URL.
const (
	registerPath      = "/register_and_get_jwt/"
	verifyEmailPath   = "/verify-email/"
	passwordResetPath = "/reset-password/"
	cancelSubPath     = "/cancel-subscription/"
)

// Registration is a new account. The backend emails a verification link
// and the account cannot log in until it is followed.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountReply covers the backend's free-form success bodies.
type accountReply struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Status  string `json:"status"`
}

func (r accountReply) text() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Detail != "":
		return r.Detail
	}
	return r.Status
}

// Register creates an account and returns the backend's message.
func (b *BackendClient) Register(ctx context.Context, reg Registration) (string, error) {
	var reply accountReply
	if err := b.postJSON(ctx, b.auth, registerPath, reg, &reply); err != nil {
		return "", fmt.Errorf("registering %s: %w", reg.Username, err)
	}
	return reply.text(), nil
}

// VerifyEmail confirms an address with the uid and token from the
// verification link.
func (b *BackendClient) VerifyEmail(ctx context.Context, uid, token string) (string, error) {
	var reply accountReply
	body := map[string]string{"uid": uid, "token": token}
	if err := b.postJSON(ctx, b.auth, verifyEmailPath, body, &reply); err != nil {
		return "", fmt.Errorf("verifying email: %w", err)
	}
	return reply.text(), nil
}

// RequestPasswordReset asks the backend to email a reset link.
func (b *BackendClient) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var reply accountReply
	if err := b.postJSON(ctx, b.auth, passwordResetPath, map[string]string{"email": email}, &reply); err != nil {
		return "", fmt.Errorf("requesting password reset: %w", err)
	}
	return reply.text(), nil
}

// ConfirmPasswordReset sets a new password using the uid and token from the
// reset link.
func (b *BackendClient) ConfirmPasswordReset(ctx context.Context, uid, token, password string) (string, error) {
	var reply accountReply
	path := passwordResetPath + url.PathEscape(uid) + "/" + url.PathEscape(token) + "/"
	if err := b.postJSON(ctx, b.auth, path, map[string]string{"password": password}, &reply); err != nil {
		return "", fmt.Errorf("resetting password: %w", err)
	}
	return reply.text(), nil
}

// CancelSubscription schedules the caller's subscription to end. It goes
// through the data client so it carries the session's credentials.
func (b *BackendClient) CancelSubscription(ctx context.Context) (string, error) {
	var reply accountReply
	if err := b.postJSON(ctx, b.data, cancelSubPath, struct{}{}, &reply); err != nil {
		return "", fmt.Errorf("cancelling subscription: %w", err)
	}
	return reply.text(), nil
}
