package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"sports-analytics/internal/api"
	"sports-analytics/internal/logger"
)

// accountStatus is statusFor, except that a backend 400 is the caller's
// input being rejected rather than a credentials failure.
func accountStatus(err error) int {
	var se *api.StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadRequest {
		return http.StatusUnprocessableEntity
	}
	return statusFor(err)
}

func respondMessage(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register signs up a new account. The account must verify its email
// before it can log in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	if !validEmail(req.Email) {
		respondError(w, http.StatusUnprocessableEntity, "a valid email is required")
		return
	}

	msg, err := h.accounts.Register(r.Context(), api.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		logger.Warn("register %s: %v", req.Username, err)
		respondError(w, accountStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": msg, "redirect": "/login"})
}

type linkRequest struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

// VerifyEmail confirms an address from the emailed uid and token.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UID == "" || req.Token == "" {
		respondError(w, http.StatusUnprocessableEntity, "uid and token are required")
		return
	}

	msg, err := h.accounts.VerifyEmail(r.Context(), req.UID, req.Token)
	if err != nil {
		respondError(w, accountStatus(err), err.Error())
		return
	}
	respondMessage(w, msg)
}

// RequestPasswordReset has the backend email a reset link.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		respondError(w, http.StatusUnprocessableEntity, "a valid email is required")
		return
	}

	msg, err := h.accounts.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		respondError(w, accountStatus(err), err.Error())
		return
	}
	respondMessage(w, msg)
}

// ConfirmPasswordReset sets a new password from the emailed uid and token.
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UID == "" || req.Token == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "uid, token and password are required")
		return
	}

	msg, err := h.accounts.ConfirmPasswordReset(r.Context(), req.UID, req.Token, req.Password)
	if err != nil {
		respondError(w, accountStatus(err), err.Error())
		return
	}
	respondMessage(w, msg)
}

// CancelSubscription schedules the logged-in account's subscription to end.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	if !h.session.Snapshot().IsLoggedIn() {
		respondError(w, http.StatusUnauthorized, "login required")
		return
	}

	msg, err := h.accounts.CancelSubscription(r.Context())
	if err != nil {
		logger.Warn("cancel subscription: %v", err)
		respondError(w, accountStatus(err), err.Error())
		return
	}
	logger.Info("Subscription cancellation scheduled")
	respondMessage(w, msg)
}
