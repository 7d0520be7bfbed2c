package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"sports-analytics/internal/api"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/session"
)

var endpointName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type sessionResponse struct {
	State        session.State        `json:"state"`
	Subscription session.Subscription `json:"subscription"`
	LoggedIn     bool                 `json:"is_logged_in"`
	Loading      bool                 `json:"is_loading"`
	ExpiresAt    time.Time            `json:"expires_at,omitzero"`
}

func newSessionResponse(s session.Snapshot) sessionResponse {
	return sessionResponse{
		State:        s.State,
		Subscription: s.Subscription,
		LoggedIn:     s.IsLoggedIn(),
		Loading:      s.IsLoading(),
		ExpiresAt:    s.ExpiresAt,
	}
}

// statusFor maps a backend or session error onto the status we answer with.
func statusFor(err error) int {
	var se *api.StatusError
	switch {
	case errors.Is(err, session.ErrUnauthorized), errors.Is(err, session.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.As(err, &se):
		if se.Code == http.StatusBadRequest || se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden {
			return http.StatusUnauthorized
		}
		if se.Code == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusBadGateway
}

// GetSession returns the current session state. Tokens are never exposed.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newSessionResponse(h.session.Snapshot()))
}

// Admit answers whether the site path in ?path= may be shown now.
func (h *Handler) Admit(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	respondJSON(w, http.StatusOK, h.session.Admit(path))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates against the backend and stores the session tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	snap, err := h.session.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.Warn("login failed: %v", err)
		respondError(w, statusFor(err), "login failed")
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(snap))
}

// Logout clears the session and says where to send the visitor.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"redirect": h.session.Logout(r.Context())})
}

// Refresh exchanges the refresh token for a new access token now.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.session.Refresh(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(snap))
}

// Subscription asks the backend for the live subscription status. Any
// logged-in visitor may call it, so a lapsed subscriber can see why.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	if !h.session.Snapshot().IsLoggedIn() {
		respondError(w, http.StatusUnauthorized, "login required")
		return
	}
	status, err := h.data.CheckSubscription(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"active": session.ParseSubscription(status) == session.SubscriptionActive,
	})
}

// FetchData proxies one backend data endpoint (games, odds, props...) with
// the session's credentials, passing the query string through.
func (h *Handler) FetchData(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	if !endpointName.MatchString(endpoint) {
		respondError(w, http.StatusBadRequest, "invalid endpoint")
		return
	}

	var out json.RawMessage
	if err := h.data.FetchJSON(r.Context(), endpoint, r.URL.Query(), &out); err != nil {
		logger.Warn("data %s: %v", endpoint, err)
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}
