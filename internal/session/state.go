// Package session decides whether the current visitor is signed in and
// subscribed, keeps the access token fresh, and gates routes on the result.
package session

import (
	"errors"
	"strings"
	"time"

	"sports-analytics/internal/api"
)

var (
	// ErrNoRefreshToken is returned by Refresh when there is nothing to refresh with.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrUnauthorized is returned by the authorizing transport when a request
	// is still rejected after a refresh.
	ErrUnauthorized = api.ErrUnauthorized
)

// State is the coarse authentication state of the session.
type State int

const (
	Loading State = iota
	Anonymous
	AuthenticatedActive
	AuthenticatedInactive
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Anonymous:
		return "anonymous"
	case AuthenticatedActive:
		return "authenticated_active"
	case AuthenticatedInactive:
		return "authenticated_inactive"
	}
	return "unknown"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Subscription is the cached subscription status carried by the session.
type Subscription string

const (
	SubscriptionActive   Subscription = "active"
	SubscriptionInactive Subscription = "inactive"
	SubscriptionUnknown  Subscription = "unknown"
)

// ParseSubscription normalises the backend's subscription_status values.
// "trialing" counts as active; "expired", "canceled" and "past_due" as inactive.
func ParseSubscription(raw string) Subscription {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "trialing", "trial":
		return SubscriptionActive
	case "inactive", "expired", "canceled", "cancelled", "past_due", "unpaid":
		return SubscriptionInactive
	}
	return SubscriptionUnknown
}

// Known reports whether s is active or inactive.
func (s Subscription) Known() bool {
	return s == SubscriptionActive || s == SubscriptionInactive
}

// Snapshot is a consistent view of the session at one moment.
type Snapshot struct {
	State        State        `json:"state"`
	Subscription Subscription `json:"subscription"`
	AccessToken  string       `json:"-"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
}

// IsLoggedIn reports whether the session holds a usable access token.
func (s Snapshot) IsLoggedIn() bool {
	return s.State == AuthenticatedActive || s.State == AuthenticatedInactive
}

// IsLoading reports whether the initial evaluation is still running.
func (s Snapshot) IsLoading() bool {
	return s.State == Loading
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.State == o.State &&
		s.Subscription == o.Subscription &&
		s.AccessToken == o.AccessToken &&
		s.ExpiresAt.Equal(o.ExpiresAt)
}

func anonymousSnapshot() Snapshot {
	return Snapshot{State: Anonymous, Subscription: SubscriptionUnknown}
}

// resolveSubscription prefers the token claim, then the cached flag.
func resolveSubscription(claim, cached Subscription) Subscription {
	if claim.Known() {
		return claim
	}
	if cached.Known() {
		return cached
	}
	return SubscriptionUnknown
}

// stateFor maps a subscription to an authenticated state. Unknown admits.
func stateFor(sub Subscription) State {
	if sub == SubscriptionInactive {
		return AuthenticatedInactive
	}
	return AuthenticatedActive
}
