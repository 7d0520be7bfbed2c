package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the access-token claims the gate reads.
type AccessClaims struct {
	ExpiresAt    time.Time
	Subscription Subscription
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// ParseAccessClaims decodes exp and subscription_status without verifying
// the signature; the backend verifies on every request. A token without exp
// is rejected.
func ParseAccessClaims(token string) (AccessClaims, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("decoding access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return AccessClaims{}, fmt.Errorf("decoding access token: missing exp claim")
	}

	return AccessClaims{
		ExpiresAt:    claims.ExpiresAt.Time,
		Subscription: ParseSubscription(claims.SubscriptionStatus),
	}, nil
}
