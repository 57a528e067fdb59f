package tokensource

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultRefreshPath is the refresh endpoint relative to the API base URL.
	DefaultRefreshPath = "/Auth/refresh-token"

	// DefaultTimeout bounds a single refresh round trip.
	DefaultTimeout = 30 * time.Second
)

// refreshResponse is the body returned by the refresh endpoint.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Expiry reports the expiration time carried in a JWT access token.
// The signature is not verified; the backend remains the authority on validity.
// Returns false for opaque tokens or tokens without an exp claim.
func Expiry(accessToken string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
