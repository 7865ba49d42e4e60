package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by CheckExpiry for tokens past their exp claim.
var ErrTokenExpired = errors.New("bearer token expired")

// CheckExpiry inspects the exp claim of a bearer token without verifying its
// signature. The photo API is the authority on validity; this only avoids
// sending a request that is certain to be refused. Opaque (non-JWT) tokens
// pass through.
func CheckExpiry(token string, now time.Time, leeway time.Duration) error {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	if now.After(claims.ExpiresAt.Time.Add(leeway)) {
		return ErrTokenExpired
	}
	return nil
}
