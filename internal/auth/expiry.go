package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt decodes the expiry claim from a self-describing access
// token without verifying its signature. The result is non-authoritative
// and is used only to decide whether to refresh proactively.
//
// Malformed tokens and tokens without an exp claim yield ok=false, never
// an error: an unreadable expiry means "not expiring soon" and the
// reactive 401 path handles the rest.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// ExpiresWithin reports whether the token's expiry falls inside the
// buffer from now. Unknown expiry reports false.
func ExpiresWithin(token string, buffer time.Duration, now time.Time) bool {
	at, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return !at.After(now.Add(buffer))
}
