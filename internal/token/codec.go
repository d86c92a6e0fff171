// ABOUTME: Unverified JWT claim decoding for local token expiry checks
// ABOUTME: Never validates signatures; the backend stays the source of truth

package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec errors
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrMissingExpiry  = errors.New("missing exp claim")
)

// Claims holds the decoded hints used for local expiry decisions.
// These are read from the token payload without signature verification
// and must never be treated as proof of authorization.
type Claims struct {
	ExpiresAt time.Time
	Subject   string
}

// Decode splits the token, base64-decodes the payload segment and extracts
// the exp and sub claims. Any malformed segment, invalid base64, invalid
// JSON, or missing exp claim is an error: callers treat decode failure as
// "already expired" (fail-closed).
func Decode(tokenString string) (Claims, error) {
	parser := jwt.NewParser()

	parsed, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp == nil {
		return Claims{}, ErrMissingExpiry
	}

	// Subject is optional; only exp gates expiry decisions.
	sub, _ := parsed.Claims.GetSubject()

	return Claims{ExpiresAt: exp.Time, Subject: sub}, nil
}

// IsExpired reports whether the token should be treated as expired at the
// given instant. Decode failures count as expired; a token whose exp equals
// now is expired.
func IsExpired(tokenString string, now time.Time) bool {
	claims, err := Decode(tokenString)
	if err != nil {
		return true
	}
	return !claims.ExpiresAt.After(now)
}
