package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrCredentialExpired = errors.New("credential expired")

// CheckCredential inspects a bearer token without verifying its signature
// (the client does not hold the signing secret) and reports whether it is
// still usable. A token that cannot be decoded at all is treated as invalid.
func CheckCredential(token string, now time.Time) error {
	if token == "" {
		return ErrNoSession
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ErrInvalidSession
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return ErrInvalidSession
	}
	if exp != nil && !now.Before(exp.Time) {
		return ErrCredentialExpired
	}
	return nil
}
