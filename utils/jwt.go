package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CredentialClaims are the fields of a bearer credential the client cares
// about. The lab backend signs credentials; the client never holds the key.
type CredentialClaims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var ErrMalformedCredential = errors.New("malformed credential")

// ParseCredential reads the claims of a bearer credential without verifying
// its signature. Verification is the server's job; the client only needs the
// subject and expiry to decide whether the session is still usable.
func ParseCredential(token string) (CredentialClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return CredentialClaims{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return CredentialClaims{}, ErrMalformedCredential
	}

	out := CredentialClaims{
		IssuedAt:  unixClaim(claims["iat"]),
		ExpiresAt: unixClaim(claims["exp"]),
	}
	out.Subject, _ = claims["sub"].(string)
	out.Email, _ = claims["email"].(string)
	if out.Subject == "" {
		return CredentialClaims{}, fmt.Errorf("%w: no 'sub' claim", ErrMalformedCredential)
	}
	return out, nil
}

func unixClaim(v interface{}) time.Time {
	switch n := v.(type) {
	case float64:
		return time.Unix(int64(n), 0).UTC()
	case int64:
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}

// HashToken computes a SHA-256 hash of the token string. Used as a log-safe
// fingerprint of a credential.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
