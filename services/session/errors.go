package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrUnauthorized       = errors.New("session: credential rejected")
	ErrNoStoredSession    = errors.New("session: no stored session")
	ErrNotAuthenticated   = errors.New("session: not authenticated")
)

// AuthError is a non-success answer from the auth endpoints.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: status %d", e.Status)
	}
	return fmt.Sprintf("auth: status %d: %s", e.Status, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }
