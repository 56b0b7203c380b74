package session

import (
	"context"

	"rerolab/models"
)

// AuthService is the lab backend's authentication boundary.
type AuthService interface {
	Login(ctx context.Context, email, secret string) (models.Session, error)
	Register(ctx context.Context, email, secret string) (models.Session, error)
	// Probe checks a credential against the protected endpoint and returns
	// the identity the server sees.
	Probe(ctx context.Context, credential string) (string, error)
}

// CredentialStore keeps the last good session across restarts.
type CredentialStore interface {
	Load(ctx context.Context) (models.Session, error)
	Save(ctx context.Context, s models.Session) error
	Delete(ctx context.Context) error
}

// SessionService owns the current session and its lifecycle.
type SessionService interface {
	Current() (models.Session, bool)
	Login(ctx context.Context, email, secret string) (models.Session, error)
	Register(ctx context.Context, email, secret string) (models.Session, error)
	Logout(ctx context.Context) error
	Bootstrap(ctx context.Context, email, secret string) (models.Session, error)
}
