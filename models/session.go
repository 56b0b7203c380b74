package models

import "time"

// Session is the authenticated identity and the bearer credential stamped on
// outgoing mutations. It is produced by the auth collaborator and read-only
// to the channel components.
type Session struct {
	Identity   string    `json:"identity"`
	Credential string    `json:"credential"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the session carries a credential that has not expired.
func (s Session) Valid(now time.Time) bool {
	if s.Identity == "" || s.Credential == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// AuthRequest is the body of the login and register endpoints. Password holds
// the one-way hash of the secret, never the secret itself.
type AuthRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by the login and register endpoints.
type AuthResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

// ProbeResponse is returned by the protected probe endpoint.
type ProbeResponse struct {
	Email string `json:"email"`
}
