package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rerolab/models"
	"rerolab/utils"
)

// HTTPAuthClient talks to the lab backend's /auth endpoints.
type HTTPAuthClient struct {
	BaseURL string
	HTTP    *http.Client
	Clock   utils.Clock
}

func NewHTTPAuthClient(baseURL string) *HTTPAuthClient {
	return &HTTPAuthClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Clock:   utils.RealClock(),
	}
}

// Login exchanges an identity and secret for a bearer credential. Only the
// hashed secret is sent.
func (c *HTTPAuthClient) Login(ctx context.Context, email, secret string) (models.Session, error) {
	return c.authenticate(ctx, "/auth/login", email, secret)
}

// Register creates the account and returns a session for it.
func (c *HTTPAuthClient) Register(ctx context.Context, email, secret string) (models.Session, error) {
	return c.authenticate(ctx, "/auth/register", email, secret)
}

func (c *HTTPAuthClient) authenticate(ctx context.Context, path, email, secret string) (models.Session, error) {
	body, err := json.Marshal(models.AuthRequest{Email: email, Password: HashSecret(email, secret)})
	if err != nil {
		return models.Session{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return models.Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return models.Session{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var out models.AuthResponse
	if err := decodeBody(resp, &out); err != nil {
		return models.Session{}, err
	}
	if !out.Success || out.AccessToken == "" {
		return models.Session{}, &AuthError{Status: resp.StatusCode, Message: out.Message, Err: ErrInvalidCredentials}
	}
	return c.sessionFor(email, out.AccessToken)
}

// Probe calls the protected endpoint with credential.
func (c *HTTPAuthClient) Probe(ctx context.Context, credential string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var out models.ProbeResponse
	if err := decodeBody(resp, &out); err != nil {
		return "", err
	}
	if out.Email == "" {
		return "", &AuthError{Status: resp.StatusCode, Message: "probe returned no identity", Err: ErrUnauthorized}
	}
	return out.Email, nil
}

func (c *HTTPAuthClient) sessionFor(email, credential string) (models.Session, error) {
	s := models.Session{Identity: email, Credential: credential, IssuedAt: c.Clock.Now()}
	claims, err := utils.ParseCredential(credential)
	if err != nil {
		// Opaque credentials are allowed; they just never expire locally.
		return s, nil
	}
	if claims.Subject != "" {
		s.Identity = claims.Subject
	}
	if !claims.IssuedAt.IsZero() {
		s.IssuedAt = claims.IssuedAt
	}
	s.ExpiresAt = claims.ExpiresAt
	return s, nil
}

// decodeBody maps error statuses to *AuthError and decodes JSON otherwise.
func decodeBody(resp *http.Response, v interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading auth response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &detail)
		msg := detail.Detail
		if msg == "" {
			msg = detail.Message
		}
		var sentinel error
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			sentinel = ErrUnauthorized
		case http.StatusBadRequest:
			sentinel = ErrInvalidCredentials
		}
		return &AuthError{Status: resp.StatusCode, Message: msg, Err: sentinel}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding auth response: %w", err)
	}
	return nil
}
