package handlers

import (
	"errors"
	"net/http"
	"time"

	"rerolab/services/session"
	"rerolab/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Service session.SessionService
}

func NewSessionHandler(s session.SessionService) *SessionHandler {
	return &SessionHandler{Service: s}
}

type credentialsInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	Identity      string     `json:"identity,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// GetSessionHandler reports who the client is acting as. The credential is
// never returned.
func (h *SessionHandler) GetSessionHandler(c *gin.Context) {
	sess, ok := h.Service.Current()
	resp := sessionResponse{Authenticated: ok}
	if ok {
		resp.Identity = sess.Identity
		resp.ExpiresAt = expiry(sess.ExpiresAt)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) LoginHandler(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	sess, err := h.Service.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Authenticated: true, Identity: sess.Identity, ExpiresAt: expiry(sess.ExpiresAt)})
}

func (h *SessionHandler) RegisterHandler(c *gin.Context) {
	var input credentialsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	sess, err := h.Service.Register(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Authenticated: true, Identity: sess.Identity, ExpiresAt: expiry(sess.ExpiresAt)})
}

func (h *SessionHandler) LogoutHandler(c *gin.Context) {
	if err := h.Service.Logout(c.Request.Context()); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "logout failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Authenticated: false})
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	var ae *session.AuthError
	switch {
	case errors.Is(err, session.ErrUnauthorized), errors.Is(err, session.ErrInvalidCredentials):
		msg := "invalid credentials"
		if errors.As(err, &ae) && ae.Message != "" {
			msg = ae.Message
		}
		utils.JSONError(c, http.StatusUnauthorized, msg, "")
	case errors.As(err, &ae):
		utils.JSONError(c, http.StatusBadGateway, "auth server error", ae.Error())
	default:
		utils.JSONError(c, http.StatusBadGateway, "could not reach the auth server", err.Error())
	}
}

func expiry(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
