package middleware

import (
	"net/http"

	"rerolab/models"

	"github.com/gin-gonic/gin"
)

// SessionSource yields the current lab session.
type SessionSource interface {
	Current() (models.Session, bool)
}

// RequireSession rejects requests while the client has no valid session and
// exposes the acting identity to handlers as "identity".
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := sessions.Current()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in to the lab"})
			return
		}
		c.Set("identity", sess.Identity)
		c.Next()
	}
}
