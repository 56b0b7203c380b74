package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every error answered by the local API.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// requestLogger prefers the request-scoped logger set by the request logging
// middleware.
func requestLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return GetLogger()
}

// ErrorHandler turns a panic in a handler into a 500 instead of dropping the
// connection.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestLogger(c).Error("Unhandled panic",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path))

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "The lab client hit an unexpected error.",
				})
			}
		}()
		c.Next()
	}
}

// JSONError answers with status and a standard error body. Client mistakes
// log at debug; everything from 500 up logs as a warning.
func JSONError(c *gin.Context, status int, message string, details string) {
	log := requestLogger(c)
	if status >= http.StatusInternalServerError {
		log.Warn(message, zap.Int("status", status), zap.String("details", details))
	} else {
		log.Debug(message, zap.Int("status", status), zap.String("details", details))
	}
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}
