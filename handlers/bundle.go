package handlers

import (
	"rerolab/models"

	"github.com/gin-gonic/gin"
)

// SessionSource is what the session middleware needs.
type SessionSource interface {
	Current() (models.Session, bool)
}

// HandlerBundle groups all your endpoint handlers into one struct.
type HandlerBundle struct {
	Sessions SessionSource

	// Slot endpoints
	GetSlotsHandler    gin.HandlerFunc
	RefreshHandler     gin.HandlerFunc
	BookSlotHandler    gin.HandlerFunc
	CancelSlotHandler  gin.HandlerFunc
	RetryHandler       gin.HandlerFunc
	DisconnectHandler  gin.HandlerFunc
	SlotsSocketHandler gin.HandlerFunc

	// Stream endpoints
	GetFrameHandler       gin.HandlerFunc
	GetStreamStatsHandler gin.HandlerFunc
	StartStreamHandler    gin.HandlerFunc
	StopStreamHandler     gin.HandlerFunc

	// Session endpoints
	GetSessionHandler gin.HandlerFunc
	LoginHandler      gin.HandlerFunc
	RegisterHandler   gin.HandlerFunc
	LogoutHandler     gin.HandlerFunc

	HealthHandler gin.HandlerFunc
}
