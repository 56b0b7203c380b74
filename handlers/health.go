package handlers

import (
	"net/http"

	"rerolab/models"
	"rerolab/utils"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	Booking ChannelControl
	Stream  FrameSource
}

// GetHealthHandler reports both channels and the last dependency check. The
// endpoint always answers 200; a disconnected lab is not an unhealthy client.
func (h *HealthHandler) GetHealthHandler(c *gin.Context) {
	booking := h.Booking.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"booking": booking,
		"stream":  h.Stream.Stats().Connection,
		"online":  booking.State == models.ConnOpen,
		"checks":  utils.GetHealthStatus(),
	})
}
