package handlers

import (
	"net/http"
	"strconv"

	"rerolab/models"
	"rerolab/services/stream"

	"github.com/gin-gonic/gin"
)

// FrameSource is the stream controller as the API sees it.
type FrameSource interface {
	Latest() (stream.Frame, bool)
	Stats() models.StreamStats
	Start()
	Stop()
}

type StreamHandler struct {
	Stream FrameSource
}

func NewStreamHandler(s FrameSource) *StreamHandler {
	return &StreamHandler{Stream: s}
}

// GetFrameHandler returns the newest frame as an image, or 204 before the
// first one arrives.
func (h *StreamHandler) GetFrameHandler(c *gin.Context) {
	frame, ok := h.Stream.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	c.Header("X-Frame-Quality", strconv.Itoa(frame.Quality))
	c.Data(http.StatusOK, "image/jpeg", frame.Data)
}

func (h *StreamHandler) GetStreamStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Stream.Stats())
}

func (h *StreamHandler) StartStreamHandler(c *gin.Context) {
	h.Stream.Start()
	c.JSON(http.StatusAccepted, gin.H{"status": "starting"})
}

func (h *StreamHandler) StopStreamHandler(c *gin.Context) {
	h.Stream.Stop()
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}
