package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rerolab/models"
	"rerolab/services/booking"
	"rerolab/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChannelControl is the booking connection as the API sees it.
type ChannelControl interface {
	Retry()
	Close()
	Status() models.ConnStatus
}

type BookingHandler struct {
	Service booking.BookingService
	Channel ChannelControl
}

func NewBookingHandler(service booking.BookingService, channel ChannelControl) *BookingHandler {
	return &BookingHandler{Service: service, Channel: channel}
}

// SlotsResponse is the body of GET /slots and the greeting on /ws.
type SlotsResponse struct {
	Connected  bool              `json:"connected"`
	Connection models.ConnStatus `json:"connection"`
	Slots      []models.SlotView `json:"slots"`
	Notices    []models.Notice   `json:"notices"`
}

func (h *BookingHandler) Snapshot() SlotsResponse {
	return SlotsResponse{
		Connected:  h.Service.Connected(),
		Connection: h.Channel.Status(),
		Slots:      h.Service.Views(),
		Notices:    h.Service.Notices(),
	}
}

// GetSlotsHandler returns the slot grid with pending overlays applied.
func (h *BookingHandler) GetSlotsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Snapshot())
}

// RefreshHandler asks the server for a fresh snapshot.
func (h *BookingHandler) RefreshHandler(c *gin.Context) {
	if err := h.Service.Refresh(); err != nil {
		h.fail(c, 0, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
}

func (h *BookingHandler) BookSlotHandler(c *gin.Context) {
	h.intent(c, models.ActionBook)
}

func (h *BookingHandler) CancelSlotHandler(c *gin.Context) {
	h.intent(c, models.ActionCancel)
}

func (h *BookingHandler) intent(c *gin.Context, kind models.ActionKind) {
	slotID, err := strconv.Atoi(c.Param("id"))
	if err != nil || slotID <= 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid slot id", c.Param("id"))
		return
	}

	if kind == models.ActionBook {
		err = h.Service.Book(slotID)
	} else {
		err = h.Service.Cancel(slotID)
	}
	if err != nil {
		h.fail(c, slotID, err)
		return
	}

	getLogger(c).Info("intent accepted", zap.String("kind", string(kind)), zap.Int("slot_id", slotID))
	c.JSON(http.StatusAccepted, gin.H{"status": models.SlotPending, "kind": kind, "slot_id": slotID})
}

// RetryHandler reconnects the booking channel after automatic retries gave up.
func (h *BookingHandler) RetryHandler(c *gin.Context) {
	h.Channel.Retry()
	c.JSON(http.StatusAccepted, h.Channel.Status())
}

// DisconnectHandler closes the booking channel and cancels any scheduled
// reconnection. Pending intents revert on their own timeout.
func (h *BookingHandler) DisconnectHandler(c *gin.Context) {
	h.Channel.Close()
	c.JSON(http.StatusAccepted, gin.H{"status": "disconnecting"})
}

func (h *BookingHandler) fail(c *gin.Context, slotID int, err error) {
	var ie *booking.IntentError
	if errors.As(err, &ie) {
		c.JSON(intentStatus(ie.Code), gin.H{"error": ie.Code, "message": ie.Message, "slot_id": ie.SlotID})
		return
	}
	if errors.Is(err, booking.ErrStoreStopped) {
		utils.JSONError(c, http.StatusServiceUnavailable, "booking store stopped", err.Error())
		return
	}
	getLogger(c).Warn("booking request failed", zap.Int("slot_id", slotID), zap.Error(err))
	utils.JSONError(c, http.StatusBadGateway, "could not reach the booking server", err.Error())
}

func intentStatus(code string) int {
	switch code {
	case booking.ErrUnauthenticated.Code:
		return http.StatusUnauthorized
	case booking.ErrNotConnected.Code, booking.ErrNoSnapshot.Code:
		return http.StatusServiceUnavailable
	case booking.ErrSlotNotFound.Code:
		return http.StatusNotFound
	case booking.ErrNotHolder.Code:
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}
