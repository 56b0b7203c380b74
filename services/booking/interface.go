package booking

import (
	"rerolab/models"
)

// SessionSource yields the current session. The store only reads it.
type SessionSource interface {
	Current() (models.Session, bool)
}

// Sender writes a frame to the booking channel.
type Sender interface {
	Send(payload []byte) error
}

// BookingService is what the local API and other consumers use.
type BookingService interface {
	Book(slotID int) error
	Cancel(slotID int) error
	Refresh() error
	Views() []models.SlotView
	Connected() bool
	Notices() []models.Notice
	Subscribe() (<-chan Update, func())
}

// Update is pushed to subscribers whenever the visible state changes or a
// notice is raised.
type Update struct {
	Views     []models.SlotView `json:"slots"`
	Connected bool              `json:"connected"`
	Notice    *models.Notice    `json:"notice,omitempty"`
}
