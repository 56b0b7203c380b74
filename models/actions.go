package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind is the kind of user-initiated mutation.
type ActionKind string

const (
	ActionBook   ActionKind = "book"
	ActionCancel ActionKind = "cancel"
)

// WantsBooked is the booked flag the action is trying to reach.
func (k ActionKind) WantsBooked() bool {
	return k == ActionBook
}

// PendingAction is a mutation sent to the server and not yet reconciled.
type PendingAction struct {
	ID       uuid.UUID  `json:"id"`
	Kind     ActionKind `json:"kind"`
	SlotID   int        `json:"slot_id"`
	IssuedAt time.Time  `json:"issued_at"`
}

// NewPendingAction stamps a fresh action.
func NewPendingAction(kind ActionKind, slotID int, now time.Time) PendingAction {
	return PendingAction{
		ID:       uuid.New(),
		Kind:     kind,
		SlotID:   slotID,
		IssuedAt: now,
	}
}

// Satisfied reports whether slot already shows the outcome the action wanted
// for identity.
func (a PendingAction) Satisfied(slot Slot, identity string) bool {
	switch a.Kind {
	case ActionBook:
		return slot.HeldBy(identity)
	case ActionCancel:
		return !slot.IsBooked
	}
	return false
}

// Notice is a transient, user-visible message produced by the booking store.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Success bool       `json:"success"`
	SlotID  *int       `json:"slot_id,omitempty"`
	At      time.Time  `json:"at"`
}

type NoticeKind string

const (
	NoticeError        NoticeKind = "error"
	NoticeBooking      NoticeKind = "booking_response"
	NoticeCancellation NoticeKind = "cancellation_response"
)
