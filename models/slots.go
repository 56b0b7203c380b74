package models

import (
	"fmt"
	"time"
)

// Slot is one fixed interval of lab time. Start and End are wall-clock "HH:MM"
// strings with no date component.
type Slot struct {
	ID       int     `json:"id"`
	Start    string  `json:"start_time"`
	End      string  `json:"end_time"`
	IsBooked bool    `json:"is_booked"`
	BookedBy *string `json:"booked_by,omitempty"`
	BookedAt *string `json:"booked_at,omitempty"`
}

// Holder returns the identity holding the slot, or "" when it is free.
func (s Slot) Holder() string {
	if s.BookedBy == nil {
		return ""
	}
	return *s.BookedBy
}

// HeldBy reports whether identity currently holds the slot.
func (s Slot) HeldBy(identity string) bool {
	return s.IsBooked && identity != "" && s.Holder() == identity
}

// Validate checks the holder/booked invariant.
func (s Slot) Validate() error {
	if s.IsBooked && s.BookedBy == nil {
		return fmt.Errorf("slot %d: booked without holder", s.ID)
	}
	if !s.IsBooked && s.BookedBy != nil {
		return fmt.Errorf("slot %d: holder %q on an unbooked slot", s.ID, *s.BookedBy)
	}
	return nil
}

// SlotsSnapshot is the complete resource state at one server instant. It is
// never patched; a newer snapshot replaces it whole.
type SlotsSnapshot struct {
	Slots          []Slot `json:"slots"`
	AvailableSlots []int  `json:"available_slots,omitempty"`
	BookedSlots    []int  `json:"booked_slots,omitempty"`

	// Ordering stamps copied from the envelope. Zero means absent.
	Seq        uint64    `json:"-"`
	ServerTime time.Time `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// Find returns the slot with the given id.
func (s *SlotsSnapshot) Find(id int) (Slot, bool) {
	if s == nil {
		return Slot{}, false
	}
	for _, slot := range s.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return Slot{}, false
}

// Newer reports whether s should supersede prev. Sequence numbers win over
// server timestamps; when neither side carries a comparable stamp the most
// recently received snapshot wins.
func (s *SlotsSnapshot) Newer(prev *SlotsSnapshot) bool {
	if prev == nil {
		return true
	}
	if s.Seq != 0 && prev.Seq != 0 {
		return s.Seq > prev.Seq
	}
	if !s.ServerTime.IsZero() && !prev.ServerTime.IsZero() {
		return !s.ServerTime.Before(prev.ServerTime)
	}
	return true
}

// SlotStatus is the local synchronisation state of one slot.
type SlotStatus string

const (
	SlotUnknown SlotStatus = "unknown"
	SlotSynced  SlotStatus = "synced"
	SlotPending SlotStatus = "pending"
)

// Ownership classifies a slot relative to the current identity the way the
// booking grid shows it.
type Ownership string

const (
	OwnershipAvailable Ownership = "available"
	OwnershipMine      Ownership = "mine"
	OwnershipBooked    Ownership = "booked"
)

// SlotView is a slot as presented to renderers: the authoritative snapshot
// with any optimistic overlay applied.
type SlotView struct {
	Slot
	Status    SlotStatus  `json:"status"`
	Ownership Ownership   `json:"ownership"`
	Pending   *ActionKind `json:"pending,omitempty"`
}
