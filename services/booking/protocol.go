package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"rerolab/models"
)

// serverTimeLayouts covers RFC 3339 stamps and the zone-less ISO form the
// lab backend emits.
var serverTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseServerTime parses the timestamp of a slots_update frame. Zone-less
// stamps are read as UTC; only their ordering matters.
func ParseServerTime(s string) (time.Time, error) {
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, s)
}

// EncodeClientMessage renders msg as a JSON frame.
func EncodeClientMessage(msg models.ClientMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeServerMessage turns one booking-channel frame into a store event.
// Any error wraps ErrMalformed.
func DecodeServerMessage(payload []byte, receivedAt time.Time) (Event, error) {
	var msg models.ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch msg.Type {
	case models.MsgSlotsUpdate:
		if msg.Data == nil {
			return Event{}, fmt.Errorf("%w: slots_update without data", ErrMalformed)
		}
		seen := make(map[int]bool, len(msg.Data.Slots))
		for _, slot := range msg.Data.Slots {
			if err := slot.Validate(); err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			if seen[slot.ID] {
				return Event{}, fmt.Errorf("%w: duplicate slot id %d", ErrMalformed, slot.ID)
			}
			seen[slot.ID] = true
		}
		snap := *msg.Data
		snap.ReceivedAt = receivedAt
		if msg.Seq != nil {
			snap.Seq = *msg.Seq
		}
		if msg.Timestamp != "" {
			ts, err := ParseServerTime(msg.Timestamp)
			if err != nil {
				return Event{}, err
			}
			snap.ServerTime = ts
		}
		return Event{Kind: EvSnapshot, Snapshot: &snap, Now: receivedAt}, nil

	case models.MsgBookingResponse, models.MsgCancellationResponse:
		if msg.Success == nil {
			return Event{}, fmt.Errorf("%w: %s without success flag", ErrMalformed, msg.Type)
		}
		return Event{Kind: EvResponse, Now: receivedAt, Notice: models.Notice{
			Kind:    models.NoticeKind(msg.Type),
			Message: msg.Message,
			Success: *msg.Success,
			SlotID:  msg.SlotID,
			At:      receivedAt,
		}}, nil

	case models.MsgError:
		text := msg.Message
		if text == "" {
			text = "Unknown error occurred"
		}
		return Event{Kind: EvServerError, Now: receivedAt, Notice: models.Notice{
			Kind:    models.NoticeError,
			Message: text,
			At:      receivedAt,
		}}, nil
	}

	return Event{}, fmt.Errorf("%w: unknown message type %q", ErrMalformed, msg.Type)
}
