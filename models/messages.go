package models

// MessageType tags every frame on the booking channel.
type MessageType string

const (
	// Client to server.
	MsgGetSlots   MessageType = "get_slots"
	MsgBookSlot   MessageType = "book_slot"
	MsgCancelSlot MessageType = "cancel_slot"

	// Server to client.
	MsgSlotsUpdate          MessageType = "slots_update"
	MsgBookingResponse      MessageType = "booking_response"
	MsgCancellationResponse MessageType = "cancellation_response"
	MsgError                MessageType = "error"
)

// ClientMessage is sent on the booking channel. The credential travels with
// every mutation because the socket may outlive a session refresh.
type ClientMessage struct {
	Type       MessageType `json:"type"`
	SlotID     *int        `json:"slot_id,omitempty"`
	Credential string      `json:"credential,omitempty"`
}

// ServerMessage is received on the booking channel.
type ServerMessage struct {
	Type      MessageType    `json:"type"`
	Data      *SlotsSnapshot `json:"data,omitempty"`
	Success   *bool          `json:"success,omitempty"`
	Message   string         `json:"message,omitempty"`
	SlotID    *int           `json:"slot_id,omitempty"`
	Seq       *uint64        `json:"seq,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}
