package booking

import (
	"errors"
	"fmt"
)

// IntentError is returned when a book or cancel intent fails its
// precondition. Nothing has been sent and nothing has changed.
type IntentError struct {
	Code    string
	SlotID  int
	Message string
}

func (e *IntentError) Error() string {
	return fmt.Sprintf("%s: slot %d: %s", e.Code, e.SlotID, e.Message)
}

// Is matches on Code so that callers can use errors.Is with the sentinels.
func (e *IntentError) Is(target error) bool {
	t, ok := target.(*IntentError)
	return ok && t.Code == e.Code
}

func newIntentError(sentinel *IntentError, slotID int) error {
	return &IntentError{Code: sentinel.Code, SlotID: slotID, Message: sentinel.Message}
}

var (
	ErrUnauthenticated = &IntentError{Code: "unauthenticated", Message: "no valid session"}
	ErrNotConnected    = &IntentError{Code: "notConnected", Message: "booking channel is not open"}
	ErrNoSnapshot      = &IntentError{Code: "noSnapshot", Message: "slot state not yet known"}
	ErrSlotNotFound    = &IntentError{Code: "slotNotFound", Message: "no such slot"}
	ErrSlotPending     = &IntentError{Code: "slotPending", Message: "an action for this slot is already pending"}
	ErrSlotUnavailable = &IntentError{Code: "slotUnavailable", Message: "slot is already booked"}
	ErrNotHolder       = &IntentError{Code: "notHolder", Message: "slot is not booked by you"}
)

var (
	// ErrMalformed marks a server frame that could not be understood. Such
	// frames are logged and dropped.
	ErrMalformed = errors.New("booking: malformed server message")
	// ErrStoreStopped is returned once the store loop has exited.
	ErrStoreStopped = errors.New("booking: store stopped")
)
