package booking

import (
	"time"

	"rerolab/models"

	"github.com/google/uuid"
)

// State is everything the store knows. The snapshot is authoritative and
// never edited; pending actions are an overlay on top of it.
type State struct {
	Identity  string
	Connected bool
	Snapshot  *models.SlotsSnapshot
	Pending   map[int]models.PendingAction
}

type EventKind int

const (
	EvConnected EventKind = iota
	EvDisconnected
	EvSnapshot
	EvIntent
	EvSendFailed
	EvResponse
	EvServerError
	EvPendingTimeout
	EvRefresh
)

// Event is an input to Reduce.
type Event struct {
	Kind     EventKind
	Snapshot *models.SlotsSnapshot
	Action   models.PendingAction
	Session  models.Session
	ActionID uuid.UUID
	SlotID   int
	Notice   models.Notice
	Now      time.Time
}

type EffectKind int

const (
	// FxSend writes Message to the booking channel.
	FxSend EffectKind = iota
	// FxArmTimeout schedules EvPendingTimeout for Action.
	FxArmTimeout
	// FxCancelTimeout cancels the timer of Action.
	FxCancelTimeout
	// FxNotice surfaces Notice to the user.
	FxNotice
	// FxViewChanged tells the driver to republish slot views.
	FxViewChanged
	// FxDropped records a server frame ignored as stale.
	FxDropped
)

// Effect is an instruction for the driver.
type Effect struct {
	Kind    EffectKind
	Message models.ClientMessage
	Action  models.PendingAction
	Notice  models.Notice
	Delay   time.Duration
	Reason  string
}

// Status returns the synchronisation state of one slot.
func (s State) Status(slotID int) models.SlotStatus {
	if s.Snapshot == nil {
		return models.SlotUnknown
	}
	if _, ok := s.Pending[slotID]; ok {
		return models.SlotPending
	}
	return models.SlotSynced
}

// CheckIntent is the pure precondition for a book or cancel intent. It
// reads state and returns an *IntentError on rejection.
func CheckIntent(s State, kind models.ActionKind, slotID int, session models.Session, now time.Time) error {
	if !session.Valid(now) {
		return newIntentError(ErrUnauthenticated, slotID)
	}
	if !s.Connected {
		return newIntentError(ErrNotConnected, slotID)
	}
	if s.Snapshot == nil {
		return newIntentError(ErrNoSnapshot, slotID)
	}
	slot, ok := s.Snapshot.Find(slotID)
	if !ok {
		return newIntentError(ErrSlotNotFound, slotID)
	}
	if s.Status(slotID) != models.SlotSynced {
		return newIntentError(ErrSlotPending, slotID)
	}
	switch kind {
	case models.ActionBook:
		if slot.IsBooked {
			return newIntentError(ErrSlotUnavailable, slotID)
		}
	case models.ActionCancel:
		if !slot.HeldBy(session.Identity) {
			return newIntentError(ErrNotHolder, slotID)
		}
	}
	return nil
}

// Reduce applies ev to s. timeout is the pending-action lifetime. The
// returned error is non-nil only for rejected intents and refreshes, in which
// case the state is returned unchanged and no effects are produced.
func Reduce(s State, timeout time.Duration, ev Event) (State, []Effect, error) {
	var fx []Effect

	switch ev.Kind {
	case EvConnected:
		s.Connected = true
		fx = append(fx, Effect{Kind: FxSend, Message: models.ClientMessage{Type: models.MsgGetSlots}})

	case EvDisconnected:
		s.Connected = false
		fx = append(fx, Effect{Kind: FxViewChanged})

	case EvRefresh:
		if !s.Connected {
			return s, nil, ErrNotConnected
		}
		fx = append(fx, Effect{Kind: FxSend, Message: models.ClientMessage{Type: models.MsgGetSlots}})

	case EvSnapshot:
		if ev.Snapshot == nil {
			return s, nil, nil
		}
		if !ev.Snapshot.Newer(s.Snapshot) {
			return s, []Effect{{Kind: FxDropped, Reason: "stale snapshot"}}, nil
		}
		s.Snapshot = ev.Snapshot
		// Every outstanding intent is settled by an authoritative picture,
		// whether it confirms or contradicts the intent.
		for _, a := range s.Pending {
			fx = append(fx, Effect{Kind: FxCancelTimeout, Action: a})
		}
		s.Pending = nil
		fx = append(fx, Effect{Kind: FxViewChanged})

	case EvIntent:
		if err := CheckIntent(s, ev.Action.Kind, ev.Action.SlotID, ev.Session, ev.Now); err != nil {
			return s, nil, err
		}
		s.Pending = withPending(s.Pending, ev.Action)
		slotID := ev.Action.SlotID
		msgType := models.MsgBookSlot
		if ev.Action.Kind == models.ActionCancel {
			msgType = models.MsgCancelSlot
		}
		fx = append(fx,
			Effect{Kind: FxViewChanged},
			Effect{Kind: FxSend, Action: ev.Action, Message: models.ClientMessage{
				Type:       msgType,
				SlotID:     &slotID,
				Credential: ev.Session.Credential,
			}},
			Effect{Kind: FxArmTimeout, Action: ev.Action, Delay: timeout},
		)

	case EvSendFailed, EvPendingTimeout:
		a, ok := s.Pending[ev.SlotID]
		if !ok || a.ID != ev.ActionID {
			return s, nil, nil
		}
		s.Pending = withoutPending(s.Pending, ev.SlotID)
		if ev.Kind == EvSendFailed {
			fx = append(fx, Effect{Kind: FxCancelTimeout, Action: a})
		}
		fx = append(fx, Effect{Kind: FxViewChanged})

	case EvResponse, EvServerError:
		// Responses and errors never settle a pending slot on their own; the
		// next snapshot or the timeout does.
		fx = append(fx, Effect{Kind: FxNotice, Notice: ev.Notice})
	}

	return s, fx, nil
}

// Views overlays pending intents on the snapshot. It returns nil before the
// first snapshot.
func Views(s State) []models.SlotView {
	if s.Snapshot == nil {
		return nil
	}
	views := make([]models.SlotView, 0, len(s.Snapshot.Slots))
	for _, slot := range s.Snapshot.Slots {
		v := models.SlotView{Slot: slot, Status: models.SlotSynced}
		if a, ok := s.Pending[slot.ID]; ok {
			kind := a.Kind
			v.Status = models.SlotPending
			v.Pending = &kind
			switch a.Kind {
			case models.ActionBook:
				holder := s.Identity
				v.IsBooked = true
				v.BookedBy = &holder
			case models.ActionCancel:
				v.IsBooked = false
				v.BookedBy = nil
				v.BookedAt = nil
			}
		}
		v.Ownership = ownership(v.Slot, s.Identity)
		views = append(views, v)
	}
	return views
}

func ownership(slot models.Slot, identity string) models.Ownership {
	switch {
	case !slot.IsBooked:
		return models.OwnershipAvailable
	case slot.HeldBy(identity):
		return models.OwnershipMine
	default:
		return models.OwnershipBooked
	}
}

// Copy-on-write helpers keep earlier State values intact.
func withPending(m map[int]models.PendingAction, a models.PendingAction) map[int]models.PendingAction {
	out := make(map[int]models.PendingAction, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[a.SlotID] = a
	return out
}

func withoutPending(m map[int]models.PendingAction, slotID int) map[int]models.PendingAction {
	out := make(map[int]models.PendingAction, len(m))
	for k, v := range m {
		if k != slotID {
			out[k] = v
		}
	}
	return out
}
