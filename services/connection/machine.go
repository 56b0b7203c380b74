package connection

import (
	"time"

	"rerolab/models"
)

// Policy bounds automatic reconnection.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultPolicy waits 1s, 2s, 4s, 8s, 16s and then gives up.
func DefaultPolicy() Policy {
	return Policy{BaseDelay: time.Second, MaxAttempts: 5}
}

// Backoff returns the delay before 0-indexed attempt n: BaseDelay * 2^n.
func (p Policy) Backoff(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return p.BaseDelay * time.Duration(1<<uint(n))
}

// Machine is the complete lifecycle state of one handle. It is a value; every
// transition returns a new Machine.
type Machine struct {
	State    models.ConnState
	Endpoint string
	// Gen identifies the current socket. Events tagged with an older
	// generation belong to a socket the handle has already abandoned.
	Gen        uint64
	Attempts   int
	RetryArmed bool
	Exhausted  bool
	Stopped    bool
}

// NewMachine returns an idle, stopped handle.
func NewMachine() Machine {
	return Machine{State: models.ConnClosed, Stopped: true}
}

type EventKind int

const (
	// EvOpen is a caller request to (re)open, optionally on a new endpoint.
	EvOpen EventKind = iota
	// EvDialed reports that the dial for Gen succeeded.
	EvDialed
	// EvDialFailed reports that the dial for Gen failed.
	EvDialFailed
	// EvClosed reports that the socket for Gen went away.
	EvClosed
	// EvRetryDue fires when the backoff timer armed for Gen expires.
	EvRetryDue
	// EvClose is a caller request to stop the handle.
	EvClose
)

// Event is an input to Transition.
type Event struct {
	Kind     EventKind
	Gen      uint64
	Endpoint string
	Err      error
}

type EffectKind int

const (
	FxDial EffectKind = iota
	FxCloseSocket
	FxArmRetry
	FxCancelRetry
	FxNotifyOpen
	FxNotifyClose
	FxNotifyError
	FxNotifyExhausted
)

// Effect is an instruction for the driver. Transition never performs I/O.
type Effect struct {
	Kind     EffectKind
	Gen      uint64
	Endpoint string
	Delay    time.Duration
	Err      error
}

// Transition applies ev to m under policy p.
func Transition(m Machine, p Policy, ev Event) (Machine, []Effect) {
	var fx []Effect

	switch ev.Kind {
	case EvOpen:
		if ev.Endpoint != "" {
			m.Endpoint = ev.Endpoint
		}
		if m.RetryArmed {
			fx = append(fx, Effect{Kind: FxCancelRetry, Gen: m.Gen})
			m.RetryArmed = false
		}
		if m.State != models.ConnClosed {
			fx = append(fx, Effect{Kind: FxCloseSocket, Gen: m.Gen})
			if m.State == models.ConnOpen {
				fx = append(fx, Effect{Kind: FxNotifyClose, Gen: m.Gen})
			}
		}
		m.Gen++
		m.State = models.ConnConnecting
		m.Attempts = 0
		m.Exhausted = false
		m.Stopped = false
		fx = append(fx, Effect{Kind: FxDial, Gen: m.Gen, Endpoint: m.Endpoint})

	case EvDialed:
		if ev.Gen != m.Gen || m.Stopped || m.State != models.ConnConnecting {
			// A socket nobody is waiting for any more.
			fx = append(fx, Effect{Kind: FxCloseSocket, Gen: ev.Gen})
			return m, fx
		}
		m.State = models.ConnOpen
		m.Attempts = 0
		m.Exhausted = false
		fx = append(fx, Effect{Kind: FxNotifyOpen, Gen: m.Gen})

	case EvDialFailed, EvClosed:
		if ev.Gen != m.Gen || m.Stopped || m.State == models.ConnClosed {
			return m, nil
		}
		if ev.Err != nil {
			fx = append(fx, Effect{Kind: FxNotifyError, Gen: m.Gen, Err: ev.Err})
		}
		fx = append(fx, Effect{Kind: FxCloseSocket, Gen: m.Gen})
		m.State = models.ConnClosed
		fx = append(fx, Effect{Kind: FxNotifyClose, Gen: m.Gen})
		m, fx = scheduleRetry(m, p, fx)

	case EvRetryDue:
		if ev.Gen != m.Gen || !m.RetryArmed || m.Stopped {
			return m, nil
		}
		m.RetryArmed = false
		m.Attempts++
		m.Gen++
		m.State = models.ConnConnecting
		fx = append(fx, Effect{Kind: FxDial, Gen: m.Gen, Endpoint: m.Endpoint})

	case EvClose:
		if m.Stopped {
			return m, nil
		}
		m.Stopped = true
		if m.RetryArmed {
			fx = append(fx, Effect{Kind: FxCancelRetry, Gen: m.Gen})
			m.RetryArmed = false
		}
		if m.State != models.ConnClosed {
			fx = append(fx, Effect{Kind: FxCloseSocket, Gen: m.Gen})
			m.State = models.ConnClosed
			fx = append(fx, Effect{Kind: FxNotifyClose, Gen: m.Gen})
		}
		// Anything still in flight for the old socket is now stale.
		m.Gen++
	}

	return m, fx
}

func scheduleRetry(m Machine, p Policy, fx []Effect) (Machine, []Effect) {
	if m.Attempts >= p.MaxAttempts {
		m.Exhausted = true
		return m, append(fx, Effect{Kind: FxNotifyExhausted, Gen: m.Gen})
	}
	m.RetryArmed = true
	return m, append(fx, Effect{Kind: FxArmRetry, Gen: m.Gen, Delay: p.Backoff(m.Attempts)})
}
