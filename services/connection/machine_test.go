package connection

import (
	"errors"
	"testing"
	"time"

	"rerolab/models"
)

func kinds(fx []Effect) []EffectKind {
	out := make([]EffectKind, len(fx))
	for i, e := range fx {
		out[i] = e.Kind
	}
	return out
}

func hasEffect(fx []Effect, k EffectKind) (Effect, bool) {
	for _, e := range fx {
		if e.Kind == k {
			return e, true
		}
	}
	return Effect{}, false
}

func openMachine(t *testing.T, p Policy) Machine {
	t.Helper()
	m, _ := Transition(NewMachine(), p, Event{Kind: EvOpen, Endpoint: "ws://lab/slot-booking"})
	m, fx := Transition(m, p, Event{Kind: EvDialed, Gen: m.Gen})
	if m.State != models.ConnOpen {
		t.Fatalf("expected open, got %s", m.State)
	}
	if _, ok := hasEffect(fx, FxNotifyOpen); !ok {
		t.Fatalf("expected FxNotifyOpen, got %v", kinds(fx))
	}
	return m
}

func TestBackoffSchedule(t *testing.T) {
	p := DefaultPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for n, w := range want {
		if got := p.Backoff(n); got != w {
			t.Errorf("Backoff(%d) = %s, want %s", n, got, w)
		}
	}
}

func TestTransition_OpenDials(t *testing.T) {
	m, fx := Transition(NewMachine(), DefaultPolicy(), Event{Kind: EvOpen, Endpoint: "ws://lab"})
	if m.State != models.ConnConnecting {
		t.Errorf("state = %s, want connecting", m.State)
	}
	dial, ok := hasEffect(fx, FxDial)
	if !ok {
		t.Fatalf("expected a dial, got %v", kinds(fx))
	}
	if dial.Endpoint != "ws://lab" || dial.Gen != m.Gen {
		t.Errorf("dial = %+v, machine gen %d", dial, m.Gen)
	}
}

func TestTransition_ReconnectsWithExponentialBackoffThenStops(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)

	var delays []time.Duration
	m, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	for i := 0; i < 10; i++ {
		arm, ok := hasEffect(fx, FxArmRetry)
		if !ok {
			break
		}
		delays = append(delays, arm.Delay)
		m, fx = Transition(m, p, Event{Kind: EvRetryDue, Gen: arm.Gen})
		if _, ok := hasEffect(fx, FxDial); !ok {
			t.Fatalf("retry did not dial: %v", kinds(fx))
		}
		m, fx = Transition(m, p, Event{Kind: EvDialFailed, Gen: m.Gen, Err: errors.New("refused")})
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("got %d scheduled attempts %v, want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("attempt %d delay = %s, want %s", i, delays[i], want[i])
		}
	}
	if !m.Exhausted {
		t.Error("expected handle to be exhausted")
	}
	if _, ok := hasEffect(fx, FxNotifyExhausted); !ok {
		t.Errorf("expected FxNotifyExhausted on the last failure, got %v", kinds(fx))
	}
	if m.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", m.Attempts)
	}
}

func TestTransition_SuccessfulOpenResetsAttempts(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)

	// Fail three times.
	m, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	for i := 0; i < 3; i++ {
		arm, _ := hasEffect(fx, FxArmRetry)
		m, _ = Transition(m, p, Event{Kind: EvRetryDue, Gen: arm.Gen})
		m, fx = Transition(m, p, Event{Kind: EvDialFailed, Gen: m.Gen, Err: errors.New("refused")})
	}
	if m.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", m.Attempts)
	}

	arm, _ := hasEffect(fx, FxArmRetry)
	if arm.Delay != 8*time.Second {
		t.Errorf("fourth delay = %s, want 8s", arm.Delay)
	}
	m, _ = Transition(m, p, Event{Kind: EvRetryDue, Gen: arm.Gen})
	m, _ = Transition(m, p, Event{Kind: EvDialed, Gen: m.Gen})
	if m.Attempts != 0 {
		t.Errorf("attempts after open = %d, want 0", m.Attempts)
	}

	_, fx = Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	arm, ok := hasEffect(fx, FxArmRetry)
	if !ok || arm.Delay != time.Second {
		t.Errorf("after reset the first delay should be 1s, got %+v (ok=%v)", arm, ok)
	}
}

func TestTransition_CloseIsIdempotentAndCancelsRetry(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)
	m, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	arm, ok := hasEffect(fx, FxArmRetry)
	if !ok {
		t.Fatal("expected a retry to be armed")
	}

	m, fx = Transition(m, p, Event{Kind: EvClose})
	if _, ok := hasEffect(fx, FxCancelRetry); !ok {
		t.Errorf("close should cancel the pending retry, got %v", kinds(fx))
	}
	if !m.Stopped || m.RetryArmed {
		t.Errorf("machine not stopped: %+v", m)
	}

	m2, fx := Transition(m, p, Event{Kind: EvClose})
	if len(fx) != 0 || m2 != m {
		t.Errorf("second close should be a no-op, got %v", kinds(fx))
	}

	// The timer may already have fired before the cancel took effect.
	_, fx = Transition(m, p, Event{Kind: EvRetryDue, Gen: arm.Gen})
	if len(fx) != 0 {
		t.Errorf("retry after close must not dial, got %v", kinds(fx))
	}
}

func TestTransition_CloseFromCloseHandlerPreventsReconnect(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)

	// The close transition arms a retry and notifies the handler; the handler
	// then asks for Close, which the driver processes next.
	m, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	if _, ok := hasEffect(fx, FxNotifyClose); !ok {
		t.Fatalf("expected close notification, got %v", kinds(fx))
	}
	arm, _ := hasEffect(fx, FxArmRetry)
	m, fx = Transition(m, p, Event{Kind: EvClose})
	if _, ok := hasEffect(fx, FxNotifyClose); ok {
		t.Error("handle was already closed; no second close notification expected")
	}
	_, fx = Transition(m, p, Event{Kind: EvRetryDue, Gen: arm.Gen})
	if _, ok := hasEffect(fx, FxDial); ok {
		t.Error("no reconnection expected after explicit close")
	}
}

func TestTransition_StaleEventsIgnored(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)
	oldGen := m.Gen

	// Reopen on a new endpoint: the old socket is abandoned.
	m, fx := Transition(m, p, Event{Kind: EvOpen, Endpoint: "ws://lab/websocket/90"})
	if c, ok := hasEffect(fx, FxCloseSocket); !ok || c.Gen != oldGen {
		t.Fatalf("expected old socket %d to be closed, got %v", oldGen, fx)
	}
	if m.Endpoint != "ws://lab/websocket/90" {
		t.Errorf("endpoint = %s", m.Endpoint)
	}

	after, fx := Transition(m, p, Event{Kind: EvClosed, Gen: oldGen, Err: errors.New("eof")})
	if len(fx) != 0 || after != m {
		t.Errorf("stale close should be ignored, got %v", kinds(fx))
	}

	// A late dial for the old generation is closed immediately.
	after, fx = Transition(m, p, Event{Kind: EvDialed, Gen: oldGen})
	if c, ok := hasEffect(fx, FxCloseSocket); !ok || c.Gen != oldGen {
		t.Errorf("stale socket should be closed, got %v", fx)
	}
	if after.State != models.ConnConnecting {
		t.Errorf("state = %s, want connecting", after.State)
	}
}

func TestTransition_ExplicitRetryAfterExhaustion(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxAttempts: 0}
	m := openMachine(t, p)

	m, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	if !m.Exhausted {
		t.Fatalf("zero attempts policy should exhaust immediately: %v", kinds(fx))
	}
	if _, ok := hasEffect(fx, FxArmRetry); ok {
		t.Error("no retry expected")
	}

	m, fx = Transition(m, p, Event{Kind: EvOpen})
	if m.Exhausted || m.State != models.ConnConnecting {
		t.Errorf("explicit retry should restart the handle: %+v", m)
	}
	if d, ok := hasEffect(fx, FxDial); !ok || d.Endpoint != "ws://lab/slot-booking" {
		t.Errorf("explicit retry should reuse the endpoint, got %+v", d)
	}
}

func TestTransition_ErrorNotifiedOnlyForAbnormalClose(t *testing.T) {
	p := DefaultPolicy()
	m := openMachine(t, p)
	_, fx := Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen})
	if _, ok := hasEffect(fx, FxNotifyError); ok {
		t.Error("orderly close should not notify an error")
	}
	_, fx = Transition(m, p, Event{Kind: EvClosed, Gen: m.Gen, Err: errors.New("reset")})
	if _, ok := hasEffect(fx, FxNotifyError); !ok {
		t.Error("abnormal close should notify an error")
	}
}
