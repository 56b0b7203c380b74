package connection

import (
	"context"
	"sync"
	"time"

	"rerolab/models"
	"rerolab/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns one persistent socket and keeps it alive. All lifecycle
// decisions are made by Transition; the manager only runs the resulting
// effects on its own goroutine.
type Manager struct {
	id      string
	name    string
	dialer  Dialer
	handler Handler
	policy  Policy
	clock   utils.Clock
	logger  *zap.Logger

	inbox *utils.Mailbox[command]
	done  chan struct{}

	// Owned by the loop goroutine.
	machine   Machine
	conns     map[uint64]Conn
	retry     utils.Timer
	lastError string
	openedAt  time.Time

	mu     sync.RWMutex
	status models.ConnStatus
}

type command struct {
	event   *Event
	conn    Conn
	message *inbound
	send    *sendRequest
}

type inbound struct {
	gen     uint64
	payload []byte
}

type sendRequest struct {
	messageType int
	payload     []byte
	reply       chan error
}

// Option customises a Manager.
type Option func(*Manager)

func WithPolicy(p Policy) Option { return func(m *Manager) { m.policy = p } }
func WithClock(c utils.Clock) Option { return func(m *Manager) { m.clock = c } }
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }
func WithName(name string) Option { return func(m *Manager) { m.name = name } }

// NewManager builds an idle handle. Call Run to start its loop and Open to
// connect.
func NewManager(dialer Dialer, handler Handler, opts ...Option) *Manager {
	m := &Manager{
		id:      uuid.New().String(),
		name:    "connection",
		dialer:  dialer,
		handler: handler,
		policy:  DefaultPolicy(),
		clock:   utils.RealClock(),
		logger:  zap.NewNop(),
		inbox:   utils.NewMailbox[command](),
		done:    make(chan struct{}),
		machine: NewMachine(),
		conns:   make(map[uint64]Conn),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("conn", m.name), zap.String("conn_id", m.id))
	m.publish()
	return m
}

// ID returns the handle's unique identifier.
func (m *Manager) ID() string { return m.id }

// Open connects to endpoint, replacing any current socket. An empty endpoint
// reuses the previous one. Open also resets the backoff counter, so it is
// the explicit retry after reconnection has been exhausted.
func (m *Manager) Open(endpoint string) {
	m.inbox.Post(command{event: &Event{Kind: EvOpen, Endpoint: endpoint}})
}

// Retry reopens the current endpoint.
func (m *Manager) Retry() { m.Open("") }

// Close stops the handle and cancels any scheduled reconnection. It is
// idempotent and safe to call from a Handler callback.
func (m *Manager) Close() {
	m.inbox.Post(command{event: &Event{Kind: EvClose}})
}

// Send writes a text frame. It fails fast with ErrNotConnected when the handle
// is not open. Must not be called from a Handler callback.
func (m *Manager) Send(payload []byte) error {
	return m.send(TextMessage, payload)
}

// SendBinary writes a binary frame.
func (m *Manager) SendBinary(payload []byte) error {
	return m.send(BinaryMessage, payload)
}

func (m *Manager) send(messageType int, payload []byte) error {
	req := &sendRequest{messageType: messageType, payload: payload, reply: make(chan error, 1)}
	if !m.inbox.Post(command{send: req}) {
		return ErrManagerStopped
	}
	select {
	case err := <-req.reply:
		return err
	case <-m.done:
		return ErrManagerStopped
	}
}

// Status returns the last published lifecycle state.
func (m *Manager) Status() models.ConnStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Run processes events until ctx is cancelled. Sockets are closed on exit.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.inbox.Notify():
		}
		for {
			cmd, ok := m.inbox.Take()
			if !ok {
				break
			}
			m.handle(ctx, cmd)
		}
	}
}

func (m *Manager) handle(ctx context.Context, cmd command) {
	switch {
	case cmd.send != nil:
		cmd.send.reply <- m.write(cmd.send)
	case cmd.message != nil:
		if cmd.message.gen == m.machine.Gen && m.machine.State == models.ConnOpen {
			m.handler.OnMessage(cmd.message.payload)
		}
	case cmd.event != nil:
		if cmd.conn != nil {
			m.conns[cmd.event.Gen] = cmd.conn
		}
		m.apply(ctx, *cmd.event, cmd.conn)
	}
}

func (m *Manager) apply(ctx context.Context, ev Event, conn Conn) {
	prev := m.machine
	next, effects := Transition(m.machine, m.policy, ev)
	m.machine = next

	for _, fx := range effects {
		switch fx.Kind {
		case FxDial:
			m.logger.Debug("dialing", zap.String("endpoint", fx.Endpoint), zap.Uint64("gen", fx.Gen), zap.Int("attempt", next.Attempts))
			go m.dial(ctx, fx.Gen, fx.Endpoint)
		case FxCloseSocket:
			if c, ok := m.conns[fx.Gen]; ok {
				delete(m.conns, fx.Gen)
				if err := c.Close(); err != nil {
					m.logger.Debug("socket close failed", zap.Error(err))
				}
			}
		case FxArmRetry:
			gen := fx.Gen
			m.stopRetry()
			m.retry = m.clock.AfterFunc(fx.Delay, func() {
				m.inbox.Post(command{event: &Event{Kind: EvRetryDue, Gen: gen}})
			})
			m.logger.Info("reconnect scheduled",
				zap.Duration("delay", fx.Delay),
				zap.Int("attempt", next.Attempts+1),
				zap.Int("max_attempts", m.policy.MaxAttempts))
		case FxCancelRetry:
			m.stopRetry()
		case FxNotifyOpen:
			m.openedAt = m.clock.Now()
			m.lastError = ""
			m.logger.Info("connected", zap.String("endpoint", next.Endpoint))
		case FxNotifyClose:
			m.logger.Info("disconnected", zap.String("endpoint", next.Endpoint))
		case FxNotifyError:
			m.lastError = fx.Err.Error()
			m.logger.Warn("connection error",
				zap.Error(fx.Err),
				zap.String("category", ClassifyError(fx.Err).String()))
		case FxNotifyExhausted:
			m.logger.Warn("reconnection attempts exhausted", zap.Int("attempts", next.Attempts))
		}
	}

	// Start reading only once the socket is confirmed as the live one.
	if ev.Kind == EvDialed && conn != nil && next.State == models.ConnOpen && prev.State != models.ConnOpen && next.Gen == ev.Gen {
		go m.read(ev.Gen, conn)
	}

	m.publish()

	// Callbacks run last so that a handler reading Status sees the new state.
	for _, fx := range effects {
		switch fx.Kind {
		case FxNotifyOpen:
			m.handler.OnOpen()
		case FxNotifyClose:
			m.handler.OnClose()
		case FxNotifyError:
			m.handler.OnError(fx.Err)
		case FxNotifyExhausted:
			if h, ok := m.handler.(ExhaustedHandler); ok {
				h.OnExhausted()
			}
		}
	}
}

func (m *Manager) dial(ctx context.Context, gen uint64, endpoint string) {
	conn, err := m.dialer.Dial(ctx, endpoint)
	if err != nil {
		m.inbox.Post(command{event: &Event{Kind: EvDialFailed, Gen: gen, Err: err}})
		return
	}
	if !m.inbox.Post(command{event: &Event{Kind: EvDialed, Gen: gen}, conn: conn}) {
		conn.Close()
	}
}

func (m *Manager) read(gen uint64, conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			var cause error
			if !isNormalClose(err) {
				cause = err
			}
			m.inbox.Post(command{event: &Event{Kind: EvClosed, Gen: gen, Err: cause}})
			return
		}
		m.inbox.Post(command{message: &inbound{gen: gen, payload: payload}})
	}
}

func (m *Manager) write(req *sendRequest) error {
	if m.machine.State != models.ConnOpen {
		return ErrNotConnected
	}
	conn, ok := m.conns[m.machine.Gen]
	if !ok {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(req.messageType, req.payload); err != nil {
		// The reader observes the broken socket and drives reconnection.
		conn.Close()
		return err
	}
	return nil
}

func (m *Manager) stopRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) shutdown() {
	m.inbox.Close()
	m.stopRetry()
	for gen, c := range m.conns {
		c.Close()
		delete(m.conns, gen)
	}
	m.machine.State = models.ConnClosed
	m.machine.Stopped = true
	m.publish()
}

func (m *Manager) publish() {
	st := models.ConnStatus{
		ID:        m.id,
		Endpoint:  m.machine.Endpoint,
		State:     m.machine.State,
		Attempts:  m.machine.Attempts,
		Exhausted: m.machine.Exhausted,
		Stopped:   m.machine.Stopped,
		LastError: m.lastError,
	}
	if m.machine.State == models.ConnOpen {
		st.OpenedAt = m.openedAt
	}
	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
}
