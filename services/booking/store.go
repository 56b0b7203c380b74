package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"rerolab/models"
	"rerolab/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPendingTimeout is how long an unconfirmed intent stays visible.
	DefaultPendingTimeout = time.Second
	maxNotices            = 20
	subscriberBuffer      = 16
)

// Store is the booking synchronisation store. It runs Reduce on its own
// goroutine and executes the effects; it implements connection.Handler so it
// can be plugged straight into a connection manager.
type Store struct {
	sender   Sender
	sessions SessionSource
	clock    utils.Clock
	logger   *zap.Logger
	timeout  time.Duration

	inbox *utils.Mailbox[storeCmd]
	done  chan struct{}

	// Owned by the loop goroutine.
	state  State
	timers map[uuid.UUID]utils.Timer

	mu       sync.RWMutex
	views    []models.SlotView
	online   bool
	notices  []models.Notice
	subs     map[int]chan Update
	nextSub  int
	stopped  bool
	snapshot *models.SlotsSnapshot
}

type storeCmd struct {
	event   *Event
	payload []byte
	reply   chan error
}

// StoreOption customises a Store.
type StoreOption func(*Store)

func WithClock(c utils.Clock) StoreOption { return func(s *Store) { s.clock = c } }

func WithLogger(l *zap.Logger) StoreOption { return func(s *Store) { s.logger = l } }

func WithPendingTimeout(d time.Duration) StoreOption { return func(s *Store) { s.timeout = d } }

// NewStore builds a store. sender is normally the booking connection manager.
func NewStore(sender Sender, sessions SessionSource, opts ...StoreOption) *Store {
	s := &Store{
		sender:   sender,
		sessions: sessions,
		clock:    utils.RealClock(),
		logger:   zap.NewNop(),
		timeout:  DefaultPendingTimeout,
		inbox:    utils.NewMailbox[storeCmd](),
		done:     make(chan struct{}),
		timers:   make(map[uuid.UUID]utils.Timer),
		subs:     make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes events until ctx is cancelled.
func (s *Store) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.inbox.Notify():
		}
		for {
			cmd, ok := s.inbox.Take()
			if !ok {
				break
			}
			s.handle(cmd)
		}
	}
}

// Connection events. These only enqueue, so they are safe to call from the
// connection manager goroutine.

func (s *Store) OnOpen() {
	s.inbox.Post(storeCmd{event: &Event{Kind: EvConnected}})
}

func (s *Store) OnMessage(payload []byte) {
	s.inbox.Post(storeCmd{payload: payload})
}

func (s *Store) OnClose() {
	s.inbox.Post(storeCmd{event: &Event{Kind: EvDisconnected}})
}

// OnError only logs: transport failures show up as the connectivity flag,
// not as notices.
func (s *Store) OnError(err error) {
	s.logger.Debug("booking channel error", zap.Error(err))
}

// Book marks slotID as pending-booked and sends book_slot. It returns an
// *IntentError without sending anything when the precondition fails.
func (s *Store) Book(slotID int) error {
	return s.intent(models.ActionBook, slotID)
}

// Cancel marks slotID as pending-free and sends cancel_slot.
func (s *Store) Cancel(slotID int) error {
	return s.intent(models.ActionCancel, slotID)
}

// Refresh asks the server for a fresh snapshot.
func (s *Store) Refresh() error {
	return s.call(&Event{Kind: EvRefresh})
}

func (s *Store) intent(kind models.ActionKind, slotID int) error {
	session, _ := s.sessions.Current()
	now := s.clock.Now()
	return s.call(&Event{
		Kind:    EvIntent,
		Action:  models.NewPendingAction(kind, slotID, now),
		Session: session,
		Now:     now,
	})
}

func (s *Store) call(ev *Event) error {
	reply := make(chan error, 1)
	if !s.inbox.Post(storeCmd{event: ev, reply: reply}) {
		return ErrStoreStopped
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrStoreStopped
	}
}

// Views returns the current slot grid with optimistic overlays applied.
func (s *Store) Views() []models.SlotView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.views
}

// Snapshot returns the last accepted authoritative snapshot.
func (s *Store) Snapshot() *models.SlotsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Connected reports whether the booking channel is open.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Notices returns the most recent notices, oldest first.
func (s *Store) Notices() []models.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notice(nil), s.notices...)
}

// Subscribe returns a channel of updates and a function to stop them.
// Slow subscribers miss updates rather than stall the store. After the store
// has stopped the channel comes back already closed.
func (s *Store) Subscribe() (<-chan Update, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		ch := make(chan Update)
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan Update, subscriberBuffer)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) handle(cmd storeCmd) {
	if session, ok := s.sessions.Current(); ok {
		s.state.Identity = session.Identity
	} else {
		s.state.Identity = ""
	}

	ev := cmd.event
	if cmd.payload != nil {
		decoded, err := DecodeServerMessage(cmd.payload, s.clock.Now())
		if err != nil {
			s.logger.Warn("dropping booking frame", zap.Error(err), zap.Int("bytes", len(cmd.payload)))
			return
		}
		ev = &decoded
	}

	err := s.apply(*ev)
	if cmd.reply != nil {
		cmd.reply <- err
	}
}

func (s *Store) apply(ev Event) error {
	next, effects, err := Reduce(s.state, s.timeout, ev)
	if err != nil {
		return err
	}
	s.state = next

	var (
		changed bool
		notice  *models.Notice
		sendErr error
	)
	for _, fx := range effects {
		switch fx.Kind {
		case FxSend:
			if err := s.send(fx.Message); err != nil {
				if fx.Action.ID == uuid.Nil {
					s.logger.Warn("booking request not sent", zap.String("type", string(fx.Message.Type)), zap.Error(err))
					sendErr = err
					continue
				}
				// The intent never left; undo the overlay.
				sendErr = err
				reverted, _, _ := Reduce(s.state, s.timeout, Event{Kind: EvSendFailed, SlotID: fx.Action.SlotID, ActionID: fx.Action.ID})
				s.state = reverted
				changed = true
			}
		case FxArmTimeout:
			if sendErr != nil {
				continue
			}
			a := fx.Action
			s.timers[a.ID] = s.clock.AfterFunc(fx.Delay, func() {
				s.inbox.Post(storeCmd{event: &Event{Kind: EvPendingTimeout, SlotID: a.SlotID, ActionID: a.ID}})
			})
			s.logger.Debug("intent pending", zap.String("kind", string(a.Kind)), zap.Int("slot_id", a.SlotID), zap.String("action_id", a.ID.String()))
		case FxCancelTimeout:
			if t, ok := s.timers[fx.Action.ID]; ok {
				t.Stop()
				delete(s.timers, fx.Action.ID)
			}
			if ev.Kind == EvSnapshot {
				s.logSettled(fx.Action, ev.Snapshot)
			}
		case FxNotice:
			n := fx.Notice
			notice = &n
			s.logger.Info("booking notice", zap.String("kind", string(n.Kind)), zap.Bool("success", n.Success), zap.String("message", n.Message))
		case FxViewChanged:
			changed = true
		case FxDropped:
			s.logger.Debug("booking frame ignored", zap.String("reason", fx.Reason))
		}
	}

	if ev.Kind == EvPendingTimeout && changed {
		delete(s.timers, ev.ActionID)
		s.logger.Info("pending intent timed out", zap.Int("slot_id", ev.SlotID))
	}

	if changed || notice != nil || ev.Kind == EvConnected {
		s.publish(notice)
	}
	if sendErr != nil && ev.Kind == EvIntent {
		return sendErr
	}
	if sendErr != nil && ev.Kind == EvRefresh {
		return sendErr
	}
	return nil
}

func (s *Store) logSettled(a models.PendingAction, snap *models.SlotsSnapshot) {
	slot, ok := snap.Find(a.SlotID)
	if ok && a.Satisfied(slot, s.state.Identity) {
		s.logger.Debug("intent confirmed", zap.String("kind", string(a.Kind)), zap.Int("slot_id", a.SlotID))
		return
	}
	s.logger.Debug("intent overridden by server", zap.String("kind", string(a.Kind)), zap.Int("slot_id", a.SlotID))
}

func (s *Store) send(msg models.ClientMessage) error {
	payload, err := EncodeClientMessage(msg)
	if err != nil {
		return err
	}
	return s.sender.Send(payload)
}

func (s *Store) publish(notice *models.Notice) {
	views := Views(s.state)
	update := Update{Views: views, Connected: s.state.Connected, Notice: notice}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = views
	s.online = s.state.Connected
	s.snapshot = s.state.Snapshot
	if notice != nil {
		s.notices = append(s.notices, *notice)
		if len(s.notices) > maxNotices {
			s.notices = s.notices[len(s.notices)-maxNotices:]
		}
	}
	for _, ch := range s.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

func (s *Store) shutdown() {
	s.inbox.Close()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// IsIntentError reports whether err is a precondition rejection.
func IsIntentError(err error) bool {
	var ie *IntentError
	return errors.As(err, &ie)
}
