package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"rerolab/models"
	"rerolab/services/connection"
	"rerolab/utils"

	"go.uber.org/zap"
)

const (
	DefaultInitialQuality = 95
	DefaultWindow         = 5 * time.Second
	DefaultTick           = time.Second
)

// Controller keeps the media channel's delivered frame rate inside the
// policy band by reconnecting at a different quality. It owns its own
// connection handle; nothing it does touches the booking channel.
type Controller struct {
	base      string
	policy    Policy
	initial   int
	window    time.Duration
	tick      time.Duration
	reconnect connection.Policy
	clock     utils.Clock
	logger    *zap.Logger

	channel *connection.Manager
	frames  *FrameBuffer
	inbox   *utils.Mailbox[event]
	done    chan struct{}

	// Owned by the loop goroutine.
	running        bool
	open           bool
	adjusting      bool
	quality        int
	rate           float64
	rates          *RateWindow
	ticker         utils.Timer
	renegotiations int
	lastFrame      time.Time
	status         string

	mu    sync.RWMutex
	stats models.StreamStats
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evOpen
	evClose
	evError
	evExhausted
	evFrame
	evTick
)

type event struct {
	kind    eventKind
	payload []byte
	err     error
}

// Option customises a Controller.
type Option func(*Controller)

func WithPolicy(p Policy) Option { return func(c *Controller) { c.policy = p } }

func WithInitialQuality(q int) Option { return func(c *Controller) { c.initial = q } }

func WithWindow(d time.Duration) Option { return func(c *Controller) { c.window = d } }

func WithTick(d time.Duration) Option { return func(c *Controller) { c.tick = d } }

// WithReconnectPolicy sets the backoff used when the media channel drops on
// its own.
func WithReconnectPolicy(p connection.Policy) Option { return func(c *Controller) { c.reconnect = p } }

func WithClock(clock utils.Clock) Option { return func(c *Controller) { c.clock = clock } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.logger = l } }

// NewController builds an idle controller for the media endpoint base. The
// quality is appended to base as the last path segment. It fails when the
// policy, window or tick could not drive adjustment.
func NewController(dialer connection.Dialer, base string, opts ...Option) (*Controller, error) {
	c := &Controller{
		base:      strings.TrimRight(base, "/"),
		policy:    DefaultPolicy(),
		initial:   DefaultInitialQuality,
		window:    DefaultWindow,
		tick:      DefaultTick,
		reconnect: connection.DefaultPolicy(),
		clock:     utils.RealClock(),
		logger:    zap.NewNop(),
		frames:    NewFrameBuffer(),
		inbox:     utils.NewMailbox[event](),
		done:      make(chan struct{}),
		status:    "Disconnected",
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.policy.Validate(); err != nil {
		return nil, err
	}
	if c.window <= 0 || c.tick <= 0 {
		return nil, fmt.Errorf("stream: window %s and tick %s must be positive", c.window, c.tick)
	}
	c.quality = c.policy.Clamp(c.initial)
	c.rates = NewRateWindow(c.window)
	c.channel = connection.NewManager(dialer, channelEvents{c},
		connection.WithName("stream"),
		connection.WithPolicy(c.reconnect),
		connection.WithClock(c.clock),
		connection.WithLogger(c.logger),
	)
	c.publish()
	return c, nil
}

// Endpoint is the media URL for quality q.
func (c *Controller) Endpoint(q int) string {
	return c.base + "/" + strconv.Itoa(q)
}

// Start connects at the initial quality and begins measuring.
func (c *Controller) Start() { c.inbox.Post(event{kind: evStart}) }

// Stop closes the media channel. The controller can be started again.
func (c *Controller) Stop() { c.inbox.Post(event{kind: evStop}) }

// Retry reopens the channel at the current quality after reconnection gave up.
func (c *Controller) Retry() { c.channel.Retry() }

// Latest returns the newest frame.
func (c *Controller) Latest() (Frame, bool) { return c.frames.Latest() }

// Stats returns the current quality, rate and channel state.
func (c *Controller) Stats() models.StreamStats {
	c.mu.RLock()
	st := c.stats
	c.mu.RUnlock()
	st.Connection = c.channel.Status()
	st.FramesReceived, st.FramesDropped = c.frames.Counters()
	return st
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run drives the controller and its channel until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	go c.channel.Run(ctx)
	defer func() {
		c.inbox.Close()
		c.stopTicker()
		<-c.channel.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.inbox.Notify():
		}
		for {
			ev, ok := c.inbox.Take()
			if !ok {
				break
			}
			c.handle(ev)
			c.publish()
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evStart:
		if c.running {
			return
		}
		c.running = true
		c.quality = c.policy.Clamp(c.initial)
		c.status = fmt.Sprintf("Connecting to quality %d", c.quality)
		c.logger.Info("starting stream", zap.Int("quality", c.quality), zap.String("endpoint", c.Endpoint(c.quality)))
		c.publish()
		c.channel.Open(c.Endpoint(c.quality))
		c.armTicker()

	case evStop:
		if !c.running {
			return
		}
		c.running = false
		c.open = false
		c.adjusting = false
		c.stopTicker()
		c.channel.Close()
		c.status = "Disconnected"
		c.logger.Info("stream stopped")

	case evOpen:
		c.open = true
		c.adjusting = false
		c.rates.Reset(c.clock.Now())
		c.rate = 0
		c.status = "Connected"

	case evClose:
		c.open = false
		if !c.adjusting {
			c.status = "Disconnected"
		}

	case evError:
		c.status = "Connection error"
		c.logger.Warn("stream channel error",
			zap.Error(ev.err),
			zap.String("category", connection.ClassifyError(ev.err).String()))

	case evExhausted:
		c.status = "Disconnected"
		c.logger.Warn("stream channel gave up reconnecting", zap.Int("quality", c.quality))

	case evFrame:
		if !c.open {
			return
		}
		now := c.clock.Now()
		c.rates.Add(now)
		c.frames.Put(ev.payload, c.quality, now)
		c.lastFrame = now

	case evTick:
		c.ticker = nil
		if !c.running {
			return
		}
		c.armTicker()
		if !c.open {
			return
		}
		c.adjust(c.clock.Now())
	}
}

// adjust runs once per tick while the channel is open.
func (c *Controller) adjust(now time.Time) {
	rate := c.rates.Rate(now)
	c.rate = rate
	// A reopen lands some time after the tick that asked for it. Half a
	// tick of samples is enough to decide on the next one.
	if c.rates.Observed(now) < c.tick/2 {
		return
	}

	next, changed := c.policy.Decide(c.quality, rate)
	if !changed {
		return
	}
	reason := "high FPS"
	if next < c.quality {
		reason = "low FPS"
	}
	c.logger.Info("adjusting stream quality",
		zap.Int("from", c.quality),
		zap.Int("to", next),
		zap.Float64("fps", rate),
		zap.String("reason", reason))

	c.quality = next
	c.renegotiations++
	c.adjusting = true
	c.status = fmt.Sprintf("Adjusting quality to %d (%s)", next, reason)
	c.publish()
	c.channel.Open(c.Endpoint(next))
}

func (c *Controller) armTicker() {
	c.stopTicker()
	c.ticker = c.clock.AfterFunc(c.tick, func() {
		c.inbox.Post(event{kind: evTick})
	})
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Quality = c.quality
	c.stats.FPS = c.rate
	c.stats.Status = c.status
	c.stats.Renegotiations = c.renegotiations
	c.stats.LastFrameAt = c.lastFrame
}

// channelEvents forwards media channel callbacks into the controller inbox.
type channelEvents struct{ c *Controller }

func (h channelEvents) OnOpen() { h.c.inbox.Post(event{kind: evOpen}) }

func (h channelEvents) OnMessage(p []byte) { h.c.inbox.Post(event{kind: evFrame, payload: p}) }

func (h channelEvents) OnClose() { h.c.inbox.Post(event{kind: evClose}) }

func (h channelEvents) OnError(err error) { h.c.inbox.Post(event{kind: evError, err: err}) }

func (h channelEvents) OnExhausted() { h.c.inbox.Post(event{kind: evExhausted}) }
