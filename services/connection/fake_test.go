package connection

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Frames pushed with deliver are returned by
// ReadMessage; Close unblocks the reader with io.EOF.
type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case p := <-c.in:
		return TextMessage, p, nil
	case <-c.closed:
		return 0, nil, io.ErrUnexpectedEOF
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed conn")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(p []byte) { c.in <- p }

// drop simulates the server going away.
func (c *fakeConn) drop() { c.Close() }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// fakeDialer answers dials from a script; once the script is exhausted every
// dial fails.
type fakeDialer struct {
	mu        sync.Mutex
	script    []func() (Conn, error)
	endpoints []string
	conns     []*fakeConn
	now       func() time.Time
	dialTimes []time.Time
}

func (d *fakeDialer) succeed() *fakeDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, func() (Conn, error) {
		c := newFakeConn()
		d.conns = append(d.conns, c)
		return c, nil
	})
	return d
}

func (d *fakeDialer) fail(n int) *fakeDialer {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.script = append(d.script, func() (Conn, error) { return nil, errors.New("dial tcp: connection refused") })
	}
	return d
}

func (d *fakeDialer) Dial(_ context.Context, endpoint string) (Conn, error) {
	d.mu.Lock()
	d.endpoints = append(d.endpoints, endpoint)
	if d.now != nil {
		d.dialTimes = append(d.dialTimes, d.now())
	}
	var next func() (Conn, error)
	if len(d.script) > 0 {
		next = d.script[0]
		d.script = d.script[1:]
	}
	d.mu.Unlock()
	if next == nil {
		return nil, errors.New("dial tcp: connection refused")
	}
	return next()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.endpoints)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// recorder is a Handler that records callbacks in order.
type recorder struct {
	mu       sync.Mutex
	events   []string
	messages [][]byte
	onClose  func()
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnOpen() { r.add("open") }

func (r *recorder) OnMessage(p []byte) {
	r.mu.Lock()
	r.messages = append(r.messages, p)
	r.mu.Unlock()
	r.add("message")
}

func (r *recorder) OnClose() {
	r.add("close")
	if r.onClose != nil {
		r.onClose()
	}
}

func (r *recorder) OnError(error) { r.add("error") }

func (r *recorder) OnExhausted() { r.add("exhausted") }

func (r *recorder) count(ev string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == ev {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
