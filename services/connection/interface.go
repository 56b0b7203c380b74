package connection

import (
	"context"

	"github.com/gorilla/websocket"
)

// Message types understood by Conn, identical to the websocket frame opcodes.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Conn is one live socket. Reads happen on a single reader goroutine and
// writes only from the manager loop, so implementations need not be safe for
// concurrent writers.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes a Conn to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Handler receives lifecycle events of a Manager. Callbacks run on the
// manager goroutine one at a time and must not block; in particular they must
// not call Manager.Send. Posting to another component's mailbox is the
// intended pattern. Calling Manager.Close or Manager.Open from a callback is
// safe.
type Handler interface {
	OnOpen()
	OnMessage(payload []byte)
	OnClose()
	OnError(err error)
}

// ExhaustedHandler is implemented by handlers that want to know when
// automatic reconnection has given up.
type ExhaustedHandler interface {
	OnExhausted()
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Open      func()
	Message   func(payload []byte)
	Close     func()
	Error     func(err error)
	Exhausted func()
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnMessage(payload []byte) {
	if h.Message != nil {
		h.Message(payload)
	}
}

func (h HandlerFuncs) OnClose() {
	if h.Close != nil {
		h.Close()
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

func (h HandlerFuncs) OnExhausted() {
	if h.Exhausted != nil {
		h.Exhausted()
	}
}
