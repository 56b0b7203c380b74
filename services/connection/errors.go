package connection

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned by Send when the handle has no open socket.
	ErrNotConnected = errors.New("connection: not connected")
	// ErrManagerStopped is returned once the manager loop has exited.
	ErrManagerStopped = errors.New("connection: manager stopped")
)

// ErrorCategory classifies transport failures for log fields.
type ErrorCategory int

const (
	// ErrCategoryNetwork covers refused, reset and timed out connections.
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryAuth covers handshakes rejected with 401/403 or policy closes.
	ErrCategoryAuth
	// ErrCategoryProtocol covers malformed frames and unexpected close codes.
	ErrCategoryProtocol
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryAuth:
		return "auth"
	case ErrCategoryProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// ClassifyError analyses a dial or read error. Every category is retried the
// same way; the classification only feeds logs.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.ClosePolicyViolation:
			return ErrCategoryAuth
		case websocket.CloseProtocolError, websocket.CloseUnsupportedData,
			websocket.CloseInvalidFramePayloadData, websocket.CloseMessageTooBig:
			return ErrCategoryProtocol
		default:
			return ErrCategoryNetwork
		}
	}

	var hsErr *HandshakeError
	if errors.As(err, &hsErr) {
		if hsErr.StatusCode == 401 || hsErr.StatusCode == 403 {
			return ErrCategoryAuth
		}
		return ErrCategoryProtocol
	}

	if errors.Is(err, websocket.ErrBadHandshake) {
		return ErrCategoryProtocol
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"connection", "refused", "reset", "timeout", "unreachable", "eof", "broken pipe", "no such host"} {
		if strings.Contains(msg, kw) {
			return ErrCategoryNetwork
		}
	}
	return ErrCategoryUnknown
}

// HandshakeError is returned by WebsocketDialer when the server answered the
// upgrade request with a non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return "connection: handshake failed with status " + httpStatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// isNormalClose reports whether err is an orderly close initiated by either
// side, which does not warrant an OnError callback.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
