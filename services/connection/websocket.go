package connection

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer dials endpoints with gorilla/websocket.
type WebsocketDialer struct {
	Dialer       *websocket.Dialer
	Header       func() http.Header
	WriteTimeout time.Duration
	ReadLimit    int64
}

// NewWebsocketDialer returns a dialer with a bounded handshake. header, when
// not nil, is called on every dial so that a refreshed session is picked up.
func NewWebsocketDialer(header func() http.Header) *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		Header:       header,
		WriteTimeout: 5 * time.Second,
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	var h http.Header
	if d.Header != nil {
		h = d.Header()
	}
	c, resp, err := d.Dialer.DialContext(ctx, endpoint, h)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{conn: c, writeTimeout: d.WriteTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (c *wsConn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

func (c *wsConn) WriteMessage(messageType int, data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(messageType, data)
}

// Close sends a close frame and tears the socket down. Safe to call twice.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func httpStatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return strconv.Itoa(code) + " " + text
	}
	return strconv.Itoa(code)
}
