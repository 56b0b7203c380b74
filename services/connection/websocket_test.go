package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rerolab/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, p, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, append([]byte("echo:"), p...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketDialer_EndToEnd(t *testing.T) {
	srv := echoServer(t)
	dialer := NewWebsocketDialer(func() http.Header {
		h := http.Header{}
		h.Set("Authorization", "Bearer token-1")
		return h
	})

	got := make(chan string, 1)
	m := NewManager(dialer, HandlerFuncs{
		Message: func(p []byte) { got <- string(p) },
	}, WithLogger(zaptest.NewLogger(t)))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-m.Done()
	}()
	go m.Run(ctx)

	m.Open(wsURL(srv))
	waitFor(t, "open", func() bool { return m.Status().State == models.ConnOpen })
	if err := m.Send([]byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg := <-got; msg != "echo:ping" {
		t.Errorf("got %q, want echo:ping", msg)
	}

	m.Close()
	waitFor(t, "closed", func() bool { return m.Status().State == models.ConnClosed })
}

func TestWebsocketDialer_RejectedHandshakeIsAuthError(t *testing.T) {
	srv := echoServer(t)
	dialer := NewWebsocketDialer(nil)

	_, err := dialer.Dial(context.Background(), wsURL(srv))
	if err == nil {
		t.Fatal("expected handshake error")
	}
	var hs *HandshakeError
	if !errors.As(err, &hs) || hs.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want HandshakeError 401", err)
	}
	if ClassifyError(err) != ErrCategoryAuth {
		t.Errorf("category = %s, want auth", ClassifyError(err))
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrCategoryNetwork},
		{"policy close", &websocket.CloseError{Code: websocket.ClosePolicyViolation}, ErrCategoryAuth},
		{"protocol close", &websocket.CloseError{Code: websocket.CloseProtocolError}, ErrCategoryProtocol},
		{"abnormal close", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, ErrCategoryNetwork},
		{"bad handshake", websocket.ErrBadHandshake, ErrCategoryProtocol},
		{"deadline", context.DeadlineExceeded, ErrCategoryNetwork},
		{"other", errors.New("boom"), ErrCategoryUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Errorf("ClassifyError(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}
