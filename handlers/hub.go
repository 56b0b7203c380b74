package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"rerolab/services/booking"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const hubWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the local API is already behind CORS
	},
}

type hubClient struct {
	conn  *websocket.Conn
	hello []byte
}

// Hub pushes slot updates to local UIs over websockets. Only the Run
// goroutine writes to client connections.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan hubClient
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan hubClient),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer func() {
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client.conn] = true
			if client.hello != nil {
				h.write(client.conn, client.hello)
			}
			h.logger.Info("websocket client connected", zap.Int("clients", len(h.clients)))

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.logger.Info("websocket client disconnected", zap.Int("clients", len(h.clients)))

		case message := <-h.broadcast:
			for conn := range h.clients {
				h.write(conn, message)
			}
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) write(conn *websocket.Conn, message []byte) {
	conn.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Debug("error writing to websocket client", zap.Error(err))
		conn.Close()
		delete(h.clients, conn)
	}
}

// Broadcast queues v for every client. It drops the message when the hub is
// behind.
func (h *Hub) Broadcast(v interface{}) {
	message, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("error marshaling hub message", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel is full, dropping message")
	}
}

// Forward broadcasts store updates until the subscription ends or ctx is
// cancelled.
func (h *Hub) Forward(ctx context.Context, updates <-chan booking.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(u)
		}
	}
}

// Handler upgrades the request and registers the client. greet, when set,
// produces the first message the client receives.
func (h *Hub) Handler(greet func() interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			getLogger(c).Warn("failed to upgrade to websocket", zap.Error(err))
			return
		}

		client := hubClient{conn: conn}
		if greet != nil {
			client.hello, _ = json.Marshal(greet())
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						h.logger.Debug("websocket client error", zap.Error(err))
					}
					return
				}
			}
		}()
	}
}
