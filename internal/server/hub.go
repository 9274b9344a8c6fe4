package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// client is one connected websocket subscriber to pass-progress events.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans MigrationUpdate events out to every connected admin-surface
// client (spec §6 "GET /ws ... live MigrationUpdate-shaped progress
// events"), trimmed from the teacher's internal/server/websocket.go —
// same register/unregister/broadcast loop, stripped of the
// container-log-streaming path that doesn't apply here.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     *zap.Logger
	running    bool
}

// NewHub creates an idle Hub; call Run to start its dispatch loop.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger,
	}
}

// Run drives the hub's dispatch loop; call it from its own goroutine. The
// loop keeps running after Stop.
func (h *Hub) Run() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("admin client connected", zap.Int("total", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("admin client disconnected", zap.Int("total", n))

		case msg, ok := <-h.broadcast:
			if !ok {
				return
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					go func(c *client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop disconnects every current client. It does not end the loop started
// by Run, which goes on serving register/unregister and broadcasts.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*client]bool)
}

// MigrationUpdate is the event shape streamed over /ws (spec §6).
type MigrationUpdate struct {
	Migration string `json:"migration"`
	Event     string `json:"event"` // "pass_started", "pass_complete", "pass_failed"
	Scanned   int64  `json:"scanned,omitempty"`
	Moved     int64  `json:"moved,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// BroadcastUpdate marshals and fans out a MigrationUpdate; a full
// broadcast buffer drops the update rather than blocking the caller — the
// admin surface is an observability convenience, not part of the pipeline.
func (h *Hub) BroadcastUpdate(u MigrationUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("failed to marshal migration update", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("admin broadcast buffer full, dropping update", zap.String("migration", u.Migration))
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
