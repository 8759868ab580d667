// Package gateway exposes the live pipeline over WebSocket for dashboards:
// closed periods and admitted signals are broadcast to every connected
// client, and new clients receive the latest period per symbol on connect.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"algotrader/internal/model"
)

const (
	writeWait     = 10 * time.Second
	clientBufSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboard runs on a different origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope is the wire format pushed to dashboard clients.
type envelope struct {
	Type   string          `json:"type"` // "period", "signal", "snapshot"
	Symbol string          `json:"symbol,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub manages WebSocket clients and fans pipeline events out to them.
// Slow clients are disconnected rather than allowed to stall the hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string]json.RawMessage // symbol -> last period envelope
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		latest:  make(map[string]json.RawMessage),
		log:     slog.Default().With(slog.String("component", "gateway")),
	}
}

// Run consumes periods and signals until ctx is cancelled. Either channel
// may be nil.
func (h *Hub) Run(ctx context.Context, periods <-chan model.PeriodMessage, signals <-chan model.Signal) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg, ok := <-periods:
			if !ok {
				periods = nil
				continue
			}
			h.BroadcastPeriod(msg)
		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			h.BroadcastSignal(s)
		}
	}
}

// BroadcastPeriod pushes one closed period to every client and records it
// as the symbol's latest snapshot.
func (h *Hub) BroadcastPeriod(msg model.PeriodMessage) {
	data, err := json.Marshal(envelope{Type: "period", Symbol: msg.Symbol, Data: msg.Period.JSON()})
	if err != nil {
		return
	}
	h.mu.Lock()
	h.latest[msg.Symbol] = data
	h.mu.Unlock()
	h.broadcast(data)
}

// BroadcastSignal pushes one admitted signal to every client.
func (h *Hub) BroadcastSignal(s model.Signal) {
	data, err := json.Marshal(envelope{Type: "signal", Symbol: s.Symbol, Data: s.JSON()})
	if err != nil {
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Buffer full: the client is too slow, cut it loose.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// ServeWS upgrades an HTTP request to a client connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", slog.String("err", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBufSize)}

	h.mu.Lock()
	h.clients[c] = true
	// Seed the new client with the latest period per symbol.
	for _, data := range h.latest {
		select {
		case c.send <- data:
		default:
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Info("client connected", slog.Int("clients", n))
	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}

// readPump discards inbound frames; its job is detecting disconnects.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}
