package handler

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types sent over WebSocket.
const (
	EventConnected = "connected"
	EventResult    = "result"
	EventError     = "error"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data"`
}

// WSConn wraps a WebSocket connection with its client and the evaluation it
// is currently waiting on.
type WSConn struct {
	conn   *websocket.Conn
	client string
	send   chan []byte

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// begin cancels whatever evaluation the connection was running and returns
// the context and sequence number for the next one.
func (c *WSConn) begin(parent context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.seq++
	c.cancel = cancel
	return ctx, c.seq
}

// finish clears the running evaluation if it is still seq. It reports whether
// seq was current, so superseded results are dropped.
func (c *WSConn) finish(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}

// stop cancels the running evaluation, if any.
func (c *WSConn) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}

// Hub tracks live odds connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[*WSConn]bool)}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection, stops its evaluation and closes its send
// channel.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connections[c] {
		return
	}
	delete(h.connections, c)
	c.stop()
	close(c.send)
}

// Send queues an event for one connection. It drops the event when the
// connection is gone or its buffer is full.
func (h *Hub) Send(c *WSConn, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.connections[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("client", c.client).Msg("Dropping WebSocket message, buffer full")
	}
}

// CancelAll stops every running evaluation, for shutdown.
func (h *Hub) CancelAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		c.stop()
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
