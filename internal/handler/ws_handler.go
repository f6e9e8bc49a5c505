package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/battleodds/internal/auth"
	"github.com/freeeve/battleodds/internal/logger"
	"github.com/freeeve/battleodds/pkg/odds"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 1 << 20
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware
	},
}

// ClientMessage is the envelope for messages sent from the client. Action is
// "compute" (the default) or "cancel".
type ClientMessage struct {
	Action  string       `json:"action,omitempty"`
	ID      string       `json:"id"`
	Request odds.Request `json:"request"`
}

// LiveHandler streams odds to a client that keeps changing its mind, such as
// a UI recomputing as the player edits a battle. Each request supersedes the
// one before it.
type LiveHandler struct {
	hub      *Hub
	computer Computer
	jwtMgr   *auth.JWTManager
}

// NewLiveHandler creates a LiveHandler.
func NewLiveHandler(hub *Hub, computer Computer, jwtMgr *auth.JWTManager) *LiveHandler {
	return &LiveHandler{hub: hub, computer: computer, jwtMgr: jwtMgr}
}

// ServeWS handles GET /api/v1/ws and upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers).
func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}
	if !claims.HasScope(auth.ScopeOdds) {
		http.Error(w, `{"error":"token lacks required scope"}`, http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:   conn,
		client: claims.Client,
		send:   make(chan []byte, sendBufSize),
	}
	h.hub.Register(client)
	h.hub.Send(client, WSEvent{Type: EventConnected, Data: map[string]any{}})

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("client", claims.Client).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads requests from the WebSocket connection.
func (h *LiveHandler) readPump(c *WSConn) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
		log.Info().Str("client", c.client).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client", c.client).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.hub.Send(c, WSEvent{Type: EventError, Data: "invalid message"})
			continue
		}

		switch msg.Action {
		case "", "compute":
			h.compute(c, msg)
		case "cancel":
			c.stop()
		default:
			h.hub.Send(c, WSEvent{Type: EventError, ID: msg.ID, Data: "unknown action " + msg.Action})
		}
	}
}

// compute starts msg's evaluation in the background, cancelling the
// connection's previous one.
func (h *LiveHandler) compute(c *WSConn, msg ClientMessage) {
	ctx := logger.WithRequestID(context.Background(), logger.NewRequestID())
	ctx, seq := c.begin(ctx)

	go func() {
		res, err := h.computer.Compute(ctx, msg.Request)
		if !c.finish(seq) {
			l := logger.ForRequest(ctx)
			l.Debug().Str("id", msg.ID).Msg("Dropping superseded result")
			return
		}
		if err != nil {
			h.hub.Send(c, WSEvent{Type: EventError, ID: msg.ID, Data: err.Error()})
			return
		}
		h.hub.Send(c, WSEvent{Type: EventResult, ID: msg.ID, Data: res})
	}()
}

// writePump writes messages to the WebSocket connection.
func (h *LiveHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
