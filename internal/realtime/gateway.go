package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens before the upgrade; cross-origin pages cannot forge
		// the bearer token.
		return true
	},
}

// Conn is one live websocket connection. Writes go through the buffered send
// channel so a slow client backs up its own connection, not the publisher.
type Conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues payload without blocking. Returns false when the buffer is
// full or the connection is closing.
func (c *Conn) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close marks the connection dead and releases the write pump. Safe against
// concurrent trySend calls.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Gateway upgrades authenticated requests to websocket connections and
// implements the in-app adapter's Pusher.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Registry exposes the connection index for health reporting.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Handle upgrades the request and pumps the connection until it closes. The
// caller has already authenticated the request; userID comes from its token.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			zap.String("userID", userID), zap.Error(err))
		return
	}

	c := &Conn{ws: ws, send: make(chan []byte, sendBuffer)}
	g.registry.Add(userID, c)
	logger.Debug("websocket connected", zap.String("userID", userID))

	go c.writePump()
	c.readPump()

	g.registry.Remove(c)
	c.close()
	logger.Debug("websocket disconnected", zap.String("userID", userID))
}

// Push sends the notification to every live connection of the user and
// returns how many accepted it. A connection with a full send buffer is
// skipped, never blocked on.
func (g *Gateway) Push(ctx context.Context, userID string, n *core.Notification) int {
	return g.PushEvent(ctx, userID, "notification", n)
}

// PushEvent sends an arbitrary lifecycle event for the notification to the
// user's live connections. The read-state sync across a user's open tabs
// rides on this.
func (g *Gateway) PushEvent(_ context.Context, userID, event string, n *core.Notification) int {
	payload, err := json.Marshal(map[string]any{
		"event":        event,
		"notification": n,
	})
	if err != nil {
		logger.Error("marshal push payload", zap.Error(err))
		return 0
	}

	pushed := 0
	for _, c := range g.registry.Connections(userID) {
		if c.trySend(payload) {
			pushed++
		} else {
			logger.Warn("websocket push dropped",
				zap.String("userID", userID))
		}
	}
	return pushed
}

// readPump consumes client frames until the connection dies. Clients only
// send pongs and close frames; anything else is discarded.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. It owns all writes to the underlying connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
