// Package events broadcasts configuration lifecycle events to management
// UIs over websocket connections.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GoAITrader/tradegate/internal/pkg/logger"
	"github.com/GoAITrader/tradegate/internal/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 15 * time.Second
	// If no frame (or pong) arrives within the ping period plus a buffer,
	// the peer is assumed dead.
	readTimeout = pingPeriod + 10*time.Second
	sendBuffer  = 16
)

// Event is the wire envelope pushed to every subscriber.
type Event struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Hub fans events out to all connected websocket clients. Subscribers that
// cannot keep up are dropped rather than allowed to stall the publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish implements service.EventPublisher. It never blocks: a client whose
// buffer is full is evicted.
func (h *Hub) Publish(event string, payload any) {
	ev := Event{Event: event, Payload: payload, At: time.Now().UTC()}

	h.mu.Lock()
	stale := make([]*client, 0)
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		logger.Warn("Dropping slow event subscriber", "event", event)
		h.remove(c)
	}
}

// Serve upgrades the request and streams events until the peer disconnects.
// It blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.EventClients.Inc()

	go c.writePump()
	c.readPump()
	h.remove(c)
}

// ClientCount reports the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close evicts every subscriber. Publish after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

// remove untracks a client and closes its send channel exactly once. The
// write pump drains out and closes the underlying connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, tracked := h.clients[c]
	if tracked {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if tracked {
		close(c.send)
		metrics.EventClients.Dec()
	}
}

// writePump serializes all writes to the connection: queued events plus
// keep-alive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

// readPump discards inbound frames; the stream is one-way. Reading is still
// required to process control frames and notice disconnects.
func (c *client) readPump() {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}
