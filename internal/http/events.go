package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agrogestion/internal/core"
	"agrogestion/internal/ledger"
	"agrogestion/internal/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames.
	maxMessageSize = 512

	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access is decided by the bearer token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is what /api/events pushes to a connected client after one of its
// owner's expenses changed. Clients reload the affected views.
type Event struct {
	Type   string        `json:"type"`
	Change ledger.Change `json:"change"`
	At     time.Time     `json:"at"`
}

const EventExpenseChanged = "expense.changed"

// Hub tracks live connections per owner and pushes change events to them.
// It implements ledger.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	closed  bool
	logger  *log.Logger
}

var _ ledger.Notifier = (*Hub)(nil)

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		logger:  logger.WithComponent(log.ComponentHTTP),
	}
}

type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	owner string
	send  chan []byte
}

// Notify pushes c to the owner's connections. A client whose buffer is full
// misses the event.
func (h *Hub) Notify(ctx context.Context, c ledger.Change) error {
	data, err := json.Marshal(Event{Type: EventExpenseChanged, Change: c, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[c.OwnerID] {
		select {
		case client.send <- data:
		default:
			h.logger.WarnContext(ctx, "Dropping event for slow client", log.FieldOwnerID, c.OwnerID)
		}
	}
	return nil
}

// Connections reports how many clients of owner are connected.
func (h *Hub) Connections(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[ownerID])
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.owner]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.owner] = set
	}
	set[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.owner]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.owner)
	}
	close(c.send)
}

// Close disconnects every client. Later upgrades are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for owner, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, owner)
	}
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, u core.User) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.FromContext(r.Context()).WarnContext(r.Context(), "Websocket upgrade failed", log.FieldError, err)
		return
	}
	c := &wsClient{hub: h, conn: conn, owner: u.ID, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.DebugContext(r.Context(), "Event stream opened", log.FieldOwnerID, u.ID)

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames so pongs and closes are seen.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
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
