package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/psantana5/botkeeper/pkg/logging"
	"github.com/psantana5/botkeeper/pkg/models"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// Slow clients are dropped rather than backpressuring the supervisor
	wsSendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is a local/admin surface behind auth, not a browser app
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHub streams supervisor events to websocket subscribers
type EventHub struct {
	log *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]bool
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan models.Event
}

// NewEventHub creates an empty hub
func NewEventHub(log *logging.Logger) *EventHub {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &EventHub{
		log:     log,
		clients: make(map[*wsClient]bool),
	}
}

// Broadcast fans an event out to every connected client. Clients whose
// send buffer is full are disconnected.
func (h *EventHub) Broadcast(e models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// HandleWS upgrades the connection and streams events until the client
// disconnects or the hub closes
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan models.Event, wsSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client frames; it exists to observe the close
func (h *EventHub) readPump(c *wsClient) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *EventHub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	c.conn.Close()
}

// ClientCount returns the number of connected subscribers
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and refuses new ones
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
