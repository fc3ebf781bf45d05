package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event is the wire format pushed to every connected dashboard. Consumers
// refetch the entity they care about when they see a matching event.
type Event struct {
	EntityType string    `json:"entityType"`
	Action     string    `json:"action"`
	Timestamp  time.Time `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out lifecycle events to every connected dashboard socket. It
// satisfies the Broadcaster interface of the lifecycle managers.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// Publish is fire-and-forget: a dead socket is dropped, never retried, and
// delivery failures do not surface to the caller.
func (h *Hub) Publish(entityType, action string) {
	payload, err := json.Marshal(Event{EntityType: entityType, Action: action, Timestamp: time.Now()})
	if err != nil {
		log.Printf("dashboard: marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, c)
			_ = c.Close()
		}
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ClientCount reports the number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and holds the socket open. The protocol is
// server push only; client messages are discarded.
func (h *Hub) Serve(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.register(ws)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.unregister(ws)
			_ = ws.Close()
			break
		}
	}
	return nil
}
