package web

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sweeney/roof-driver/internal/status"
)

var upgrader = websocket.Upgrader{
	// The status feed is read-only and local; any origin may watch it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub tracks connected websocket clients. Broadcast failures evict the
// client; slow consumers never block the run loop for long.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

func (h *hub) empty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) == 0
}

func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.clients, c)
			c.Close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}

// handleWS upgrades the connection, sends the current status once, and
// keeps the client registered for tick broadcasts until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	s.hub.add(c)

	// Immediate snapshot so the page renders without waiting for a tick.
	s.hub.mu.Lock()
	werr := c.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
	s.hub.mu.Unlock()
	if werr != nil {
		s.hub.remove(c)
		return
	}

	// Drain (and discard) client frames until the connection drops.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				s.hub.remove(c)
				return
			}
		}
	}()
}
