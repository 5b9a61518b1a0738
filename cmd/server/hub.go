package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/himanishpuri/PulseRate/pkg/models"
	"github.com/himanishpuri/PulseRate/pkg/pulserate"
)

const wsWriteTimeout = 200 * time.Millisecond

// Hub fans readings out to websocket clients. A client may restrict the
// feed to one session with ?session=<id>.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]string
	upgrader websocket.Upgrader
	log      pulserate.Logger
}

func NewHub(allowedOrigins []string, log pulserate.Logger) *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		log: log,
	}
}

func (h *Hub) add(c *websocket.Conn, sessionID string) {
	h.mu.Lock()
	h.conns[c] = sessionID
	h.mu.Unlock()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) snapshot(sessionID string) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c, filter := range h.conns {
		if filter == "" || filter == sessionID {
			clients = append(clients, c)
		}
	}
	return clients
}

func (h *Hub) broadcast(r models.Reading) {
	b, err := json.Marshal(r)
	if err != nil {
		h.log.Errorf("Failed to encode reading: %v", err)
		return
	}
	for _, c := range h.snapshot(r.SessionID) {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = c.Close()
			h.remove(c)
		}
	}
}

// Run forwards readings until ctx is done or the channel closes.
func (h *Hub) Run(ctx context.Context, readings <-chan models.Reading) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			h.broadcast(r)
		}
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	h.add(conn, r.URL.Query().Get("session"))
	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
