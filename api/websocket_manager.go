package api

import (
	"sync"

	"github.com/gorilla/websocket"
)

// reloadConn wraps a WebSocket connection with its own mutex so concurrent
// broadcasts never interleave writes.
type reloadConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// ReloadHub manages the live-reload WebSocket connections of open preview
// pages and broadcasts theme-change notifications to them.
type ReloadHub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*reloadConn
}

func NewReloadHub() *ReloadHub {
	return &ReloadHub{
		connections: make(map[*websocket.Conn]*reloadConn),
	}
}

// Add registers a connection with the hub.
func (h *ReloadHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = &reloadConn{conn: conn}
}

// Remove drops a connection from the hub.
func (h *ReloadHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

// Count returns the number of connected preview pages.
func (h *ReloadHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends a message to every connected page. Dead connections are
// removed as they are discovered.
func (h *ReloadHub) Broadcast(message map[string]interface{}) {
	h.mu.RLock()
	conns := make([]*reloadConn, 0, len(h.connections))
	for _, rc := range h.connections {
		conns = append(conns, rc)
	}
	h.mu.RUnlock()

	for _, rc := range conns {
		rc.mu.Lock()
		err := rc.conn.WriteJSON(message)
		rc.mu.Unlock()

		if err != nil {
			h.Remove(rc.conn)
		}
	}
}
