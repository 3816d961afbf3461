package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/models"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type hubConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Hub tracks the push connection of each session. A newer connection for the same session replaces the older one.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*hubConn
	logger *log.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{conns: make(map[string]*hubConn), logger: logger}
}

// Register associates conn with the session.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[sessionID] = &hubConn{conn: conn}
	count := len(h.conns)
	h.mu.Unlock()

	h.logger.Debug("session connected", "session", sessionID, "connections", count)
}

// Unregister removes the session's connection if it is still conn.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.conns[sessionID]; ok && c.conn == conn {
		delete(h.conns, sessionID)
		h.logger.Debug("session disconnected", "session", sessionID)
	}
}

// Send writes an event to the session's connection. Sessions without a connection are skipped and report false.
func (h *Hub) Send(sessionID string, event models.Event) bool {
	h.mu.RLock()
	c, ok := h.conns[sessionID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(event); err != nil {
		h.logger.Warn("failed to push event", "session", sessionID, "type", event.Type, "error", err)
		return false
	}
	return true
}

// Connected reports whether the session has a push connection.
func (h *Hub) Connected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[sessionID]
	return ok
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll sends a going-away frame to every connection and closes it.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*hubConn)
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
