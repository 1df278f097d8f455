package realtime

import (
	"sync"
)

// Hub tracks the live server-side connections, one active socket per user.
// Conversations are participant pairs, so fan-out is direct user delivery
// rather than room membership.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection // sessionID -> connection
	userSessions map[string]string      // userID -> sessionID
}

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]string),
	}
}

// Attach registers a connection for its user. If a previous session exists,
// it is swapped out and closed to enforce one active socket per user.
func (h *Hub) Attach(conn *Connection) {
	var previous *Connection

	h.mu.Lock()
	if existingID, ok := h.userSessions[conn.UserID]; ok {
		if existing := h.sessions[existingID]; existing != nil {
			previous = existing
			delete(h.sessions, existingID)
		}
	}
	h.sessions[conn.ID] = conn
	h.userSessions[conn.UserID] = conn.ID
	h.mu.Unlock()

	conn.Start()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes a connection if it is still tracked.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.sessions[conn.ID]; ok {
		delete(h.sessions, conn.ID)
		if current, ok := h.userSessions[conn.UserID]; ok && current == conn.ID {
			delete(h.userSessions, conn.UserID)
		}
	}
	h.mu.Unlock()
}

// NotifyUser delivers payload to the current connection of the given user.
// Returns false when the user has no live socket, letting callers fall back
// to the offline-notification queue.
func (h *Hub) NotifyUser(userID string, payload []byte) bool {
	h.mu.RLock()
	sessionID, ok := h.userSessions[userID]
	if !ok {
		h.mu.RUnlock()
		return false
	}
	conn := h.sessions[sessionID]
	h.mu.RUnlock()
	if conn == nil {
		return false
	}
	return conn.Send(payload) == nil
}

// Online reports whether the user currently has a live socket.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	_, ok := h.userSessions[userID]
	h.mu.RUnlock()
	return ok
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.userSessions = make(map[string]string)
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "hub shutdown")
	}
}
