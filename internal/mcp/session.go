package mcp

import (
	"sync"

	"github.com/google/uuid"
)

// SessionManager maps Mcp-Session-Id values to user ids.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]string
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]string)}
}

// Create registers a new session for the user and returns its id.
func (m *SessionManager) Create(userID string) string {
	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = userID
	m.mu.Unlock()
	return id
}

// UserID resolves a session id to its user.
func (m *SessionManager) UserID(sessionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.sessions[sessionID]
	return userID, ok
}

// Remove drops a session. Unknown ids are ignored.
func (m *SessionManager) Remove(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}
