package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Factory builds a new session for the given ID.
type Factory func(id string) *Session

// Manager keys sessions by ID. The lock only guards the map; turns on different
// sessions run independently.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	newSession Factory
}

func NewManager(factory Factory) *Manager {
	return &Manager{
		sessions:   map[string]*Session{},
		newSession: factory,
	}
}

func normalizeID(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[normalizeID(id)]
	return s, ok
}

// GetOrCreate returns the session for id, creating it on first use. An empty id
// maps to DefaultSessionID.
func (m *Manager) GetOrCreate(id string) *Session {
	id = normalizeID(id)
	if s, ok := m.Get(id); ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := m.newSession(id)
	s.SessionID = id
	m.sessions[id] = s
	log.Debug().Str("session_id", id).Int("sessions", len(m.sessions)).Msg("created session")
	return s
}

// Reset clears the history of the session with the given id. It returns false if no
// such session exists.
func (m *Manager) Reset(id string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	s.Reset()
	return true
}

func (m *Manager) Delete(id string) bool {
	id = normalizeID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// IDs returns the known session IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
