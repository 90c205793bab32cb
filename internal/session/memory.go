package session

import (
	"sync"
	"time"
)

// MemoryStore is the default in-process Store. Entries expire lazily on
// access after the configured idle time.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	expires  time.Duration
	maxTurns int
}

type entry struct {
	session *Session
	touched time.Time
}

// NewMemoryStore creates a MemoryStore. expiresSeconds <= 0 disables expiry.
func NewMemoryStore(expiresSeconds, maxTurns int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		expires:  time.Duration(expiresSeconds) * time.Second,
		maxTurns: maxTurns,
	}
}

// Get returns the session for id, dropping it first if it sat idle past the
// expiry window.
func (m *MemoryStore) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok {
		if m.expires <= 0 || time.Since(e.touched) < m.expires {
			e.touched = time.Now()
			return e.session
		}
		delete(m.sessions, id)
	}

	s := &Session{ID: id, UpdatedAt: time.Now()}
	m.sessions[id] = &entry{session: s, touched: time.Now()}
	return s
}

// Save trims the session to the turn budget. The MemoryStore hands out live
// references, so there is nothing else to write back.
func (m *MemoryStore) Save(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Trim(m.maxTurns)
	if e, ok := m.sessions[s.ID]; ok {
		e.touched = time.Now()
	}
}

// Clear discards the session's history.
func (m *MemoryStore) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ClearAll discards every session.
func (m *MemoryStore) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*entry)
}

// Len returns the number of live sessions (expired ones may still count
// until next access).
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
