package soupbin

import (
	"sync"

	"github.com/marketlink/marketlink/metrics"
	"github.com/marketlink/marketlink/wire"
)

// ReplacementPolicy tells Remove how to pick a new current session once the
// old current session is gone.
type ReplacementPolicy int

const (
	// ReplacementNone clears current outright.
	ReplacementNone ReplacementPolicy = iota
	// ReplacementMostRecent picks the most recently inserted session still
	// present after the removal.
	ReplacementMostRecent
	// ReplacementSpecific picks the named session if it is still present,
	// otherwise clears current.
	ReplacementSpecific
)

// Replacement describes the policy Remove should apply when the removed
// session was current.
type Replacement struct {
	Policy ReplacementPolicy
	ID     wire.SessionID
}

// SessionsManager owns the set of live sessions and the single designated
// "current" session that a login with a blank session id resolves to.
// Grounded on the teacher's sol.Manager: a map guarded by one RWMutex, with
// read accessors (Get) taking the read lock and mutators taking the write
// lock.
type SessionsManager struct {
	mu         sync.RWMutex
	sessions   map[wire.SessionID]*Session
	order      []wire.SessionID // insertion order, oldest first
	current    wire.SessionID
	hasCurrent bool
}

// NewSessionsManager returns an empty manager with no current session.
func NewSessionsManager() *SessionsManager {
	return &SessionsManager{sessions: make(map[wire.SessionID]*Session)}
}

// Get returns the session for id, or the current session if id is blank.
func (m *SessionsManager) Get(id wire.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *SessionsManager) getLocked(id wire.SessionID) (*Session, bool) {
	if id.IsBlank() {
		if !m.hasCurrent {
			return nil, false
		}
		id = m.current
	}
	s, ok := m.sessions[id]
	return s, ok
}

// TryAddCurrent inserts s unless a session with the same id already exists,
// and on success also makes s the current session.
func (m *SessionsManager) TryAddCurrent(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.insertLocked(s) {
		return false
	}
	m.current = s.ID()
	m.hasCurrent = true
	return true
}

// TryAdd inserts s unless a session with the same id already exists. The
// current session is left unchanged.
func (m *SessionsManager) TryAdd(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(s)
}

func (m *SessionsManager) insertLocked(s *Session) bool {
	id := s.ID()
	if _, exists := m.sessions[id]; exists {
		return false
	}
	m.sessions[id] = s
	m.order = append(m.order, id)
	metrics.SoupBinActiveSessions.Set(float64(len(m.sessions)))
	return true
}

// SetCurrent makes the session with the given id current, if it exists. It
// reports whether current changed.
func (m *SessionsManager) SetCurrent(id wire.SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	if m.hasCurrent && m.current == id {
		return false
	}
	m.current = id
	m.hasCurrent = true
	return true
}

// Remove deletes the session with the given id. If it was current, repl
// decides the new current session.
func (m *SessionsManager) Remove(id wire.SessionID, repl Replacement) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	metrics.SoupBinActiveSessions.Set(float64(len(m.sessions)))

	wasCurrent := m.hasCurrent && m.current == id
	if !wasCurrent {
		return
	}

	switch repl.Policy {
	case ReplacementNone:
		m.hasCurrent = false
	case ReplacementMostRecent:
		m.hasCurrent = false
		for i := len(m.order) - 1; i >= 0; i-- {
			m.current = m.order[i]
			m.hasCurrent = true
			break
		}
	case ReplacementSpecific:
		if _, ok := m.sessions[repl.ID]; ok {
			m.current = repl.ID
			m.hasCurrent = true
		} else {
			m.hasCurrent = false
		}
	}
}

// Shutdown clears current, ends every session, and drains the set.
func (m *SessionsManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[wire.SessionID]*Session)
	m.order = nil
	m.hasCurrent = false
	metrics.SoupBinActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.End()
	}
}

// Sessions returns a snapshot copy of the live session set, grounded on the
// teacher's GetSessions returning a defensive copy rather than the live map.
func (m *SessionsManager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}
