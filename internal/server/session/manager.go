package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/google/uuid"
)

// Manager owns the State of every connected client, keyed by a random id.
// Sessions idle for longer than the TTL are dropped by Sweep.
type Manager struct {
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	state    *State
	lastSeen time.Time
}

func NewManager(ttl time.Duration, logger logging.Logger) *Manager {
	return &Manager{
		ttl:      ttl,
		logger:   logger.With("module", "sessions"),
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session in the created-defaults state.
func (m *Manager) Create() (string, *State) {
	id := uuid.NewString()
	st := NewState()

	m.mu.Lock()
	m.sessions[id] = &entry{state: st, lastSeen: m.now()}
	m.mu.Unlock()

	return id, st
}

// Get returns the live session for id and marks it as used. Expired sessions are
// treated as absent even before the sweeper removes them.
func (m *Manager) Get(id string) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(e.lastSeen) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.state, true
}

// Delete ends a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len reports the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info(ctx, "session sweeper started", "ttl", m.ttl.String(), "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "session sweeper stopped")
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug(ctx, "expired sessions removed", "count", n, "remaining", m.Len())
			}
		}
	}
}
