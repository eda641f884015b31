package session

import (
	"sort"
	"sync"

	"carrot-arena/server/engine"
)

// Manager keeps the live sessions of one process.
type Manager struct {
	rec Recorder

	mu    sync.RWMutex
	games map[string]*Session
}

func NewManager(rec Recorder) *Manager {
	return &Manager{rec: rec, games: map[string]*Session{}}
}

// Start registers a new session for s. The manager takes ownership of s.
func (m *Manager) Start(s *engine.GameState) *Session {
	ss := New("", s, m.rec)
	m.mu.Lock()
	m.games[ss.ID] = ss
	m.mu.Unlock()
	return ss
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ss, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ss, nil
}

func (m *Manager) IDs() []string {
	m.mu.RLock()
	out := make([]string, 0, len(m.games))
	for id := range m.games {
		out = append(out, id)
	}
	m.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Stop closes and forgets one session.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	ss, ok := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	ss.Close()
	return nil
}

func (m *Manager) Close() {
	m.mu.Lock()
	games := m.games
	m.games = map[string]*Session{}
	m.mu.Unlock()
	for _, ss := range games {
		ss.Close()
	}
}
