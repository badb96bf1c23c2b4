// internal/store/memory.go
//
// In-memory session store.
// Live rounds are never persisted: a Session holds a *game.State whose timers
// only make sense inside this process.
//
// Characteristics:
//   - Sessions keyed by ID in a map, guarded by an RWMutex.
//   - Get enforces ownership; a session owned by someone else is "not found".
//   - Reap drops sessions idle longer than a TTL and stops their timers.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avallbona/patterngrid/internal/game"
)

// ErrNotFound is returned for unknown IDs and for sessions owned by someone else.
var ErrNotFound = errors.New("not found")

// Mode distinguishes free play from the daily challenge.
type Mode string

const (
	ModeFree  Mode = "free"
	ModeDaily Mode = "daily"
)

// Session is one owner's live game.
type Session struct {
	ID       string
	Owner    string // user ID or anonymous cookie ID
	Mode     Mode
	Date     string // daily date key; empty in free mode
	State    *game.State
	LastSeen time.Time
}

// Store defines the persistence interface for live sessions.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID for owner and refreshes LastSeen.
	Get(ctx context.Context, id, owner string) (*Session, error)

	// Delete removes a session and stops its pending timers.
	Delete(ctx context.Context, id, owner string) error

	// Reap drops sessions not seen since before cutoff and reports how many.
	Reap(ctx context.Context, cutoff time.Time) int

	// Len reports the number of live sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session), now: time.Now}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" || s.State == nil {
		return errors.New("store: incomplete session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.LastSeen = m.now()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Get(ctx context.Context, id, owner string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Owner != owner {
		return nil, ErrNotFound
	}
	s.LastSeen = m.now()
	return s, nil
}

func (m *memory) Delete(ctx context.Context, id, owner string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.Owner != owner {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.State.Close()
	return nil
}

func (m *memory) Reap(ctx context.Context, cutoff time.Time) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastSeen.Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.State.Close()
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
