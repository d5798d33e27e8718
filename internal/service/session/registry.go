package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMood is used when the detection collaborator supplied nothing.
const DefaultMood = "neutral"

// Session is live state bound to one connection. The mood is fixed
// when the session is created and never changes afterward. Nothing
// here is persisted; a process restart loses every session without
// touching stored history.
type Session struct {
	ID        string
	Mood      string
	CreatedAt time.Time

	mu    sync.Mutex
	turns atomic.Int64
}

// Acquire claims the session's single event slot. Inbound events for
// one session are handled strictly one at a time; other sessions are
// unaffected.
func (s *Session) Acquire() { s.mu.Lock() }

// Release frees the event slot claimed by Acquire.
func (s *Session) Release() { s.mu.Unlock() }

// AddTurn bumps the processed-turn counter and returns the new value.
func (s *Session) AddTurn() int64 { return s.turns.Add(1) }

// TurnCount reports how many turns this session has processed.
func (s *Session) TurnCount() int64 { return s.turns.Load() }

// Registry maps live connection identifiers to session state. It is
// constructed once in main and passed to the channel handler; it is
// the only writer of session mood and turn counters.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry bootstraps an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for connID, creating it on first
// sight. The mood argument only matters on creation; later calls with
// a different mood return the session unchanged.
func (r *Registry) GetOrCreate(connID, mood string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[connID]; ok {
		return s
	}

	if mood == "" {
		mood = DefaultMood
	}
	s := &Session{
		ID:        connID,
		Mood:      mood,
		CreatedAt: time.Now().UTC(),
	}
	r.sessions[connID] = s
	return s
}

// Get looks up a live session without creating one.
func (r *Registry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Remove releases the session state for connID. Removing an unknown
// id is a no-op, so the call is safe to repeat.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

// Len reports how many sessions are currently live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
