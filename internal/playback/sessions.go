package playback

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions keeps the server-side controllers of open playback sessions.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Controller
	limit    int
	order    []string
}

// NewSessions creates a registry holding at most limit sessions; the oldest
// session is dropped when the limit is reached. limit <= 0 means unbounded.
func NewSessions(limit int) *Sessions {
	return &Sessions{sessions: make(map[string]*Controller), limit: limit}
}

// Add registers c and returns its session id.
func (s *Sessions) Add(c *Controller) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
	}
	s.sessions[id] = c
	s.order = append(s.order, id)
	return id
}

// Get returns the controller for id.
func (s *Sessions) Get(id string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.sessions[id]
	return c, ok
}

// Remove closes the session and reports whether it existed.
func (s *Sessions) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
