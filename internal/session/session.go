package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the single conversation for this process. History is append-only
// and kept in memory only; readers take bounded windows through Recent.
type Session struct {
	ID        string
	StartedAt time.Time

	mu      sync.RWMutex
	history []Turn
	cfg     RuntimeConfig
}

func New(cfg RuntimeConfig) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		cfg:       cfg,
	}
}

// Append adds a turn at the tail. A zero timestamp is stamped with the current time.
func (s *Session) Append(t Turn) Turn {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
	return t
}

// History returns a copy of every turn in insertion order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Recent returns a copy of the last n turns (all of them when fewer exist).
func (s *Session) Recent(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Session) Config() RuntimeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the runtime config and returns the previous one.
func (s *Session) SetConfig(cfg RuntimeConfig) RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	return prev
}
