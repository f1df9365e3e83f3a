package memstore

import (
	"context"
	"sync"

	"twin/internal/session"
)

// Store keeps transcripts in process memory. Intended for tests and local
// development; contents are lost on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]session.Turn
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string][]session.Turn)}
}

func (s *Store) Load(_ context.Context, id string) ([]session.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[id]
	if !ok {
		return []session.Turn{}, nil
	}
	return append([]session.Turn(nil), stored...), nil
}

func (s *Store) Save(_ context.Context, id string, turns []session.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append([]session.Turn{}, turns...)
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
