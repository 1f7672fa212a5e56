// Package inmemory is the session.Store used in tests and for running the
// server without Redis. Semantics mirror the Redis store, including expiry.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mhrezaei/newsrag/models"
)

type entry struct {
	messages  []models.ChatMessage
	expiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*entry
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{ttl: ttl, sessions: make(map[string]*entry)}
}

func (s *Store) Append(ctx context.Context, sessionID string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessions[sessionID]
	if e == nil || time.Now().After(e.expiresAt) {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.messages = append(e.messages, msg)
	e.expiresAt = time.Now().Add(s.ttl)
	return nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessions[sessionID]
	if e == nil || time.Now().After(e.expiresAt) {
		return []models.ChatMessage{}, nil
	}
	out := make([]models.ChatMessage, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
