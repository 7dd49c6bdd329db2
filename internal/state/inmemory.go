package state

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process checkpoint store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Conversation)}
}

func (s *InMemoryStore) Save(_ context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[c.ConversationID] = c.Clone()
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.records[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) ListExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, c := range s.records {
		if c.Terminal() {
			continue
		}
		if c.Expired(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
