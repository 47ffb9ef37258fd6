package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.ConversationState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.ConversationState),
	}
}

// Save persists a copy of the state so later caller mutations do not leak in.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[conversationID] = copied
	return nil
}

// Load returns a copy of the stored state.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, conversationID)
	return nil
}

// List returns stored conversation IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
