package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// StateStore defines the interface for persisting conversation state.
// Saves are full-record overwrites, so callers serialize passes per conversation.
type StateStore interface {
	// Save persists the state for a given conversation ID.
	Save(ctx context.Context, conversationID string, state *domain.ConversationState) error

	// Load retrieves the state for a given conversation ID.
	// Returns domain.ErrConversationNotFound if the conversation does not exist.
	Load(ctx context.Context, conversationID string) (*domain.ConversationState, error)

	// Delete removes the state for a given conversation ID.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
