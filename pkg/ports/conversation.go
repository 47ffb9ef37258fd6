package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// ConversationLog keeps the owning conversation record and its message log.
type ConversationLog interface {
	// Touch creates the conversation record or refreshes it as active.
	Touch(ctx context.Context, record domain.ConversationRecord) error

	// MarkCompleted flags the conversation as completed.
	// It is safe to call more than once.
	MarkCompleted(ctx context.Context, conversationID string) error

	// Conversation returns the record.
	// Returns domain.ErrConversationNotFound if there is none.
	Conversation(ctx context.Context, conversationID string) (*domain.ConversationRecord, error)

	// AppendMessage logs an inbound or outbound message.
	AppendMessage(ctx context.Context, msg domain.MessageRecord) error

	// Messages returns at most limit of the latest messages, oldest first.
	Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error)
}
