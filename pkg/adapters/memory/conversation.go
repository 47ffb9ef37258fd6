package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// ConversationLog implements ports.ConversationLog in memory.
type ConversationLog struct {
	mu       sync.RWMutex
	records  map[string]domain.ConversationRecord
	messages map[string][]domain.MessageRecord
}

// NewConversationLog creates an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{
		records:  make(map[string]domain.ConversationRecord),
		messages: make(map[string][]domain.MessageRecord),
	}
}

// Touch creates the record or marks it active again.
func (l *ConversationLog) Touch(ctx context.Context, record domain.ConversationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	record.Status = domain.StatusActive
	record.UpdatedAt = time.Now().UTC()
	l.records[record.ID] = record
	return nil
}

// MarkCompleted flags a conversation as completed, creating the record if needed.
func (l *ConversationLog) MarkCompleted(ctx context.Context, conversationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.records[conversationID]
	rec.ID = conversationID
	rec.Status = domain.StatusCompleted
	rec.UpdatedAt = time.Now().UTC()
	l.records[conversationID] = rec
	return nil
}

// Conversation returns the record of a conversation.
func (l *ConversationLog) Conversation(ctx context.Context, conversationID string) (*domain.ConversationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return &rec, nil
}

// AppendMessage logs a message.
func (l *ConversationLog) AppendMessage(ctx context.Context, msg domain.MessageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[msg.ConversationID] = append(l.messages[msg.ConversationID], msg)
	return nil
}

// Messages returns the latest messages, oldest first.
func (l *ConversationLog) Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.MessageRecord(nil), all...), nil
}
