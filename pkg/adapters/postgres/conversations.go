package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aretw0/parley/pkg/domain"
)

// ConversationLog implements ports.ConversationLog on the conversations and messages tables.
type ConversationLog struct {
	pool *pgxpool.Pool
}

// NewConversationLog creates a log on a migrated pool.
func NewConversationLog(pool *pgxpool.Pool) *ConversationLog {
	return &ConversationLog{pool: pool}
}

func (l *ConversationLog) Touch(ctx context.Context, record domain.ConversationRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO conversations (id, bot_id, recipient, status, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET bot_id = EXCLUDED.bot_id, recipient = EXCLUDED.recipient, status = EXCLUDED.status, updated_at = now()`,
		record.ID, record.BotID, record.Recipient, string(domain.StatusActive))
	if err != nil {
		return fmt.Errorf("failed to touch conversation %s: %w", record.ID, err)
	}
	return nil
}

func (l *ConversationLog) MarkCompleted(ctx context.Context, conversationID string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO conversations (id, status, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`,
		conversationID, string(domain.StatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete conversation %s: %w", conversationID, err)
	}
	return nil
}

func (l *ConversationLog) Conversation(ctx context.Context, conversationID string) (*domain.ConversationRecord, error) {
	var rec domain.ConversationRecord
	var status string
	err := l.pool.QueryRow(ctx, `
		SELECT id, bot_id, recipient, status, updated_at FROM conversations WHERE id = $1`, conversationID).
		Scan(&rec.ID, &rec.BotID, &rec.Recipient, &status, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	rec.Status = domain.ConversationStatus(status)
	return &rec, nil
}

func (l *ConversationLog) AppendMessage(ctx context.Context, msg domain.MessageRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, bot_id, node_id, direction, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))`,
		msg.ID, msg.ConversationID, msg.BotID, msg.NodeID, string(msg.Direction), msg.Text, nullTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to append message to %s: %w", msg.ConversationID, err)
	}
	return nil
}

// Messages returns the latest messages, oldest first. A limit <= 0 returns all of them.
func (l *ConversationLog) Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, conversation_id, bot_id, node_id, direction, text, created_at FROM (
			SELECT * FROM messages WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at, id`, conversationID, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []domain.MessageRecord
	for rows.Next() {
		var m domain.MessageRecord
		var dir string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.BotID, &m.NodeID, &dir, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Direction = domain.Direction(dir)
		out = append(out, m)
	}
	return out, rows.Err()
}

// StateStore implements ports.StateStore with one JSONB row per conversation.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a store on a migrated pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

func (s *StateStore) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversation_states (conversation_id, state, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (conversation_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		conversationID, string(data))
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM conversation_states WHERE conversation_id = $1`, conversationID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}
	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

func (s *StateStore) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	return nil
}

func (s *StateStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT conversation_id FROM conversation_states ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
