package runtime

import (
	"context"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/google/uuid"
)

// sendText delivers text and logs it. Failures are logged and returned, never fatal.
func (e *Engine) sendText(ctx context.Context, st *domain.ConversationState, nodeID, text string) error {
	return e.deliver(ctx, st, nodeID, text, func(ctx context.Context) error {
		return e.messenger.SendText(ctx, st.Recipient, text)
	})
}

func (e *Engine) sendQuickReplies(ctx context.Context, st *domain.ConversationState, nodeID, text string, opts domain.Options) error {
	return e.deliver(ctx, st, nodeID, text, func(ctx context.Context) error {
		return e.messenger.SendQuickReplies(ctx, st.Recipient, text, opts)
	})
}

func (e *Engine) deliver(ctx context.Context, st *domain.ConversationState, nodeID, text string, send func(context.Context) error) error {
	start := time.Now()
	err := send(ctx)
	e.emitServiceCall(ctx, st, nodeID, domain.ServiceMessenger, time.Since(start), err)
	if err != nil {
		e.logger.Warn("failed to send message",
			"conversation_id", st.ConversationID,
			"node_id", nodeID,
			"err", err,
		)
		return err
	}

	if e.log != nil {
		rec := domain.MessageRecord{
			ID:             uuid.NewString(),
			ConversationID: st.ConversationID,
			BotID:          st.BotID,
			NodeID:         nodeID,
			Direction:      domain.Outbound,
			Text:           text,
			Timestamp:      e.now(),
		}
		if err := e.log.AppendMessage(ctx, rec); err != nil {
			e.logger.Warn("failed to log outbound message", "conversation_id", st.ConversationID, "err", err)
		}
	}
	return nil
}
