package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
)

// LogHooks logs node transitions at debug level and failed service calls as warnings.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_enter",
				"conversation_id", e.ConversationID,
				"node_id", e.NodeID,
				"type", e.NodeType,
			)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("node_leave",
				"conversation_id", e.ConversationID,
				"node_id", e.NodeID,
				"duration", e.Duration,
				"suspend", e.Suspend,
			)
		},
		OnServiceCall: func(ctx context.Context, e *domain.ServiceEvent) {
			if e.Err == nil {
				return
			}
			logger.Warn("service call failed",
				"conversation_id", e.ConversationID,
				"node_id", e.NodeID,
				"service", e.Service,
				"err", e.Err,
			)
		},
	}
}

// Combine fans every event out to all hook sets in order.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, h.OnNodeLeave)
		out.OnServiceCall = chain(out.OnServiceCall, h.OnServiceCall)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
