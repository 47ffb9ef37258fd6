package runtime

import (
	"context"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

func (e *Engine) emitNodeEnter(ctx context.Context, st *domain.ConversationState, node *domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp:      e.now(),
			Type:           domain.EventNodeEnter,
			ConversationID: st.ConversationID,
		},
		BotID:    st.BotID,
		NodeID:   node.ID,
		NodeType: node.Type,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, st *domain.ConversationState, node *domain.Node, d time.Duration, suspend bool) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{
			Timestamp:      e.now(),
			Type:           domain.EventNodeLeave,
			ConversationID: st.ConversationID,
		},
		BotID:    st.BotID,
		NodeID:   node.ID,
		NodeType: node.Type,
		Duration: d,
		Suspend:  suspend,
	})
}

func (e *Engine) emitServiceCall(ctx context.Context, st *domain.ConversationState, nodeID, service string, d time.Duration, err error) {
	if e.hooks.OnServiceCall == nil {
		return
	}
	e.hooks.OnServiceCall(ctx, &domain.ServiceEvent{
		EventBase: domain.EventBase{
			Timestamp:      e.now(),
			Type:           domain.EventServiceCall,
			ConversationID: st.ConversationID,
		},
		NodeID:   nodeID,
		Service:  service,
		Duration: d,
		Err:      err,
	})
}
