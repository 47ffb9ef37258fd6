package runtime

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// step is the effect of executing one node.
type step struct {
	next    string
	suspend *domain.Suspension
	end     bool
}

// configOf returns the typed config of a node, or the zero config of its type.
func configOf(node *domain.Node) domain.NodeConfig {
	if node.Config != nil {
		return node.Config
	}
	switch node.Type {
	case domain.NodeTrigger:
		return domain.TriggerConfig{}
	case domain.NodeMessage:
		return domain.MessageConfig{}
	case domain.NodeQuestion:
		return domain.QuestionConfig{}
	case domain.NodeCondition:
		return domain.ConditionConfig{}
	case domain.NodeAI:
		return domain.AIConfig{}
	case domain.NodeEnd:
		return domain.EndConfig{}
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, flow *domain.Flow, node *domain.Node, st *domain.ConversationState) step {
	e.emitNodeEnter(ctx, st, node)
	start := time.Now()

	var out step
	switch cfg := configOf(node).(type) {
	case domain.TriggerConfig:
		out = step{next: flow.Next(node.ID)}
	case domain.MessageConfig:
		out = e.execMessage(ctx, flow, node, cfg, st)
	case domain.QuestionConfig:
		out = e.execQuestion(ctx, flow, node, cfg, st)
	case domain.ConditionConfig:
		out = e.execCondition(flow, node, cfg, st)
	case domain.AIConfig:
		out = e.execAI(ctx, flow, node, cfg, st)
	case domain.EndConfig:
		out = e.execEnd(ctx, st)
	default:
		e.logger.Warn("unknown node type, skipping", "conversation_id", st.ConversationID, "node_id", node.ID, "type", node.Type)
		out = step{next: flow.Next(node.ID)}
	}

	e.emitNodeLeave(ctx, st, node, time.Since(start), out.suspend != nil)
	return out
}

func (e *Engine) execMessage(ctx context.Context, flow *domain.Flow, node *domain.Node, cfg domain.MessageConfig, st *domain.ConversationState) step {
	text := cfg.Text
	if text == "" {
		text = node.Label
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("message node has no text", "conversation_id", st.ConversationID, "node_id", node.ID)
		return step{next: flow.Next(node.ID)}
	}

	if err := e.sendText(ctx, st, node.ID, text); err != nil && cfg.OnError == domain.OnErrorEnd {
		return e.execEnd(ctx, st)
	}
	return step{next: flow.Next(node.ID)}
}

func (e *Engine) execCondition(flow *domain.Flow, node *domain.Node, cfg domain.ConditionConfig, st *domain.ConversationState) step {
	input := st.Field(cfg.Field)
	result := cfg.Evaluate(input)
	e.logger.Debug("condition evaluated",
		"conversation_id", st.ConversationID,
		"node_id", node.ID,
		"operator", cfg.Operator,
		"field", cfg.Field,
		"result", result,
	)
	return step{next: flow.Route(node.ID, strconv.FormatBool(result))}
}

func (e *Engine) execEnd(ctx context.Context, st *domain.ConversationState) step {
	if e.log != nil {
		if err := e.log.MarkCompleted(ctx, st.ConversationID); err != nil {
			e.logger.Warn("failed to mark conversation completed", "conversation_id", st.ConversationID, "err", err)
		}
	}
	return step{end: true}
}
