package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

func (e *Engine) execQuestion(ctx context.Context, flow *domain.Flow, node *domain.Node, cfg domain.QuestionConfig, st *domain.ConversationState) step {
	text := cfg.Text
	if text == "" {
		text = node.Label
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("question node has no text", "conversation_id", st.ConversationID, "node_id", node.ID)
	}

	var err error
	if cfg.Options.QuickReplies() {
		err = e.sendQuickReplies(ctx, st, node.ID, text, cfg.Options)
	} else {
		err = e.sendText(ctx, st, node.ID, numbered(text, cfg.Options))
	}
	if err != nil {
		// Without a delivered question there is nothing to wait for.
		if cfg.OnError == domain.OnErrorEnd {
			return e.execEnd(ctx, st)
		}
		return step{next: flow.Next(node.ID)}
	}

	return step{suspend: &domain.Suspension{
		NodeID:  node.ID,
		Options: append(domain.Options(nil), cfg.Options...),
		Since:   e.now(),
	}}
}

// resume consumes the answer to a pending question and returns the next node.
func (e *Engine) resume(ctx context.Context, flow *domain.Flow, st *domain.ConversationState, input string) (string, error) {
	sus := st.Suspension
	node, ok := flow.Node(sus.NodeID)
	if !ok {
		e.logger.Error("suspended on unknown node", "conversation_id", st.ConversationID, "node_id", sus.NodeID)
		return "", &HaltError{NodeID: sus.NodeID, Err: domain.ErrNodeNotFound}
	}
	cfg, ok := configOf(node).(domain.QuestionConfig)
	if !ok {
		return "", &HaltError{NodeID: node.ID, Err: fmt.Errorf("%w: suspended on a %s node", domain.ErrInvalidFlow, node.Type)}
	}

	opts := sus.Options
	if len(opts) == 0 {
		opts = cfg.Options
	}

	st.Suspension = nil
	st.SetVariable(domain.VarLastQuestionResponse, input)

	match, matched := opts.Match(input)
	switch {
	case matched:
		st.SetVariable(domain.VarLastQuestionMatch, match.Key())
	case cfg.AllowCustom:
		st.SetVariable(domain.VarLastQuestionMatch, input)
		match, _ = opts.Fallback()
	default:
		match, matched = opts.Fallback()
		if matched {
			st.SetVariable(domain.VarLastQuestionMatch, match.Key())
		} else {
			st.SetVariable(domain.VarLastQuestionMatch, input)
		}
	}

	e.logger.Debug("question answered",
		"conversation_id", st.ConversationID,
		"node_id", node.ID,
		"option", match.ID,
	)
	return flow.Route(node.ID, match.ID, match.Value, match.Label), nil
}

// numbered appends the options as a 1-based list.
func numbered(text string, opts domain.Options) string {
	if len(opts) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for i, o := range opts {
		fmt.Fprintf(&b, "\n%d. %s", i+1, o.Title())
	}
	return b.String()
}
