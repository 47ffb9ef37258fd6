package runtime

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

var errEmptyCompletion = errors.New("empty completion")

func (e *Engine) execAI(ctx context.Context, flow *domain.Flow, node *domain.Node, cfg domain.AIConfig, st *domain.ConversationState) step {
	next := step{next: flow.Next(node.ID)}
	question := strings.TrimSpace(st.LastUserMessage)
	if question == "" {
		return next
	}

	var history []string
	if cfg.ContextEnabled() {
		history = e.historyText(flow, st)
	}
	var chunks []domain.ScoredChunk
	if cfg.KnowledgeEnabled() {
		chunks = e.retrieve(ctx, node, st, question)
	}

	system := cfg.Prompt
	if system == "" {
		system = e.defaults.SystemPrompt
	}
	provider := cfg.Provider
	if provider == "" {
		provider = e.defaults.Provider
	}
	req := ports.CompletionRequest{
		Provider:    provider,
		Model:       e.defaults.Models[provider],
		System:      BuildPrompt(system, history, chunks),
		User:        question,
		Temperature: e.defaults.temperature(),
		MaxTokens:   e.defaults.MaxTokens,
	}

	reply, err := e.complete(ctx, st, node.ID, req)
	if err != nil {
		e.logger.Warn("ai node failed, sending apology",
			"conversation_id", st.ConversationID,
			"node_id", node.ID,
			"provider", provider,
			"err", err,
		)
		apology := cfg.ErrorMessage
		if apology == "" {
			apology = e.defaults.ErrorMessage
		}
		_ = e.sendText(ctx, st, node.ID, apology)
		return next
	}

	_ = e.sendText(ctx, st, node.ID, reply)
	return next
}

func (e *Engine) complete(ctx context.Context, st *domain.ConversationState, nodeID string, req ports.CompletionRequest) (string, error) {
	if e.completer == nil {
		return "", errors.New("no language model configured")
	}
	if e.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := e.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyCompletion
	}
	e.emitServiceCall(ctx, st, nodeID, domain.ServiceLLM, time.Since(start), err)
	return strings.TrimSpace(reply), err
}

// retrieve never fails the node: errors degrade to an empty context.
func (e *Engine) retrieve(ctx context.Context, node *domain.Node, st *domain.ConversationState, query string) []domain.ScoredChunk {
	if e.retriever == nil || st.BotID == "" {
		return nil
	}
	start := time.Now()
	chunks, err := e.retriever.RetrieveForBot(ctx, st.BotID, query, e.defaults.TopK, e.defaults.minSimilarity())
	e.emitServiceCall(ctx, st, node.ID, domain.ServiceRetriever, time.Since(start), err)
	if err != nil {
		e.logger.Warn("knowledge retrieval failed", "conversation_id", st.ConversationID, "node_id", node.ID, "err", err)
		return nil
	}
	return chunks
}

// historyText returns the text of the most recent executed nodes.
func (e *Engine) historyText(flow *domain.Flow, st *domain.ConversationState) []string {
	var lines []string
	for _, h := range st.RecentHistory(e.defaults.HistoryWindow) {
		n, ok := flow.Node(h.NodeID)
		if !ok {
			continue
		}
		if t := strings.TrimSpace(n.Text()); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

// BuildPrompt assembles the system message of an AI node.
func BuildPrompt(system string, history []string, chunks []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(system)
	if len(history) > 0 {
		b.WriteString("\n\nConversation History:\n")
		b.WriteString(strings.Join(history, "\n"))
	}
	if len(chunks) > 0 {
		b.WriteString("\n\nRelevant Knowledge:\n")
		for i, c := range chunks {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(c.Content)
		}
	}
	return b.String()
}
