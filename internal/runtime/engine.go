package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultMaxSteps caps the nodes executed for one inbound message.
const DefaultMaxSteps = 100

// Retriever supplies knowledge chunks to AI nodes.
type Retriever interface {
	RetrieveForBot(ctx context.Context, botID, query string, topK int, minSimilarity float64) ([]domain.ScoredChunk, error)
}

// Outcome tells how a pass ended.
type Outcome string

const (
	OutcomeSuspended Outcome = "suspended" // Waiting on a question
	OutcomeCompleted Outcome = "completed" // An end node was reached
	OutcomeIdle      Outcome = "idle"      // A node without outgoing edges was reached
)

// Result is the outcome of one interpreter pass.
type Result struct {
	State   *domain.ConversationState
	Outcome Outcome
	Steps   int
}

// Engine walks a flow graph for one conversation at a time.
// Callers serialize Run calls per conversation (see session.Manager).
type Engine struct {
	store      ports.StateStore
	messenger  ports.Messenger
	completer  ports.Completer
	retriever  Retriever
	log        ports.ConversationLog
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	maxSteps   int
	llmTimeout time.Duration
	defaults   Defaults
	now        func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithCompleter sets the language model used by AI nodes.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithRetriever enables knowledge retrieval in AI nodes.
func WithRetriever(r Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithConversationLog records outbound messages and completions.
func WithConversationLog(l ports.ConversationLog) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithLLMTimeout bounds every completion call.
func WithLLMTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.llmTimeout = d
	}
}

// WithDefaults overrides the AI node defaults. Unset fields keep their default.
func WithDefaults(d Defaults) Option {
	return func(e *Engine) {
		e.defaults = d.merge(DefaultDefaults())
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine that persists to store and talks through messenger.
func NewEngine(store ports.StateStore, messenger ports.Messenger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		messenger:  messenger,
		logger:     logging.NewNop(),
		maxSteps:   DefaultMaxSteps,
		llmTimeout: DefaultLLMTimeout,
		defaults:   DefaultDefaults(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HaltError reports a structural problem that stopped a pass.
// The state is left as it was last persisted.
type HaltError struct {
	NodeID string
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("halted at node %q: %v", e.NodeID, e.Err)
}

func (e *HaltError) Unwrap() error { return e.Err }

// Run processes one inbound message. It resumes a pending question, or starts
// at the trigger, and executes nodes until a question suspends the
// conversation, an end node completes it or no edge leads on. The state is
// persisted after every step.
func (e *Engine) Run(ctx context.Context, flow *domain.Flow, state *domain.ConversationState, input string) (*Result, error) {
	st := state.Clone()
	if input != "" {
		st.LastUserMessage = input
	}
	st.UpdatedAt = e.now()

	if st.Status == domain.StatusCompleted {
		e.logger.Debug("restarting completed conversation", "conversation_id", st.ConversationID)
		st.Status = domain.StatusActive
		st.CurrentNodeID = ""
		st.Suspension = nil
	}

	res := &Result{State: st}

	var current string
	switch {
	case st.Suspension != nil:
		next, err := e.resume(ctx, flow, st, input)
		if err != nil {
			return res, err
		}
		if done := e.advance(st, next, res); done {
			return res, e.persist(ctx, st)
		}
		if err := e.persist(ctx, st); err != nil {
			return res, err
		}
		current = next
	case st.CurrentNodeID != "":
		current = st.CurrentNodeID
	default:
		trigger, ok := flow.Trigger()
		if !ok {
			return res, &HaltError{Err: domain.ErrNoTrigger}
		}
		current = trigger.ID
	}

	for {
		if res.Steps >= e.maxSteps {
			e.logger.Error("step limit exceeded",
				"conversation_id", st.ConversationID,
				"bot_id", st.BotID,
				"node_id", current,
				"limit", e.maxSteps,
			)
			return res, &HaltError{NodeID: current, Err: domain.ErrStepLimitExceeded}
		}

		node, ok := flow.Node(current)
		if !ok {
			e.logger.Error("node not found", "conversation_id", st.ConversationID, "node_id", current)
			return res, &HaltError{NodeID: current, Err: domain.ErrNodeNotFound}
		}

		res.Steps++
		out := e.execute(ctx, flow, node, st)
		st.History = append(st.History, domain.HistoryEntry{NodeID: node.ID, Timestamp: e.now()})

		done := false
		switch {
		case out.suspend != nil:
			st.Suspension = out.suspend
			st.CurrentNodeID = node.ID
			st.Status = domain.StatusSuspended
			res.Outcome = OutcomeSuspended
			done = true
		case out.end:
			st.CurrentNodeID = ""
			st.Status = domain.StatusCompleted
			res.Outcome = OutcomeCompleted
			done = true
		default:
			done = e.advance(st, out.next, res)
		}

		if err := e.persist(ctx, st); err != nil {
			return res, err
		}
		if done {
			return res, nil
		}
		current = out.next
	}
}

// advance moves the state to next and reports whether the pass is over.
func (e *Engine) advance(st *domain.ConversationState, next string, res *Result) bool {
	st.Status = domain.StatusActive
	st.CurrentNodeID = next
	if next == "" {
		res.Outcome = OutcomeIdle
		return true
	}
	return false
}

func (e *Engine) persist(ctx context.Context, st *domain.ConversationState) error {
	st.UpdatedAt = e.now()
	if err := e.store.Save(ctx, st.ConversationID, st); err != nil {
		return fmt.Errorf("failed to persist conversation %s: %w", st.ConversationID, err)
	}
	return nil
}

// IsHalt reports whether err stopped a pass for a structural reason.
func IsHalt(err error) bool {
	var h *HaltError
	return errors.As(err, &h)
}
