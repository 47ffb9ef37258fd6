package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/internal/validator"
	loamAdapter "github.com/aretw0/parley/pkg/adapters/loam"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/session"
	"github.com/google/uuid"
)

// Re-exported so hosts do not need the internal runtime package.
type (
	Defaults = runtime.Defaults
	Outcome  = runtime.Outcome
)

const (
	OutcomeSuspended = runtime.OutcomeSuspended
	OutcomeCompleted = runtime.OutcomeCompleted
	OutcomeIdle      = runtime.OutcomeIdle
	// OutcomeIgnored means a keyword trigger did not match, so no conversation was started.
	OutcomeIgnored Outcome = "ignored"
)

// Inbound is one message from an end user.
type Inbound struct {
	BotID          string `json:"bot_id"`
	ConversationID string `json:"conversation_id"`
	// Recipient is the address replies go to. Defaults to ConversationID.
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text"`
}

// Result describes what a message did to its conversation.
type Result struct {
	ConversationID string                    `json:"conversation_id"`
	Outcome        Outcome                   `json:"outcome"`
	Steps          int                       `json:"steps"`
	Created        bool                      `json:"created"`
	State          *domain.ConversationState `json:"state,omitempty"`
}

// Bot is the high-level entry point of the Parley runtime.
// It serializes messages per conversation and runs the bot's flow for each of them.
type Bot struct {
	flows     ports.FlowRepository
	store     ports.StateStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	log       ports.ConversationLog
	messenger ports.Messenger
	completer ports.Completer
	retriever runtime.Retriever
	hooks     domain.LifecycleHooks
	metrics   *observability.Metrics
	logger    *slog.Logger
	maxInput  int

	runtimeOpts []runtime.Option

	manager *session.Manager
	runtime *runtime.Engine
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithFlows injects a custom FlowRepository, bypassing the default Loam directory.
func WithFlows(repo ports.FlowRepository) Option {
	return func(b *Bot) {
		b.flows = repo
	}
}

// WithStore sets the conversation state store (in-memory by default).
func WithStore(store ports.StateStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithLocker serializes conversations across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = locker
	}
}

// Float returns a pointer to v, for the optional fields of Defaults.
func Float(v float64) *float64 {
	return runtime.Float(v)
}

// WithLockTTL sets the lease of distributed conversation locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(b *Bot) {
		b.lockTTL = ttl
	}
}

// WithConversationLog sets the conversation record and message log (in-memory by default).
func WithConversationLog(l ports.ConversationLog) Option {
	return func(b *Bot) {
		b.log = l
	}
}

// WithMessenger sets the gateway replies are sent through. Required.
func WithMessenger(m ports.Messenger) Option {
	return func(b *Bot) {
		b.messenger = m
	}
}

// WithCompleter sets the language model used by AI nodes.
func WithCompleter(c ports.Completer) Option {
	return func(b *Bot) {
		b.completer = c
	}
}

// WithRetriever enables knowledge retrieval for AI nodes.
func WithRetriever(r runtime.Retriever) Option {
	return func(b *Bot) {
		b.retriever = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithMetrics records passes and node metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithMaxInputSize rejects inbound texts longer than n bytes.
func WithMaxInputSize(n int) Option {
	return func(b *Bot) {
		b.maxInput = n
	}
}

// WithMaxSteps caps the nodes executed per message.
func WithMaxSteps(n int) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithMaxSteps(n))
	}
}

// WithLLMTimeout bounds every language model call.
func WithLLMTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithLLMTimeout(d))
	}
}

// WithDefaults overrides the AI node defaults.
func WithDefaults(d Defaults) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithDefaults(d))
	}
}

// New initializes a Bot.
// By default, flows are read from a Loam repository at flowsPath.
// If WithFlows is provided, flowsPath can be empty and Loam is skipped.
func New(flowsPath string, opts ...Option) (*Bot, error) {
	b := &Bot{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.messenger == nil {
		return nil, errors.New("a messenger is required")
	}

	if b.flows == nil {
		if flowsPath == "" {
			return nil, errors.New("flowsPath is required when no custom flow repository is provided")
		}
		absPath, err := filepath.Abs(flowsPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		repo, err := loamAdapter.Open(absPath)
		if err != nil {
			return nil, err
		}
		b.flows = repo
	}
	if b.store == nil {
		b.store = memory.NewStore()
	}
	if b.log == nil {
		b.log = memory.NewConversationLog()
	}

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
	}
	if b.lockTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithLockTTL(b.lockTTL))
	}
	b.manager = session.NewManager(b.store, sessionOpts...)

	hooks := b.hooks
	if b.metrics != nil {
		hooks = observability.Combine(hooks, b.metrics.Hooks())
	}
	rtOpts := []runtime.Option{
		runtime.WithLogger(b.logger),
		runtime.WithConversationLog(b.log),
		runtime.WithLifecycleHooks(hooks),
	}
	if b.completer != nil {
		rtOpts = append(rtOpts, runtime.WithCompleter(b.completer))
	}
	if b.retriever != nil {
		rtOpts = append(rtOpts, runtime.WithRetriever(b.retriever))
	}
	b.runtime = runtime.NewEngine(b.store, b.messenger, append(rtOpts, b.runtimeOpts...)...)
	return b, nil
}

// HandleMessage runs the bot's flow for one inbound message.
// Messages of the same conversation are processed one at a time.
func (b *Bot) HandleMessage(ctx context.Context, in Inbound) (*Result, error) {
	if in.BotID == "" || in.ConversationID == "" {
		return nil, fmt.Errorf("%w: bot and conversation id are required", domain.ErrInvalidConfig)
	}
	text, err := runner.SanitizeInputLimit(in.Text, b.maxInput)
	if err != nil {
		return nil, err
	}
	if in.Recipient == "" {
		in.Recipient = in.ConversationID
	}

	flow, err := b.Flow(ctx, in.BotID)
	if err != nil {
		b.metrics.ObservePass(observability.PassError)
		return nil, err
	}

	var res *Result
	err = b.manager.WithLock(ctx, in.ConversationID, func(ctx context.Context) error {
		st, created, err := session.LoadOrNew(ctx, b.store, in.ConversationID, in.BotID, in.Recipient)
		if err != nil {
			return err
		}
		b.logInbound(ctx, in, text)

		if startsFresh(st) && !triggerMatches(flow, text) {
			b.logger.Debug("keyword trigger did not match, ignoring message",
				"conversation_id", in.ConversationID,
				"bot_id", in.BotID,
			)
			res = &Result{ConversationID: in.ConversationID, Outcome: OutcomeIgnored, State: st}
			return nil
		}

		if err := b.log.Touch(ctx, domain.ConversationRecord{
			ID:        in.ConversationID,
			BotID:     in.BotID,
			Recipient: in.Recipient,
		}); err != nil {
			b.logger.Warn("failed to touch conversation record", "conversation_id", in.ConversationID, "err", err)
		}

		out, err := b.runtime.Run(ctx, flow, st, text)
		if out != nil {
			res = &Result{
				ConversationID: in.ConversationID,
				Outcome:        out.Outcome,
				Steps:          out.Steps,
				Created:        created,
				State:          out.State,
			}
		}
		return err
	})
	if err != nil {
		b.metrics.ObservePass(observability.PassError)
		b.logger.Error("message handling failed",
			"conversation_id", in.ConversationID,
			"bot_id", in.BotID,
			"err", err,
		)
		return res, err
	}

	b.metrics.ObservePass(string(res.Outcome))
	return res, nil
}

// Flow loads and validates the flow of a bot.
func (b *Bot) Flow(ctx context.Context, botID string) (*domain.Flow, error) {
	flow, err := b.flows.Load(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow of bot %s: %w", botID, err)
	}
	if err := validator.Validate(flow); err != nil {
		return nil, fmt.Errorf("flow of bot %s is invalid: %w", botID, err)
	}
	return flow, nil
}

// Conversation returns a snapshot of a conversation's state.
func (b *Bot) Conversation(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	return b.manager.Load(ctx, conversationID)
}

// Messages returns at most limit of the latest logged messages of a conversation.
func (b *Bot) Messages(ctx context.Context, conversationID string, limit int) ([]domain.MessageRecord, error) {
	return b.log.Messages(ctx, conversationID, limit)
}

// Record returns the owning conversation record.
func (b *Bot) Record(ctx context.Context, conversationID string) (*domain.ConversationRecord, error) {
	return b.log.Conversation(ctx, conversationID)
}

// Bots lists the bots with a flow.
func (b *Bot) Bots(ctx context.Context) ([]string, error) {
	return b.flows.List(ctx)
}

func (b *Bot) logInbound(ctx context.Context, in Inbound, text string) {
	err := b.log.AppendMessage(ctx, domain.MessageRecord{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		BotID:          in.BotID,
		Direction:      domain.Inbound,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	})
	if err != nil {
		b.logger.Warn("failed to log inbound message", "conversation_id", in.ConversationID, "err", err)
	}
}

// startsFresh reports whether the next pass begins at the trigger.
func startsFresh(st *domain.ConversationState) bool {
	if st.Suspension != nil {
		return false
	}
	return st.CurrentNodeID == "" || st.Status == domain.StatusCompleted
}

func triggerMatches(flow *domain.Flow, text string) bool {
	trigger, ok := flow.Trigger()
	if !ok {
		return true
	}
	cfg, ok := trigger.Config.(domain.TriggerConfig)
	return !ok || cfg.Matches(text)
}
