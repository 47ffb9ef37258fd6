// Package cli wires the Parley runtime from a configuration and implements the
// long-running parts of the parley commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/gemini"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/adapters/llm"
	loamAdapter "github.com/aretw0/parley/pkg/adapters/loam"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/openai"
	"github.com/aretw0/parley/pkg/adapters/postgres"
	redisAdapter "github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/adapters/whatsapp"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/extract"
	"github.com/aretw0/parley/pkg/knowledge"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
)

// App is one wired Parley process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Bot       *parley.Bot
	Flows     ports.FlowRepository
	State     ports.StateStore
	Ingestor  *knowledge.Ingestor
	Retriever *knowledge.Retriever
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Streams   *httpAdapter.StreamManager

	closers []func()
}

// AppOption customizes Build.
type AppOption func(*appOptions)

type appOptions struct {
	messenger ports.Messenger
}

// WithMessenger replaces the configured outbound channel, e.g. with a console.
func WithMessenger(m ports.Messenger) AppOption {
	return func(o *appOptions) {
		o.messenger = m
	}
}

// Build creates every adapter named by cfg and the Bot on top of them.
// Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Streams:  httpAdapter.NewStreamManager(logger),
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = observability.NewMetrics(app.Registry)

	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		var err error
		if pool, err = postgres.Open(ctx, cfg.Postgres.DSN); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
	}

	store, locker, err := app.buildStateStore(pool)
	if err != nil {
		return nil, err
	}
	app.State = store

	if app.Flows, err = buildFlows(cfg, pool); err != nil {
		return nil, err
	}

	var convLog ports.ConversationLog = memory.NewConversationLog()
	if pool != nil {
		convLog = postgres.NewConversationLog(pool)
	}

	var knowledgeStore ports.KnowledgeStore = memory.NewKnowledgeStore()
	if cfg.Knowledge.Store == config.DriverPostgres {
		knowledgeStore = postgres.NewKnowledgeStore(pool)
	}
	embedder := buildEmbedder(cfg.Embedding)
	indexer := knowledge.NewIndexer(knowledgeStore, embedder,
		knowledge.WithBatchSize(cfg.Knowledge.EmbedBatchSize),
		knowledge.WithChunkTimeout(cfg.Knowledge.ChunkTimeout),
		knowledge.WithBatchTimeout(cfg.Knowledge.BatchTimeout),
		knowledge.WithIndexerLogger(logger),
		knowledge.WithIndexerMetrics(app.Metrics),
	)
	app.Ingestor = knowledge.NewIngestor(knowledgeStore, indexer,
		knowledge.WithChunking(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap),
		knowledge.WithInsertBatchSize(cfg.Knowledge.InsertBatchSize),
		knowledge.WithProcessTimeout(cfg.Knowledge.ProcessTimeout),
		knowledge.WithFetcher(extract.NewFetcher(
			extract.WithFetchTimeout(cfg.Knowledge.FetchTimeout),
			extract.WithMaxBodyBytes(cfg.Knowledge.MaxFetchBytes),
		)),
		knowledge.WithIngestorLogger(logger),
		knowledge.WithIngestorMetrics(app.Metrics),
	)
	app.Retriever = knowledge.NewRetriever(knowledgeStore, embedder,
		knowledge.WithCacheSize(cfg.Knowledge.CacheSize),
		knowledge.WithQueryTimeout(cfg.Knowledge.QueryTimeout),
		knowledge.WithRetrieverLogger(logger),
	)

	completer, err := buildCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	logger.Debug("llm providers registered", "providers", completer.Providers())

	messenger := o.messenger
	if messenger == nil {
		messenger = buildMessenger(cfg.WhatsApp, logger)
	}

	botOpts := []parley.Option{
		parley.WithFlows(app.Flows),
		parley.WithStore(store),
		parley.WithConversationLog(convLog),
		parley.WithMessenger(app.Streams.Tee(messenger)),
		parley.WithCompleter(completer),
		parley.WithRetriever(app.Retriever),
		parley.WithLifecycleHooks(observability.LogHooks(logger)),
		parley.WithMetrics(app.Metrics),
		parley.WithLogger(logger),
		parley.WithMaxInputSize(cfg.Runtime.MaxInputSize),
		parley.WithMaxSteps(cfg.Runtime.MaxSteps),
		parley.WithLLMTimeout(cfg.LLM.Timeout),
		parley.WithDefaults(runtimeDefaults(cfg)),
	}
	if locker != nil {
		botOpts = append(botOpts, parley.WithLocker(locker), parley.WithLockTTL(cfg.Redis.LockTTL))
	}
	if app.Bot, err = parley.New("", botOpts...); err != nil {
		return nil, fmt.Errorf("error initializing bot: %w", err)
	}

	ok = true
	return app, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildStateStore(pool *pgxpool.Pool) (ports.StateStore, ports.DistributedLocker, error) {
	cfg := a.Config
	var (
		store  ports.StateStore
		locker ports.DistributedLocker
	)
	switch cfg.Storage.Driver {
	case config.DriverFile:
		store = file.New(cfg.Storage.Dir)
	case config.DriverRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		store = redisAdapter.NewFromClient(client,
			redisAdapter.WithPrefix(cfg.Redis.Prefix+"conversation:"),
			redisAdapter.WithTTL(cfg.Redis.TTL),
		)
		if cfg.Redis.Lock {
			locker = redisAdapter.NewLocker(client, cfg.Redis.Prefix)
		}
	case config.DriverPostgres:
		store = postgres.NewStateStore(pool)
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.Security.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Security.PIIPatterns)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid pii pattern: %w", err)
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Security.Keys()
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), locker, nil
}

func buildFlows(cfg *config.Config, pool *pgxpool.Pool) (ports.FlowRepository, error) {
	if cfg.Flows.Source == config.DriverPostgres {
		return postgres.NewFlowRepository(pool), nil
	}
	dir, err := filepath.Abs(cfg.Flows.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid flows dir: %w", err)
	}
	return loamAdapter.Open(dir)
}

// buildEmbedder returns the configured provider, backed by the offline hash
// embedder when fallback is on. Without an API key only the hash embedder is left.
func buildEmbedder(cfg config.EmbeddingConfig) ports.Embedder {
	if cfg.Provider == config.EmbeddingHash || cfg.APIKey == "" {
		return knowledge.NewHashEmbedder(cfg.Dimensions)
	}
	opts := []openai.Option{openai.WithAPIKey(cfg.APIKey), openai.WithModel(cfg.Model), openai.WithDimensions(cfg.Dimensions)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	primary := openai.NewEmbedder(opts...)
	if !cfg.Fallback {
		return primary
	}
	return knowledge.NewFallbackEmbedder(primary, knowledge.NewHashEmbedder(0))
}

// buildCompleter registers every provider that has an API key.
func buildCompleter(ctx context.Context, cfg config.LLMConfig) (*llm.Router, error) {
	router := llm.NewRouter(cfg.Provider)

	if cfg.Groq.APIKey != "" {
		router.Register(llm.ProviderGroq, openai.NewGroqCompleter(cfg.Groq.APIKey, providerOptions(cfg.Groq)...))
	}
	if cfg.OpenAI.APIKey != "" {
		opts := append([]openai.Option{openai.WithAPIKey(cfg.OpenAI.APIKey)}, providerOptions(cfg.OpenAI)...)
		router.Register(llm.ProviderOpenAI, openai.NewCompleter(opts...))
	}
	if cfg.Gemini.APIKey != "" {
		var opts []gemini.Option
		if cfg.Gemini.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Gemini.Model))
		}
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		}
		c, err := gemini.New(ctx, cfg.Gemini.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		router.Register(llm.ProviderGemini, c)
	}
	return router, nil
}

func providerOptions(p config.ProviderConfig) []openai.Option {
	var opts []openai.Option
	if p.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.BaseURL))
	}
	if p.Model != "" {
		opts = append(opts, openai.WithModel(p.Model))
	}
	return opts
}

func buildMessenger(cfg config.WhatsAppConfig, logger *slog.Logger) ports.Messenger {
	if !cfg.Enabled() {
		logger.Warn("whatsapp is not configured, replies are only visible on the event stream")
		return &logMessenger{logger: logger}
	}
	var opts []whatsapp.Option
	if cfg.APIVersion != "" {
		opts = append(opts, whatsapp.WithAPIVersion(cfg.APIVersion))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, whatsapp.WithBaseURL(cfg.BaseURL))
	}
	return whatsapp.NewClient(cfg.PhoneNumberID, cfg.AccessToken, opts...)
}

func runtimeDefaults(cfg *config.Config) parley.Defaults {
	rt := cfg.Runtime
	d := parley.Defaults{
		SystemPrompt:  rt.SystemPrompt,
		ErrorMessage:  rt.ErrorMessage,
		Provider:      cfg.LLM.Provider,
		Temperature:   rt.Temperature,
		MaxTokens:     rt.MaxTokens,
		HistoryWindow: rt.HistoryWindow,
		TopK:          rt.TopK,
		MinSimilarity: rt.MinSimilarity,
	}
	models := map[string]string{}
	for name, p := range map[string]config.ProviderConfig{
		llm.ProviderGroq:   cfg.LLM.Groq,
		llm.ProviderOpenAI: cfg.LLM.OpenAI,
		llm.ProviderGemini: cfg.LLM.Gemini,
	} {
		if p.Model != "" {
			models[name] = p.Model
		}
	}
	if len(models) > 0 {
		d.Models = models
	}
	return d
}

// logMessenger drops replies after logging them.
type logMessenger struct {
	logger *slog.Logger
}

func (m *logMessenger) SendText(ctx context.Context, recipient, text string) error {
	m.logger.Debug("outbound message", "recipient", recipient, "text", text)
	return nil
}

func (m *logMessenger) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	m.logger.Debug("outbound message", "recipient", recipient, "text", text, "options", len(options))
	return nil
}
