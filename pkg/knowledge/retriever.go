package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Retrieval defaults used by the AI node.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.7
	DefaultQueryTimeout  = 10 * time.Second
)

// Retriever finds the chunks most similar to a query.
type Retriever struct {
	store        ports.KnowledgeStore
	embedder     ports.Embedder
	cache        *embeddingCache
	queryTimeout time.Duration
	logger       *slog.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithCacheSize sets the query embedding cache size. Zero disables the cache.
func WithCacheSize(n int) RetrieverOption {
	return func(r *Retriever) {
		if n <= 0 {
			r.cache = nil
			return
		}
		r.cache = newEmbeddingCache(n)
	}
}

// WithQueryTimeout bounds the query embedding and the search together.
func WithQueryTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		r.queryTimeout = d
	}
}

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever.
func NewRetriever(store ports.KnowledgeStore, embedder ports.Embedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:        store,
		embedder:     embedder,
		cache:        newEmbeddingCache(DefaultCacheSize),
		queryTimeout: DefaultQueryTimeout,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most topK chunks of ready sources in sourceIDs whose
// similarity to query is at least minSimilarity, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, sourceIDs []string, topK int, minSimilarity float64) ([]domain.ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if len(sourceIDs) == 0 || query == "" || topK <= 0 {
		return nil, nil
	}

	if r.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.queryTimeout)
		defer cancel()
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, domain.SearchQuery{
		Vector:        vec,
		SourceIDs:     sourceIDs,
		TopK:          topK,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	r.logger.Debug("knowledge retrieved", "sources", len(sourceIDs), "hits", len(hits))
	return hits, nil
}

// RetrieveForBot searches all ready sources owned by botID.
func (r *Retriever) RetrieveForBot(ctx context.Context, botID, query string, topK int, minSimilarity float64) ([]domain.ScoredChunk, error) {
	ids, err := r.ReadySources(ctx, botID)
	if err != nil {
		return nil, err
	}
	return r.Retrieve(ctx, query, ids, topK, minSimilarity)
}

// ReadySources returns the IDs of the ready sources of a bot.
func (r *Retriever) ReadySources(ctx context.Context, botID string) ([]string, error) {
	if botID == "" {
		return nil, nil
	}
	sources, err := r.store.ListSources(ctx, ports.SourceFilter{BotID: botID, Status: domain.SourceReady})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources of bot %s: %w", botID, err)
	}
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (r *Retriever) embed(ctx context.Context, query string) ([]float32, error) {
	query = Truncate(query, MaxEmbeddingChars)
	if vec, ok := r.cache.get(query); ok {
		return vec, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.cache.put(query, vec)
	return vec, nil
}
