package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
)

// Indexer defaults.
const (
	DefaultBatchSize    = 50
	DefaultChunkTimeout = 30 * time.Second
	DefaultBatchTimeout = 5 * time.Minute
)

var errEmptyEmbedding = errors.New("empty embedding")

// Report summarizes an indexing run.
type Report struct {
	Embedded int `json:"embedded"`
	Failed   int `json:"failed"`
	Flagged  int `json:"flagged"`
	Passes   int `json:"passes"`
}

// Indexer fills in missing chunk embeddings.
type Indexer struct {
	store        ports.KnowledgeStore
	embedder     ports.Embedder
	batchSize    int
	chunkTimeout time.Duration
	batchTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithBatchSize sets the maximum number of chunks embedded per pass.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithChunkTimeout bounds a single embedding call.
func WithChunkTimeout(d time.Duration) IndexerOption {
	return func(ix *Indexer) {
		ix.chunkTimeout = d
	}
}

// WithBatchTimeout bounds a whole pass.
func WithBatchTimeout(d time.Duration) IndexerOption {
	return func(ix *Indexer) {
		ix.batchTimeout = d
	}
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		ix.logger = logger
	}
}

// WithIndexerMetrics records embedding outcomes.
func WithIndexerMetrics(m *observability.Metrics) IndexerOption {
	return func(ix *Indexer) {
		ix.metrics = m
	}
}

// NewIndexer creates an Indexer.
func NewIndexer(store ports.KnowledgeStore, embedder ports.Embedder, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		store:        store,
		embedder:     embedder,
		batchSize:    DefaultBatchSize,
		chunkTimeout: DefaultChunkTimeout,
		batchTimeout: DefaultBatchTimeout,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds every pending chunk of a source, one bounded batch per pass.
// Chunks that fail are skipped for the rest of the run and stay pending, so a
// later Index call retries them.
func (ix *Indexer) Index(ctx context.Context, sourceID string) (Report, error) {
	var rep Report
	failed := make(map[string]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		pending, err := ix.store.PendingChunks(ctx, sourceID, ix.batchSize+len(failed))
		if err != nil {
			return rep, fmt.Errorf("failed to load pending chunks of %s: %w", sourceID, err)
		}
		batch := make([]domain.DocumentChunk, 0, ix.batchSize)
		for _, c := range pending {
			if _, skip := failed[c.ID]; skip {
				continue
			}
			batch = append(batch, c)
			if len(batch) == ix.batchSize {
				break
			}
		}
		if len(batch) == 0 {
			break
		}

		rep.Passes++
		ix.runBatch(ctx, sourceID, batch, failed, &rep)
	}

	ix.logger.Info("indexing finished",
		"source_id", sourceID,
		"embedded", rep.Embedded,
		"failed", rep.Failed,
		"flagged", rep.Flagged,
		"passes", rep.Passes,
	)
	return rep, nil
}

func (ix *Indexer) runBatch(ctx context.Context, sourceID string, batch []domain.DocumentChunk, failed map[string]struct{}, rep *Report) {
	batchCtx := ctx
	if ix.batchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, ix.batchTimeout)
		defer cancel()
	}

	want := ix.embedder.Dimensions()
	for _, c := range batch {
		vec, err := ix.embedChunk(batchCtx, c.Content)
		if err == nil && len(vec) == 0 {
			err = errEmptyEmbedding
		}
		if err != nil {
			failed[c.ID] = struct{}{}
			rep.Failed++
			ix.metrics.ObserveEmbedding(observability.EmbeddingFailed)
			ix.logger.Warn("failed to embed chunk",
				"source_id", sourceID,
				"chunk_id", c.ID,
				"chunk_index", c.Index,
				"err", err,
			)
			continue
		}

		meta := map[string]any{domain.MetaEmbeddingDims: len(vec)}
		flagged := want > 0 && len(vec) != want
		if flagged {
			meta[domain.MetaAudit] = domain.AuditDimensionMismatch
		}
		// Persist even without the batch deadline so a finished embedding is never lost.
		if err := ix.store.SetEmbedding(context.WithoutCancel(batchCtx), c.ID, vec, meta); err != nil {
			failed[c.ID] = struct{}{}
			rep.Failed++
			ix.metrics.ObserveEmbedding(observability.EmbeddingFailed)
			ix.logger.Warn("failed to store embedding", "source_id", sourceID, "chunk_id", c.ID, "err", err)
			continue
		}

		rep.Embedded++
		if flagged {
			rep.Flagged++
			ix.metrics.ObserveEmbedding(observability.EmbeddingFlagged)
			ix.logger.Warn("embedding dimension mismatch",
				"source_id", sourceID,
				"chunk_id", c.ID,
				"want", want,
				"got", len(vec),
			)
			continue
		}
		ix.metrics.ObserveEmbedding(observability.EmbeddingStored)
	}
}

func (ix *Indexer) embedChunk(ctx context.Context, content string) ([]float32, error) {
	if ix.chunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.chunkTimeout)
		defer cancel()
	}
	return ix.embedder.Embed(ctx, Truncate(content, MaxEmbeddingChars))
}
