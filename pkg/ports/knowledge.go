package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// SourceFilter selects knowledge sources. Empty fields match everything.
type SourceFilter struct {
	BotID     string
	UserID    string
	SessionID string
	Status    domain.SourceStatus
}

// KnowledgeStore persists knowledge sources and their chunks.
type KnowledgeStore interface {
	CreateSource(ctx context.Context, src *domain.KnowledgeSource) error

	// GetSource returns domain.ErrSourceNotFound for unknown IDs.
	GetSource(ctx context.Context, id string) (*domain.KnowledgeSource, error)

	// UpdateSource sets the status and merges metadata into the existing map.
	UpdateSource(ctx context.Context, id string, status domain.SourceStatus, metadata map[string]any) error

	// DeleteSource removes a source and all its chunks.
	DeleteSource(ctx context.Context, id string) error

	ListSources(ctx context.Context, filter SourceFilter) ([]domain.KnowledgeSource, error)

	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error

	// PendingChunks returns at most limit chunks of a source that have no embedding yet, by chunk index.
	PendingChunks(ctx context.Context, sourceID string, limit int) ([]domain.DocumentChunk, error)

	// SetEmbedding stores a vector and merges metadata into the chunk.
	SetEmbedding(ctx context.Context, chunkID string, vector []float32, metadata map[string]any) error

	// Search returns at most q.TopK embedded chunks of ready sources in q.SourceIDs
	// with similarity >= q.MinSimilarity, ordered by descending similarity.
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error)
}
