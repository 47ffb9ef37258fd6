package domain

import "time"

// SourceType is the origin format of a knowledge source.
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceURL  SourceType = "url"
	SourceText SourceType = "text"
)

// SourceStatus tracks ingestion progress.
type SourceStatus string

const (
	SourceProcessing SourceStatus = "processing"
	SourceReady      SourceStatus = "ready"
	SourceError      SourceStatus = "error"
)

// Metadata keys written by the ingestion pipeline.
const (
	MetaError         = "error"
	MetaTextLength    = "textLength"
	MetaChunkCount    = "chunkCount"
	MetaProcessedAt   = "processedAt"
	MetaTitle         = "title"
	MetaURL           = "url"
	MetaFileName      = "fileName"
	MetaPageCount     = "pageCount"
	MetaDescription   = "description"
	MetaEmbeddingDims = "embeddingDims"
	MetaAudit         = "audit"
)

// AuditDimensionMismatch flags a chunk whose embedding has an unexpected size.
const AuditDimensionMismatch = "embedding_dimension_mismatch"

// KnowledgeSource is a document ingested for retrieval.
// Owner scoping uses UserID, SessionID and BotID; at least one is set.
type KnowledgeSource struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	BotID     string         `json:"bot_id,omitempty"`
	Type      SourceType     `json:"type"`
	Title     string         `json:"title"`
	Status    SourceStatus   `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DocumentChunk is one overlapping segment of a source.
// Embedding stays nil until the indexer has processed the chunk.
type DocumentChunk struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"knowledge_source_id"`
	Index     int            `json:"chunk_index"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	DocumentChunk
	Similarity float64 `json:"similarity"`
}

// SearchQuery scopes a similarity search.
type SearchQuery struct {
	Vector        []float32
	SourceIDs     []string
	TopK          int
	MinSimilarity float64
}
