package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// KnowledgeStore implements ports.KnowledgeStore.
// Similarity is computed in the database with the pgvector cosine distance operator.
type KnowledgeStore struct {
	pool *pgxpool.Pool
}

// NewKnowledgeStore creates a store on a migrated pool.
func NewKnowledgeStore(pool *pgxpool.Pool) *KnowledgeStore {
	return &KnowledgeStore{pool: pool}
}

const sourceColumns = `id, user_id, session_id, bot_id, type, title, status, metadata, created_at, updated_at`

func scanSource(row pgx.Row) (*domain.KnowledgeSource, error) {
	var src domain.KnowledgeSource
	var typ, status string
	if err := row.Scan(&src.ID, &src.UserID, &src.SessionID, &src.BotID, &typ, &src.Title, &status,
		&src.Metadata, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Type = domain.SourceType(typ)
	src.Status = domain.SourceStatus(status)
	return &src, nil
}

func (s *KnowledgeStore) CreateSource(ctx context.Context, src *domain.KnowledgeSource) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO knowledge_sources (id, user_id, session_id, bot_id, type, title, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), now())`,
		src.ID, src.UserID, src.SessionID, src.BotID, string(src.Type), src.Title, string(src.Status),
		jsonObject(src.Metadata), nullTime(src.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create source %s: %w", src.ID, err)
	}
	return nil
}

func (s *KnowledgeStore) GetSource(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM knowledge_sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source %s: %w", id, err)
	}
	return src, nil
}

func (s *KnowledgeStore) UpdateSource(ctx context.Context, id string, status domain.SourceStatus, metadata map[string]any) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE knowledge_sources
		SET status = $2, metadata = metadata || $3::jsonb, updated_at = now()
		WHERE id = $1`, id, string(status), jsonObject(metadata))
	if err != nil {
		return fmt.Errorf("failed to update source %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// DeleteSource removes the source; chunks go with it through the foreign key cascade.
func (s *KnowledgeStore) DeleteSource(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM knowledge_sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	return nil
}

func (s *KnowledgeStore) ListSources(ctx context.Context, filter ports.SourceFilter) ([]domain.KnowledgeSource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+` FROM knowledge_sources
		WHERE ($1 = '' OR bot_id = $1)
		  AND ($2 = '' OR user_id = $2)
		  AND ($3 = '' OR session_id = $3)
		  AND ($4 = '' OR status = $4)
		ORDER BY created_at, id`,
		filter.BotID, filter.UserID, filter.SessionID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// InsertChunks writes all chunks in one batch round trip.
func (s *KnowledgeStore) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO document_chunks (id, knowledge_source_id, chunk_index, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5::vector, $6)`,
			c.ID, c.SourceID, c.Index, c.Content, vectorParam(c.Embedding), jsonObject(c.Metadata))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert %d chunks: %w", len(chunks), err)
	}
	return nil
}

func (s *KnowledgeStore) PendingChunks(ctx context.Context, sourceID string, limit int) ([]domain.DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, knowledge_source_id, chunk_index, content, metadata
		FROM document_chunks
		WHERE knowledge_source_id = $1 AND embedding IS NULL
		ORDER BY chunk_index
		LIMIT $2`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending chunks of %s: %w", sourceID, err)
	}
	defer rows.Close()

	var out []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Index, &c.Content, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *KnowledgeStore) SetEmbedding(ctx context.Context, chunkID string, vec []float32, metadata map[string]any) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE document_chunks
		SET embedding = $2::vector, metadata = metadata || $3::jsonb
		WHERE id = $1`, chunkID, vectorParam(vec), jsonObject(metadata))
	if err != nil {
		return fmt.Errorf("failed to store embedding of chunk %s: %w", chunkID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSourceNotFound
	}
	return nil
}

// Search ranks embedded chunks of ready sources by cosine similarity.
// Chunks whose vector size differs from the query are skipped.
func (s *KnowledgeStore) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error) {
	if len(q.SourceIDs) == 0 || len(q.Vector) == 0 || q.TopK <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.knowledge_source_id, c.chunk_index, c.content, c.metadata,
		       1 - (c.embedding <=> $1::vector) AS similarity
		FROM document_chunks c
		JOIN knowledge_sources s ON s.id = c.knowledge_source_id
		WHERE c.knowledge_source_id = ANY($2)
		  AND s.status = $3
		  AND c.embedding IS NOT NULL
		  AND vector_dims(c.embedding) = $4
		  AND 1 - (c.embedding <=> $1::vector) >= $5
		ORDER BY c.embedding <=> $1::vector
		LIMIT $6`,
		pgvector.NewVector(q.Vector), q.SourceIDs, string(domain.SourceReady), len(q.Vector), q.MinSimilarity, q.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredChunk
	for rows.Next() {
		var hit domain.ScoredChunk
		if err := rows.Scan(&hit.ID, &hit.SourceID, &hit.Index, &hit.Content, &hit.Metadata, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

func vectorParam(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
