package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/vector"
)

// KnowledgeStore implements ports.KnowledgeStore in memory with a linear cosine scan.
type KnowledgeStore struct {
	mu      sync.RWMutex
	sources map[string]*domain.KnowledgeSource
	chunks  map[string]*domain.DocumentChunk
	order   map[string][]string // source ID -> chunk IDs
}

// NewKnowledgeStore creates an empty store.
func NewKnowledgeStore() *KnowledgeStore {
	return &KnowledgeStore{
		sources: make(map[string]*domain.KnowledgeSource),
		chunks:  make(map[string]*domain.DocumentChunk),
		order:   make(map[string][]string),
	}
}

func (s *KnowledgeStore) CreateSource(ctx context.Context, src *domain.KnowledgeSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copySource(src)
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	s.sources[src.ID] = cp
	return nil
}

func (s *KnowledgeStore) GetSource(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return copySource(src), nil
}

func (s *KnowledgeStore) UpdateSource(ctx context.Context, id string, status domain.SourceStatus, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return domain.ErrSourceNotFound
	}
	src.Status = status
	if src.Metadata == nil {
		src.Metadata = make(map[string]any)
	}
	maps.Copy(src.Metadata, metadata)
	src.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *KnowledgeStore) DeleteSource(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cid := range s.order[id] {
		delete(s.chunks, cid)
	}
	delete(s.order, id)
	delete(s.sources, id)
	return nil
}

func (s *KnowledgeStore) ListSources(ctx context.Context, filter ports.SourceFilter) ([]domain.KnowledgeSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.KnowledgeSource
	for _, src := range s.sources {
		if filter.BotID != "" && src.BotID != filter.BotID {
			continue
		}
		if filter.UserID != "" && src.UserID != filter.UserID {
			continue
		}
		if filter.SessionID != "" && src.SessionID != filter.SessionID {
			continue
		}
		if filter.Status != "" && src.Status != filter.Status {
			continue
		}
		out = append(out, *copySource(src))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *KnowledgeStore) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range chunks {
		c := chunks[i]
		c.Metadata = maps.Clone(c.Metadata)
		c.Embedding = slices.Clone(c.Embedding)
		if _, exists := s.chunks[c.ID]; !exists {
			s.order[c.SourceID] = append(s.order[c.SourceID], c.ID)
		}
		s.chunks[c.ID] = &c
	}
	return nil
}

func (s *KnowledgeStore) PendingChunks(ctx context.Context, sourceID string, limit int) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DocumentChunk
	for _, cid := range s.order[sourceID] {
		c := s.chunks[cid]
		if c.Embedding == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *KnowledgeStore) SetEmbedding(ctx context.Context, chunkID string, vec []float32, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return domain.ErrSourceNotFound
	}
	c.Embedding = slices.Clone(vec)
	if len(metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		maps.Copy(c.Metadata, metadata)
	}
	return nil
}

func (s *KnowledgeStore) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error) {
	if len(q.SourceIDs) == 0 || q.TopK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.ScoredChunk
	for _, sid := range q.SourceIDs {
		src, ok := s.sources[sid]
		if !ok || src.Status != domain.SourceReady {
			continue
		}
		for _, cid := range s.order[sid] {
			c := s.chunks[cid]
			if len(c.Embedding) == 0 || len(c.Embedding) != len(q.Vector) {
				continue
			}
			sim := vector.Cosine(q.Vector, c.Embedding)
			if sim < q.MinSimilarity {
				continue
			}
			hit := domain.ScoredChunk{DocumentChunk: *c, Similarity: sim}
			hit.Embedding = nil
			hits = append(hits, hit)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

func copySource(src *domain.KnowledgeSource) *domain.KnowledgeSource {
	cp := *src
	cp.Metadata = maps.Clone(src.Metadata)
	return &cp
}
