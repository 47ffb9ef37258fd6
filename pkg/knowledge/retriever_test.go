package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store *memory.KnowledgeStore, id, botID string, status domain.SourceStatus, chunks map[string][]float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateSource(ctx, &domain.KnowledgeSource{
		ID: id, BotID: botID, Type: domain.SourceText, Status: status, CreatedAt: time.Now(),
	}))
	i := 0
	for content, vec := range chunks {
		require.NoError(t, store.InsertChunks(ctx, []domain.DocumentChunk{{
			ID: id + "-" + content, SourceID: id, Index: i, Content: content, Embedding: vec,
		}}))
		i++
	}
}

func TestRetriever_EmptySourcesIsNotAnError(t *testing.T) {
	emb := &keywordEmbedder{}
	r := knowledge.NewRetriever(memory.NewKnowledgeStore(), emb)

	hits, err := r.Retrieve(context.Background(), "pizza", nil, 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, emb.calls.Load(), "no sources means no embedding call")

	hits, err = r.RetrieveForBot(context.Background(), "bot-without-sources", "pizza", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetriever_RanksReadySourcesOfBot(t *testing.T) {
	store := memory.NewKnowledgeStore()
	seed(t, store, "menu", "bot-1", domain.SourceReady, map[string][]float32{
		"pizza":        {1, 0, 0},
		"pizza burger": {1, 1, 0},
		"salad":        {0, 0, 1},
	})
	seed(t, store, "draft", "bot-1", domain.SourceProcessing, map[string][]float32{
		"pizza draft": {1, 0, 0},
	})
	seed(t, store, "other", "bot-2", domain.SourceReady, map[string][]float32{
		"pizza elsewhere": {1, 0, 0},
	})

	r := knowledge.NewRetriever(store, &keywordEmbedder{})
	hits, err := r.RetrieveForBot(context.Background(), "bot-1", "Pizza please", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "pizza", hits[0].Content)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, "pizza burger", hits[1].Content)

	hits, err = r.RetrieveForBot(context.Background(), "bot-1", "pizza", 1, 0.7)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRetriever_CachesQueryEmbeddings(t *testing.T) {
	store := memory.NewKnowledgeStore()
	seed(t, store, "menu", "bot-1", domain.SourceReady, map[string][]float32{"pizza": {1, 0, 0}})
	emb := &keywordEmbedder{}
	r := knowledge.NewRetriever(store, emb)

	for range 3 {
		_, err := r.Retrieve(context.Background(), "pizza", []string{"menu"}, 5, 0.5)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), emb.calls.Load())

	uncached := knowledge.NewRetriever(store, emb, knowledge.WithCacheSize(0))
	_, err := uncached.Retrieve(context.Background(), "pizza", []string{"menu"}, 5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestRetriever_EmbeddingFailure(t *testing.T) {
	store := memory.NewKnowledgeStore()
	seed(t, store, "menu", "bot-1", domain.SourceReady, map[string][]float32{"pizza": {1, 0, 0}})
	r := knowledge.NewRetriever(store, &keywordEmbedder{fail: "pizza"})

	_, err := r.Retrieve(context.Background(), "pizza", []string{"menu"}, 5, 0.5)
	assert.ErrorContains(t, err, "failed to embed query")
}
