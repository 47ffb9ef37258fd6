package knowledge_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/knowledge"
	"github.com/aretw0/parley/pkg/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder(t *testing.T) {
	h := knowledge.NewHashEmbedder(0)
	assert.Equal(t, knowledge.HashDimensions, h.Dimensions())

	ctx := context.Background()
	a, err := h.Embed(ctx, "Our pizza oven runs all day")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "our PIZZA oven runs all day!")
	require.NoError(t, err)
	c, err := h.Embed(ctx, "Invoices are sent monthly by email")
	require.NoError(t, err)

	assert.Len(t, a, knowledge.HashDimensions)
	assert.InDelta(t, 1.0, vector.Cosine(a, b), 1e-6)
	assert.Less(t, vector.Cosine(a, c), 0.5)
}

func TestFallbackEmbedder(t *testing.T) {
	primary := &keywordEmbedder{fail: "pizza"}
	f := knowledge.NewFallbackEmbedder(primary, knowledge.NewHashEmbedder(8))
	assert.Equal(t, 3, f.Dimensions())

	vec, err := f.Embed(context.Background(), "burger")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	vec, err = f.Embed(context.Background(), "pizza")
	require.NoError(t, err)
	assert.Len(t, vec, 8)

	broken := knowledge.NewFallbackEmbedder(&keywordEmbedder{fail: "pizza"})
	_, err = broken.Embed(context.Background(), "pizza")
	assert.ErrorContains(t, err, "all embedders failed")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", knowledge.Truncate("abc", 10))
	assert.Equal(t, "äöü", knowledge.Truncate("äöüß", 3))
	assert.Len(t, []rune(knowledge.Truncate(strings.Repeat("x", 20000), knowledge.MaxEmbeddingChars)), knowledge.MaxEmbeddingChars)
}
