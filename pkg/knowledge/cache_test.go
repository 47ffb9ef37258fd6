package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newEmbeddingCache(2)
	c.put("a", []float32{1})
	c.put("b", []float32{2})
	_, ok := c.get("a")
	assert.True(t, ok)

	c.put("c", []float32{3})
	assert.Equal(t, 2, c.len())

	_, ok = c.get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []float32{1}, v)

	v[0] = 42
	v, _ = c.get("a")
	assert.Equal(t, float32(1), v[0], "callers get a copy")
}
