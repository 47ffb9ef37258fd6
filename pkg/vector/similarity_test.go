package vector_test

import (
	"testing"

	"github.com/aretw0/parley/pkg/vector"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, vector.Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, vector.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 0.8, vector.Cosine([]float32{1, 0, 0}, []float32{0.8, 0.6, 0}), 1e-6)
	assert.Zero(t, vector.Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, vector.Cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestNormalize(t *testing.T) {
	v := vector.Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, vector.Norm(v), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
}
