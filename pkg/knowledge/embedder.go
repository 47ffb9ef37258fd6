package knowledge

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/vector"
)

// MaxEmbeddingChars is the input limit applied before calling an embedding service.
const MaxEmbeddingChars = 10000

// HashDimensions is the vector size of HashEmbedder.
const HashDimensions = 384

// Truncate cuts text to at most limit runes.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}

// HashEmbedder is a deterministic offline embedder based on hashed word features.
// It keeps retrieval working without an embedding service, at a much lower quality.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a HashEmbedder with the given dimensionality (HashDimensions if <= 0).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = HashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		sum := f.Sum32()
		idx := int(sum % uint32(h.dims))
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return vector.Normalize(vec), nil
}

// FallbackEmbedder tries each embedder in order and returns the first success.
// Dimensions reports the first embedder's size, so vectors from later ones get flagged by the indexer.
type FallbackEmbedder struct {
	chain []ports.Embedder
}

// NewFallbackEmbedder creates a FallbackEmbedder. It panics without embedders.
func NewFallbackEmbedder(chain ...ports.Embedder) *FallbackEmbedder {
	if len(chain) == 0 {
		panic("knowledge: fallback embedder needs at least one embedder")
	}
	return &FallbackEmbedder{chain: chain}
}

func (f *FallbackEmbedder) Dimensions() int { return f.chain[0].Dimensions() }

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var errs []error
	for _, e := range f.chain {
		vec, err := e.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all embedders failed: %w", errors.Join(errs...))
}
