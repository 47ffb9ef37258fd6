package knowledge_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

// keywordEmbedder maps text onto a tiny vocabulary so similarities are predictable.
type keywordEmbedder struct {
	calls atomic.Int32
	fail  string
	dims  int
}

var vocabulary = []string{"pizza", "burger", "salad"}

func (k *keywordEmbedder) Dimensions() int {
	if k.dims > 0 {
		return k.dims
	}
	return len(vocabulary)
}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	k.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(text)
	if k.fail != "" && strings.Contains(lower, k.fail) {
		return nil, errors.New("embedding service unavailable")
	}
	vec := make([]float32, len(vocabulary))
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}
