package openai

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
)

// Embedder implements ports.Embedder with the embeddings API.
type Embedder struct {
	client     oai.Client
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder, text-embedding-3-small with 1536 dimensions by default.
func NewEmbedder(opts ...Option) *Embedder {
	c := newConfig(DefaultEmbeddingModel, opts)
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	return &Embedder{client: c.client(), model: c.model, dimensions: c.dimensions}
}

// Dimensions returns the configured vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed returns the embedding of text. Callers truncate long inputs.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := oai.EmbeddingNewParams{
		Model: oai.EmbeddingModel(e.model),
		Input: oai.EmbeddingNewParamsInputUnion{OfString: oai.String(text)},
	}
	if e.model != "text-embedding-ada-002" {
		params.Dimensions = oai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s failed: %w", e.model, err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
