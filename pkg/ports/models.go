package ports

import "context"

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	// Provider selects the backend (groq, openai, gemini). Empty means the default.
	Provider    string
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer is a stateless language model completion service.
// Implementations must honour ctx deadlines.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns text into a fixed-dimensionality vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the expected vector size.
	Dimensions() int
}
