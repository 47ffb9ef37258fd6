// Package openai adapts OpenAI-compatible APIs (OpenAI, Groq) to the Completer and Embedder ports.
package openai

import (
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// GroqBaseURL is the OpenAI-compatible endpoint of Groq.
	GroqBaseURL = "https://api.groq.com/openai/v1/"

	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultGroqModel      = "llama-3.3-70b-versatile"
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimensions is the vector size of text-embedding-3-small.
	DefaultEmbeddingDimensions = 1536
)

type config struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	maxRetries int
	httpClient *http.Client
}

// Option configures a Completer or Embedder.
type Option func(*config)

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithBaseURL points the client at another OpenAI-compatible server (e.g. GroqBaseURL).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimensions sets the embedding size requested from the API.
func WithDimensions(dims int) Option {
	return func(c *config) { c.dimensions = dims }
}

// WithMaxRetries sets the SDK retry budget. The SDK default is 2.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

func newConfig(defaultModel string, opts []Option) config {
	c := config{model: defaultModel, maxRetries: -1}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c config) client() oai.Client {
	var opts []option.RequestOption
	if c.apiKey != "" {
		opts = append(opts, option.WithAPIKey(c.apiKey))
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	if c.maxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(c.maxRetries))
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	return oai.NewClient(opts...)
}
