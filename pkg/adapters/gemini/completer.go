// Package gemini adapts Google's Gemini API to the Completer port.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/aretw0/parley/pkg/ports"
)

// DefaultModel is used when neither the request nor the Completer names a model.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when Gemini answers without text (e.g. blocked by safety filters).
var ErrEmptyResponse = errors.New("gemini returned no text")

// Completer implements ports.Completer with genai.
type Completer struct {
	client *genai.Client
	model  string
}

type config struct {
	model   string
	baseURL string
}

// Option configures a Completer.
type Option func(*config)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New creates a Completer for the Gemini API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Completer, error) {
	cfg := config{model: DefaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Completer{client: client, model: cfg.model}, nil
}

// Complete sends the user prompt with the system prompt as system instruction.
func (c *Completer) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	gc := &genai.GenerateContentConfig{}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		gc.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.User), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generation with %s failed: %w", model, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
