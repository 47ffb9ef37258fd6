package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"

	"github.com/aretw0/parley/pkg/ports"
)

// ErrEmptyResponse is returned when the API answers without choices or embeddings.
var ErrEmptyResponse = errors.New("response contained no results")

// Completer implements ports.Completer with the chat completions API.
type Completer struct {
	client oai.Client
	model  string
}

// NewCompleter creates a Completer for OpenAI.
func NewCompleter(opts ...Option) *Completer {
	c := newConfig(DefaultOpenAIModel, opts)
	return &Completer{client: c.client(), model: c.model}
}

// NewGroqCompleter creates a Completer for Groq's OpenAI-compatible endpoint.
func NewGroqCompleter(apiKey string, opts ...Option) *Completer {
	opts = append([]Option{WithBaseURL(GroqBaseURL), WithModel(DefaultGroqModel), WithAPIKey(apiKey)}, opts...)
	return NewCompleter(opts...)
}

// Complete sends the system and user prompt as a single-turn chat.
func (c *Completer) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	messages = append(messages, oai.UserMessage(req.User))

	params := oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = oai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = oai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion with %s failed: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
