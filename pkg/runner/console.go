package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// ContentRenderer transforms message text before it is written (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// Format selects how the Console writes messages.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Console implements ports.Messenger by writing bot messages to a terminal or pipe.
type Console struct {
	mu       sync.Mutex
	writer   io.Writer
	renderer ContentRenderer
	format   Format
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithRenderer configures the content renderer used in text format.
func WithRenderer(renderer ContentRenderer) ConsoleOption {
	return func(c *Console) {
		c.renderer = renderer
	}
}

// WithFormat selects text or JSON lines output.
func WithFormat(format Format) ConsoleOption {
	return func(c *Console) {
		c.format = format
	}
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{writer: w, format: FormatText}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type consoleMessage struct {
	Recipient string          `json:"recipient"`
	Text      string          `json:"text"`
	Options   []domain.Option `json:"options,omitempty"`
}

// SendText writes a plain message.
func (c *Console) SendText(ctx context.Context, recipient, text string) error {
	return c.write(consoleMessage{Recipient: recipient, Text: text})
}

// SendQuickReplies writes the message followed by one button-like line per option.
func (c *Console) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	return c.write(consoleMessage{Recipient: recipient, Text: text, Options: options})
}

func (c *Console) write(msg consoleMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.format == FormatJSON {
		return json.NewEncoder(c.writer).Encode(msg)
	}

	output := msg.Text
	if c.renderer != nil {
		if rendered, err := c.renderer(msg.Text); err == nil {
			output = rendered
		}
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(output))
	b.WriteString("\n")
	for _, opt := range msg.Options {
		label := opt.Label
		if label == "" {
			label = opt.Key()
		}
		fmt.Fprintf(&b, "  [ %s ]\n", label)
	}
	_, err := io.WriteString(c.writer, b.String())
	return err
}
