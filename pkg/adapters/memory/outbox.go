package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Sent is one message captured by the Outbox.
type Sent struct {
	Recipient string
	Text      string
	Options   []domain.Option
}

// Outbox implements ports.Messenger by recording every message.
// Set Err to make every send fail.
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) SendText(ctx context.Context, recipient, text string) error {
	return o.record(Sent{Recipient: recipient, Text: text})
}

func (o *Outbox) SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error {
	return o.record(Sent{Recipient: recipient, Text: text, Options: append([]domain.Option(nil), options...)})
}

func (o *Outbox) record(s Sent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.sent = append(o.sent, s)
	return nil
}

// Messages returns a copy of everything sent so far.
func (o *Outbox) Messages() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}

// Texts returns the text of every message sent so far.
func (o *Outbox) Texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.sent))
	for i, s := range o.sent {
		out[i] = s.Text
	}
	return out
}

// Reset forgets captured messages.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = nil
}
