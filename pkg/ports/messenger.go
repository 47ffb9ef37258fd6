package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Messenger is the messaging gateway to end users.
// Delivery is asynchronous and unordered; a nil error only means the gateway accepted the message.
type Messenger interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, recipient, text string) error

	// SendQuickReplies delivers text with up to three selectable answers.
	SendQuickReplies(ctx context.Context, recipient, text string, options []domain.Option) error
}
