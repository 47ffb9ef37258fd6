package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// FlowRepository defines how the runtime retrieves bot definitions.
type FlowRepository interface {
	// Load returns the flow of a bot.
	// Returns domain.ErrFlowNotFound if the bot has no flow.
	Load(ctx context.Context, botID string) (*domain.Flow, error)

	// List returns the IDs of all bots with a flow.
	List(ctx context.Context) ([]string, error)
}
