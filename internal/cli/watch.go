package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/parley/pkg/ports"
)

// flowWatcher is implemented by repositories that notice edits to flow documents.
type flowWatcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

// WatchFlows reloads flows as their documents change, until ctx is done.
// Changes are announced on w when it is not nil. Repositories that cannot be
// watched return at once.
func WatchFlows(ctx context.Context, flows ports.FlowRepository, logger *slog.Logger, w io.Writer) error {
	watcher, ok := flows.(flowWatcher)
	if !ok {
		logger.Debug("flow repository does not support watching")
		return nil
	}
	events, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("watching flow documents")
	for {
		select {
		case <-ctx.Done():
			return nil
		case botID, ok := <-events:
			if !ok {
				return nil
			}
			logger.Info("flow changed, cache invalidated", "bot_id", botID)
			if w != nil {
				printSystemMessage(w, "Change detected in '%s'.", botID)
			}
		}
	}
}
