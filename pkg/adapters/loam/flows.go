package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/loam"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/internal/dto"
	"github.com/aretw0/parley/pkg/domain"
)

// FlowRepository adapts a Loam repository to ports.FlowRepository.
// Each document holds the flow of one bot; the bot ID is the document
// name without its extension (pizza.json, pizza.yaml and pizza.md all map to "pizza").
// Compiled flows are cached until Invalidate is called or Watch reports a change.
type FlowRepository struct {
	Repo *loam.TypedRepository[dto.FlowDocument]

	mu    sync.RWMutex
	cache map[string]*domain.Flow
}

// New creates a FlowRepository over an existing typed repository.
func New(repo *loam.TypedRepository[dto.FlowDocument]) *FlowRepository {
	return &FlowRepository{
		Repo:  repo,
		cache: make(map[string]*domain.Flow),
	}
}

// Open initializes a strict, read-only Loam repository at path.
func Open(path string, opts ...loam.Option) (*FlowRepository, error) {
	opts = append([]loam.Option{loam.WithStrict(true), loam.WithReadOnly(true)}, opts...)
	repo, err := loam.Init(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize flow repository at %s: %w", path, err)
	}
	return New(loam.NewTypedRepository[dto.FlowDocument](repo)), nil
}

// Load returns the compiled flow of a bot.
func (r *FlowRepository) Load(ctx context.Context, botID string) (*domain.Flow, error) {
	r.mu.RLock()
	cached, ok := r.cache[botID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	doc, err := r.Repo.Get(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFlowNotFound, botID, err)
	}

	flow, err := compiler.Compile(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to compile flow %s: %w", botID, err)
	}
	flow.BotID = botID

	r.mu.Lock()
	r.cache[botID] = flow
	r.mu.Unlock()
	return flow, nil
}

// List returns the bot IDs of every flow document.
// Two documents resolving to the same bot ID are reported as an error.
func (r *FlowRepository) List(ctx context.Context) ([]string, error) {
	docs, err := r.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := trimExtension(doc.ID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: bot '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

// Invalidate drops the cached flow of a bot. An empty botID clears the whole cache.
func (r *FlowRepository) Invalidate(botID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if botID == "" {
		r.cache = make(map[string]*domain.Flow)
		return
	}
	delete(r.cache, botID)
}

// Watch invalidates cached flows as their documents change and reports the affected bot IDs.
// The returned channel closes when ctx is done or the underlying watcher stops.
func (r *FlowRepository) Watch(ctx context.Context) (<-chan string, error) {
	events, err := r.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				id := trimExtension(evt.ID)
				r.Invalidate(id)
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
