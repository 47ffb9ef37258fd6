package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// FlowRepository implements ports.FlowRepository with a map keyed by bot ID.
type FlowRepository struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewFlowRepository creates a repository seeded with the given flows.
func NewFlowRepository(flows ...*domain.Flow) *FlowRepository {
	r := &FlowRepository{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		r.Put(f)
	}
	return r
}

// Put registers or replaces the flow of f.BotID.
// The flow is shared with callers and must not be mutated afterwards.
func (r *FlowRepository) Put(f *domain.Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[f.BotID] = f
}

// Load returns the flow of a bot.
func (r *FlowRepository) Load(ctx context.Context, botID string) (*domain.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[botID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return f, nil
}

// List returns bot IDs in sorted order.
func (r *FlowRepository) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
