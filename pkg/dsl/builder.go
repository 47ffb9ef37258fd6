package dsl

import (
	"fmt"

	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	botID string
	name  string
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge
}

// New creates a new graph builder for a bot.
func New(botID, name string) *Builder {
	return &Builder{
		botID: botID,
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

func (b *Builder) connect(source, target, handle string) {
	b.edges = append(b.edges, domain.Edge{
		ID:           fmt.Sprintf("e%d-%s-%s", len(b.edges)+1, source, target),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	})
}

// Flow returns the graph without validating it.
func (b *Builder) Flow() *domain.Flow {
	flow := &domain.Flow{
		BotID: b.botID,
		Name:  b.name,
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: append([]domain.Edge(nil), b.edges...),
	}
	for _, id := range b.order {
		flow.Nodes = append(flow.Nodes, b.nodes[id].Build())
	}
	return flow
}

// Build returns the graph after authoring-time validation.
func (b *Builder) Build() (*domain.Flow, error) {
	flow := b.Flow()
	if err := validator.Validate(flow); err != nil {
		return nil, err
	}
	return flow, nil
}

// MustBuild is like Build but panics on invalid graphs.
func (b *Builder) MustBuild() *domain.Flow {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
