package memory_test

import "github.com/aretw0/parley/pkg/domain"

func sampleFlow(botID string) *domain.Flow {
	return &domain.Flow{
		BotID: botID,
		Name:  "greeter",
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeTrigger, Config: domain.TriggerConfig{}},
			{ID: "bye", Type: domain.NodeEnd, Config: domain.EndConfig{}},
		},
		Edges: []domain.Edge{{ID: "e1", Source: "start", Target: "bye"}},
	}
}
