package validator_test

import (
	"testing"

	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, typ domain.NodeType) domain.Node {
	var cfg domain.NodeConfig
	switch typ {
	case domain.NodeTrigger:
		cfg = domain.TriggerConfig{}
	case domain.NodeMessage:
		cfg = domain.MessageConfig{Text: id}
	case domain.NodeQuestion:
		cfg = domain.QuestionConfig{Text: id}
	case domain.NodeCondition:
		cfg = domain.ConditionConfig{}
	case domain.NodeAI:
		cfg = domain.AIConfig{}
	case domain.NodeEnd:
		cfg = domain.EndConfig{}
	}
	return domain.Node{ID: id, Type: typ, Config: cfg}
}

func edge(src, dst string) domain.Edge {
	return domain.Edge{ID: src + "->" + dst, Source: src, Target: dst}
}

func TestValidate_ValidFlow(t *testing.T) {
	flow := &domain.Flow{
		Nodes: []domain.Node{
			node("start", domain.NodeTrigger),
			node("ask", domain.NodeQuestion),
			node("hi", domain.NodeMessage),
			node("done", domain.NodeEnd),
		},
		Edges: []domain.Edge{edge("start", "ask"), edge("ask", "hi"), edge("hi", "ask"), edge("hi", "done")},
	}
	assert.NoError(t, validator.Validate(flow), "loops through a question are fine")
}

func TestValidate_DeadEndIsAnExit(t *testing.T) {
	flow := &domain.Flow{
		Nodes: []domain.Node{node("start", domain.NodeTrigger), node("hi", domain.NodeMessage)},
		Edges: []domain.Edge{edge("start", "hi")},
	}
	assert.NoError(t, validator.Validate(flow))
}

func TestValidate_Problems(t *testing.T) {
	flow := &domain.Flow{
		Nodes: []domain.Node{
			node("start", domain.NodeTrigger),
			node("a", domain.NodeMessage),
			node("b", domain.NodeCondition),
			node("orphan", domain.NodeEnd),
			{ID: "bad", Type: domain.NodeMessage, Config: domain.EndConfig{}},
		},
		Edges: []domain.Edge{
			edge("start", "a"),
			edge("a", "b"),
			edge("b", "a"),
			edge("a", "ghost"),
			edge("start", "bad"),
		},
	}

	err := validator.Validate(flow)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidFlow)

	msg := err.Error()
	assert.Contains(t, msg, `edge "a->ghost": target "ghost" does not exist`)
	assert.Contains(t, msg, `node "orphan": unreachable`)
	assert.Contains(t, msg, `node "a": loops forever`)
	assert.Contains(t, msg, `node "b": loops forever`)
	assert.Contains(t, msg, `node "bad": config does not match`)
	assert.Len(t, validator.Issues(err), 5)
}

func TestValidate_Triggers(t *testing.T) {
	err := validator.Validate(&domain.Flow{Nodes: []domain.Node{node("done", domain.NodeEnd)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trigger")

	err = validator.Validate(&domain.Flow{
		Nodes: []domain.Node{node("t1", domain.NodeTrigger), node("t2", domain.NodeTrigger)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second trigger")
}
