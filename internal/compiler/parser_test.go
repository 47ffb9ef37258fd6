package compiler_test

import (
	"errors"
	"testing"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorJSON = `{
  "name": "food",
  "nodes": [
    {"id": "start", "type": "trigger", "data": {"label": "Start", "config": {"trigger_type": "keyword", "keyword": "menu"}}},
    {"id": "ask", "type": "question", "data": {"label": "Ask", "config": {
      "question_text": "Pizza or burger?",
      "allow_custom_response": "true",
      "options": [{"id": "yes", "label": "Pizza"}, {"id": "no", "label": "Burger"}]
    }}},
    {"id": "age", "type": "condition", "data": {"config": {"condition_type": "greater_than", "condition_field": "age", "condition_value": 18}}},
    {"id": "bot", "type": "ai", "data": {"config": {"ai_prompt": "Be brief", "ai_model": "gemini", "use_knowledge": false}}},
    {"id": "done", "type": "end"}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "ask"},
    {"source": "ask", "target": "age", "label": "yes"}
  ]
}`

const flatYAML = `
name: greeter
nodes:
  - id: start
    type: trigger
  - id: hello
    type: message
    label: Hello
    config:
      message_text: Hi there
      error_handling: end
  - id: done
    type: end
edges:
  - id: e1
    source: start
    target: hello
  - id: e2
    source: hello
    target: done
`

func TestParse_EditorJSON(t *testing.T) {
	flow, err := compiler.Parse([]byte(editorJSON))
	require.NoError(t, err)
	assert.Equal(t, "food", flow.Name)
	require.Len(t, flow.Nodes, 5)

	start, _ := flow.Node("start")
	assert.Equal(t, "Start", start.Label)
	assert.Equal(t, domain.TriggerConfig{TriggerType: "keyword", Keyword: "menu"}, start.Config)

	ask, _ := flow.Node("ask")
	q, ok := ask.Config.(domain.QuestionConfig)
	require.True(t, ok)
	assert.Equal(t, "Pizza or burger?", q.Text)
	assert.True(t, q.AllowCustom)
	assert.Equal(t, domain.Options{{ID: "yes", Label: "Pizza"}, {ID: "no", Label: "Burger"}}, q.Options)

	cond, _ := flow.Node("age")
	assert.Equal(t, domain.ConditionConfig{Operator: domain.OpGreaterThan, Field: "age", Value: "18"}, cond.Config)

	ai, _ := flow.Node("bot")
	aiCfg := ai.Config.(domain.AIConfig)
	assert.Equal(t, "gemini", aiCfg.Provider)
	assert.False(t, aiCfg.KnowledgeEnabled())
	assert.True(t, aiCfg.ContextEnabled())

	done, _ := flow.Node("done")
	assert.Equal(t, domain.EndConfig{}, done.Config)

	require.Len(t, flow.Edges, 2)
	assert.NotEmpty(t, flow.Edges[1].ID, "missing edge ids are generated")
	assert.Equal(t, "yes", flow.Edges[1].Label)
}

func TestParse_FlatYAML(t *testing.T) {
	flow, err := compiler.Parse([]byte(flatYAML))
	require.NoError(t, err)

	hello, ok := flow.Node("hello")
	require.True(t, ok)
	assert.Equal(t, "Hello", hello.Label)
	assert.Equal(t, domain.MessageConfig{Text: "Hi there", OnError: domain.OnErrorEnd}, hello.Config)
	assert.Equal(t, "done", flow.Next("hello"))
}

func TestParse_Errors(t *testing.T) {
	_, err := compiler.Parse([]byte(""))
	assert.Error(t, err)

	_, err = compiler.Parse([]byte(`{"nodes":[{"id":"x","type":"teleport"}]}`))
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))

	_, err = compiler.Parse([]byte(`{"nodes":[{"id":"c","type":"condition","config":{"condition_type":"regex"}}]}`))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = compiler.Parse([]byte(`{"nodes":[{"type":"end"}]}`))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	flow, err := compiler.Parse([]byte(editorJSON))
	require.NoError(t, err)

	data, err := compiler.Marshal(flow)
	require.NoError(t, err)

	again, err := compiler.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, flow.Nodes, again.Nodes)
	assert.Equal(t, flow.Edges, again.Edges)
}
