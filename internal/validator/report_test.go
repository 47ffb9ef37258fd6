package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/internal/validator"
)

func TestCheckDocument(t *testing.T) {
	report := validator.CheckDocument([]byte(`
name: Greeter
nodes:
  - id: start
    type: trigger
  - id: hello
    type: message
    config:
      message_text: Hallo!
  - id: bye
    type: end
edges:
  - {id: e1, source: start, target: hello}
  - {id: e2, source: hello, target: bye}
`))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
	assert.Contains(t, report.Mermaid, "graph TD")
	require.NotNil(t, report.Flow)
	assert.Len(t, report.Flow.Nodes, 3)
}

func TestCheckDocument_Issues(t *testing.T) {
	report := validator.CheckDocument([]byte(`{"name":"x","nodes":[{"id":"a","type":"message"},{"id":"b","type":"end"}],"edges":[]}`))
	assert.False(t, report.Valid)
	assert.NotEmpty(t, report.Issues)
	assert.Empty(t, report.Mermaid)

	report = validator.CheckDocument([]byte("   "))
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"empty flow document"}, report.Issues)
}
