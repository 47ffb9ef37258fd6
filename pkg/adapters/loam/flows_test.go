package loam_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/internal/dto"
	loamAdapter "github.com/aretw0/parley/pkg/adapters/loam"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports/tests"
)

const pizzaFlow = `{
  "name": "Pizza",
  "nodes": [
    {"id": "start", "type": "trigger", "data": {"config": {"trigger_type": "any"}}},
    {"id": "hello", "type": "message", "data": {"label": "Hello", "config": {"message_text": "Welcome!"}}},
    {"id": "done", "type": "end"}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "hello"},
    {"id": "e2", "source": "hello", "target": "done"}
  ]
}`

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

// initRepo creates a loam repository in a temp dir holding flow documents.
func initRepo(t *testing.T) (string, core.Repository) {
	t.Helper()
	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	repo, err := loam.Init(dir)
	require.NoError(t, err)
	return dir, repo
}

func TestFlowRepository_Load(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{"pizza.json": pizzaFlow})

	repo, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	flow, err := repo.Load(context.Background(), "pizza")
	require.NoError(t, err)
	assert.Equal(t, "pizza", flow.BotID, "bot id comes from the document name")
	assert.Equal(t, "Pizza", flow.Name)
	assert.Len(t, flow.Nodes, 3)
	assert.Equal(t, "hello", flow.Next("start"))

	hello, ok := flow.Node("hello")
	require.True(t, ok)
	assert.Equal(t, domain.MessageConfig{Text: "Welcome!"}, hello.Config)
}

func TestFlowRepository_LoadMissing(t *testing.T) {
	dir := t.TempDir()
	repo, err := loamAdapter.Open(dir)
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestFlowRepository_CachesUntilInvalidated(t *testing.T) {
	dir, base := initRepo(t)
	seed(t, dir, map[string]string{"pizza.json": pizzaFlow})
	repo := loamAdapter.New(loam.NewTypedRepository[dto.FlowDocument](base))
	ctx := context.Background()

	first, err := repo.Load(ctx, "pizza")
	require.NoError(t, err)

	renamed := `{"name": "Renamed", "nodes": [{"id": "start", "type": "trigger"}], "edges": []}`
	seed(t, dir, map[string]string{"pizza.json": renamed})

	cached, err := repo.Load(ctx, "pizza")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	repo.Invalidate("pizza")
	fresh, err := repo.Load(ctx, "pizza")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Name)
}

func TestFlowRepository_List(t *testing.T) {
	dir, base := initRepo(t)
	seed(t, dir, map[string]string{
		"pizza.json":  pizzaFlow,
		"burger.json": pizzaFlow,
	})
	repo := loamAdapter.New(loam.NewTypedRepository[dto.FlowDocument](base))

	ids, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pizza", "burger"}, ids)
}

func TestFlowRepository_ListDetectsCollisions(t *testing.T) {
	dir, base := initRepo(t)
	seed(t, dir, map[string]string{
		"pizza.json": pizzaFlow,
		"pizza.md": `---
name: Pizza
nodes: []
---
`,
	})
	repo := loamAdapter.New(loam.NewTypedRepository[dto.FlowDocument](base))

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "pizza")
}

func TestFlowRepository_Contract(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, map[string]string{"pizza.json": pizzaFlow})
	repo, err := loamAdapter.Open(dir)
	require.NoError(t, err)
	tests.RunFlowRepositoryContract(t, repo, "pizza")
}
