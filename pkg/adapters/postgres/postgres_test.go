package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/adapters/postgres"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/ports/tests"
)

// EnvTestDSN points the integration tests at a database with the vector extension available.
const EnvTestDSN = "PARLEY_TEST_POSTGRES_DSN"

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvTestDSN)
	}
	pool, err := postgres.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestKnowledgeStore_Contract(t *testing.T) {
	tests.RunKnowledgeStoreContract(t, postgres.NewKnowledgeStore(setupPool(t)))
}

func TestConversationLog_Contract(t *testing.T) {
	tests.RunConversationLogContract(t, postgres.NewConversationLog(setupPool(t)))
}

func TestStateStore_Contract(t *testing.T) {
	tests.RunStateStoreContract(t, postgres.NewStateStore(setupPool(t)))
}

func TestFlowRepository(t *testing.T) {
	pool := setupPool(t)
	repo := postgres.NewFlowRepository(pool)
	ctx := context.Background()

	b := dsl.New("pg-pizza", "Pizza")
	b.Add("start").Trigger().Go("ask")
	b.Add("ask").Question("Pizza?", dsl.Opt("yes", "Ja"), dsl.Opt("no", "Nein")).
		Branch("yes", "bye").
		Branch("no", "bye")
	b.Add("bye").End()
	require.NoError(t, repo.Save(ctx, b.MustBuild()))
	t.Cleanup(func() { _ = repo.Delete(ctx, "pg-pizza") })

	tests.RunFlowRepositoryContract(t, repo, "pg-pizza")

	flow, err := repo.Load(ctx, "pg-pizza")
	require.NoError(t, err)
	ask, ok := flow.Node("ask")
	require.True(t, ok)
	cfg, ok := ask.Config.(domain.QuestionConfig)
	require.True(t, ok)
	assert.Len(t, cfg.Options, 2)
	assert.Equal(t, "bye", flow.Next("ask"))
}

func TestMigrate_Idempotent(t *testing.T) {
	pool := setupPool(t)
	assert.NoError(t, postgres.Migrate(pool))
}
