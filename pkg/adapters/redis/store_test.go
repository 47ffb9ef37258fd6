package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	tests.RunStateStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	id := "conversation-ttl"
	state := domain.NewConversationState(id, "bot", "+49", time.Now())
	state.CurrentNodeID = "ask"

	require.NoError(t, store.Save(ctx, id, state))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	// The index is pruned against the wall clock, not the miniredis clock.
	time.Sleep(1200 * time.Millisecond)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "wa:491510", domain.NewConversationState("wa:491510", "bot", "491510", time.Now()))
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:wa:491510"))
	assert.True(t, mr.Exists("custom:app:index"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "wa:491510")
}
