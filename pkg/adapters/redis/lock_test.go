package redis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "conv-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:conv-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:conv-1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	first := redis.NewLocker(client, "test:")
	second := redis.NewLocker(client, "test:").WithPollInterval(20 * time.Millisecond)
	ctx := context.Background()

	unlock1, err := first.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = second.Lock(short, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond, "should block until the deadline")

	require.NoError(t, unlock1(ctx))

	unlock2, err := second.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second) // first holder expired

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:k"), "stale release must not remove the new holder's lock")

	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:k"))
}

// outliveTTL advances redis time well past ttl in steps, giving the holder's
// watchdog real time to renew between steps.
func outliveTTL(mr *miniredis.Miniredis, ttl time.Duration) {
	for i := 0; i < 6; i++ {
		mr.FastForward(ttl / 2)
		time.Sleep(ttl / 2)
	}
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	contender := redis.NewLocker(client, "test:").WithPollInterval(10 * time.Millisecond)
	ctx := context.Background()
	ttl := 150 * time.Millisecond

	unlock, err := locker.Lock(ctx, "long-pass", ttl)
	require.NoError(t, err)

	outliveTTL(mr, ttl)
	assert.True(t, mr.Exists("test:lock:long-pass"), "lease must survive while the holder is alive")

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = contender.Lock(short, "long-pass", ttl)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:long-pass"))
	require.NoError(t, unlock(ctx), "unlock is idempotent")

	unlock2, err := contender.Lock(ctx, "long-pass", ttl)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StopsRenewingAfterTakeover(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()
	ttl := 150 * time.Millisecond

	unlock, err := locker.Lock(ctx, "k", ttl)
	require.NoError(t, err)
	defer func() { _ = unlock(ctx) }()

	// Another holder took the key (e.g. after a network partition).
	mr.Set("test:lock:k", "someone-else")
	mr.SetTTL("test:lock:k", time.Hour)
	time.Sleep(ttl)

	got, err := mr.Get("test:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
	assert.Equal(t, time.Hour, mr.TTL("test:lock:k"), "a foreign lease is never extended")
}

type nopStore struct{}

func (nopStore) Save(ctx context.Context, id string, state *domain.ConversationState) error {
	return nil
}
func (nopStore) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	return nil, domain.ErrConversationNotFound
}
func (nopStore) Delete(ctx context.Context, id string) error  { return nil }
func (nopStore) List(ctx context.Context) ([]string, error) { return nil, nil }

func TestSessionManagers_SerializeAcrossReplicas(t *testing.T) {
	mr, client := newClient(t)
	ttl := 150 * time.Millisecond
	locker := redis.NewLocker(client, "parley:").WithPollInterval(10 * time.Millisecond)
	replicaA := session.NewManager(nopStore{}, session.WithLocker(locker), session.WithLockTTL(ttl))
	replicaB := session.NewManager(nopStore{}, session.WithLocker(locker), session.WithLockTTL(ttl))
	ctx := context.Background()

	var inside atomic.Int32
	entered := make(chan struct{})
	finish := make(chan struct{})
	errA := make(chan error, 1)
	go func() {
		errA <- replicaA.WithLock(ctx, "c-1", func(ctx context.Context) error {
			inside.Add(1)
			close(entered)
			<-finish
			inside.Add(-1)
			return nil
		})
	}()
	<-entered

	// The pass outlives the lease several times over.
	outliveTTL(mr, ttl)

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	var overlapped bool
	err := replicaB.WithLock(short, "c-1", func(ctx context.Context) error {
		overlapped = inside.Load() > 0
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, overlapped, "two passes for the same conversation interleaved")

	close(finish)
	require.NoError(t, <-errA)

	require.NoError(t, replicaB.WithLock(ctx, "c-1", func(ctx context.Context) error {
		assert.Zero(t, inside.Load())
		return nil
	}))
}
