package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore adds latency so that missing locks show up as lost updates.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Save(ctx context.Context, id string, state *domain.ConversationState) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, id, state)
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func TestManager_SerializesReadModifyWrite(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	_, err := manager.LoadOrCreate(ctx, id, "bot", "+49")
	require.NoError(t, err)

	var wg sync.WaitGroup
	const writers = 10
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				state, err := manager.Store().Load(ctx, id)
				if err != nil {
					return err
				}
				state.History = append(state.History, domain.HistoryEntry{NodeID: "step", Timestamp: time.Now()})
				return manager.Store().Save(ctx, id, state)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, state.History, writers, "no update may be lost")
	assert.Zero(t, manager.ActiveLocks())
}

func TestManager_LoadOrCreate(t *testing.T) {
	store := SlowStore{memory.NewStore()}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrCreate(ctx, id, "bot", "+49")
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "bot", state.BotID)
	assert.Equal(t, domain.StatusActive, state.Status)
	assert.Empty(t, state.CurrentNodeID)
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("redis down")
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttls  []time.Duration
	freed int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.ttls = append(l.ttls, ttl)
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()

	locker := &recordingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	require.NoError(t, manager.WithLock(ctx, "c1", func(context.Context) error { return nil }))
	assert.Equal(t, []string{"c1"}, locker.keys)
	assert.Equal(t, []time.Duration{5 * time.Second}, locker.ttls)
	assert.Equal(t, 1, locker.freed)

	manager = session.NewManager(memory.NewStore(), session.WithLocker(failingLocker{}))
	called := false
	err := manager.WithLock(ctx, "c1", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
