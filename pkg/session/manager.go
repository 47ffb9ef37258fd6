package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a conversation.
// Lockers renew the lease while the holder is alive.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates conversation access, ensuring passes never interleave.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.StateStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store ports.StateStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu and call release after unlocking.
func (m *Manager) acquire(conversationID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[conversationID]
	if !ok {
		entry = &lockEntry{}
		m.locks[conversationID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.locks[conversationID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, conversationID)
	}
}

// ActiveLocks returns the number of conversations currently holding or waiting for a lock.
func (m *Manager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// WithLock runs fn while holding the conversation lock.
// fn must use Store() directly; the Manager's own methods would deadlock.
func (m *Manager) WithLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	entry := m.acquire(conversationID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(conversationID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, conversationID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"conversation_id", conversationID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Load retrieves a conversation from the store.
func (m *Manager) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	var state *domain.ConversationState
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, conversationID)
		return err
	})
	return state, err
}

// LoadOrCreate loads a conversation or creates and persists a fresh one.
func (m *Manager) LoadOrCreate(ctx context.Context, conversationID, botID, recipient string) (*domain.ConversationState, error) {
	var state *domain.ConversationState
	err := m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		var (
			created bool
			err     error
		)
		state, created, err = LoadOrNew(ctx, m.store, conversationID, botID, recipient)
		if err != nil || !created {
			return err
		}
		if err := m.store.Save(ctx, conversationID, state); err != nil {
			return fmt.Errorf("failed to initialize conversation: %w", err)
		}
		return nil
	})
	return state, err
}

// LoadOrNew loads a conversation or returns a new, unsaved state with created set.
// It does not lock; callers run it inside WithLock.
func LoadOrNew(ctx context.Context, store ports.StateStore, conversationID, botID, recipient string) (state *domain.ConversationState, created bool, err error) {
	state, err = store.Load(ctx, conversationID)
	if err == nil {
		return state, false, nil
	}
	if !errors.Is(err, domain.ErrConversationNotFound) {
		return nil, false, fmt.Errorf("failed to check conversation existence: %w", err)
	}
	return domain.NewConversationState(conversationID, botID, recipient, time.Now().UTC()), true, nil
}

// Save persists the conversation state.
func (m *Manager) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Save(ctx, conversationID, state)
	})
}

// Delete removes the conversation from the store.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	return m.WithLock(ctx, conversationID, func(ctx context.Context) error {
		return m.store.Delete(ctx, conversationID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}
