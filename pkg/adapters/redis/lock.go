package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when redis fails while acquiring a lock.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// DefaultPollInterval is how often a blocked Lock retries.
const DefaultPollInterval = 100 * time.Millisecond

// releaseScript deletes the key only while it still holds our token.
var releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still holds our token.
var renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// minRenewInterval keeps tiny TTLs from turning the watchdog into a busy loop.
const minRenewInterval = 10 * time.Millisecond

// Locker implements ports.DistributedLocker using Redis SET NX PX.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

// NewLocker creates a Redis locker. Keys are stored as prefix + "lock:" + key.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   DefaultPollInterval,
	}
}

// WithPollInterval returns a copy of the locker that retries at the given interval.
func (l *Locker) WithPollInterval(d time.Duration) *Locker {
	cp := *l
	cp.poll = d
	return &cp
}

// Lock blocks until the lock is held or ctx is done.
// While held, the lease is extended every ttl/3 so a long pass keeps it;
// the lock expires after ttl only when the holder stops renewing (crash, lost
// connection). The returned UnlockFunc stops renewal and releases the key.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			stop := l.keepAlive(lockKey, token, ttl)
			var once sync.Once
			return func(ctx context.Context) error {
				once.Do(stop)
				return releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive renews the lease until the returned stop function is called or the
// key no longer holds token. stop waits for the renewing goroutine to exit.
func (l *Locker) keepAlive(lockKey, token string, ttl time.Duration) (stop func()) {
	interval := ttl / 3
	if interval < minRenewInterval {
		interval = minRenewInterval
	}
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
			cancel()
			if err == nil && renewed == 0 {
				// Expired or taken over: nothing left to extend.
				return
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
