package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It lets the session Manager serialize passes for one conversation across replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is done.
	// The returned UnlockFunc MUST be called to release the lock; the TTL bounds
	// how long a crashed holder can block others.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
