package storage

import (
	"context"
	"time"

	"github.com/gofrs/flock"
)

// FileLock is an advisory lock on a sidecar file
type FileLock interface {
	// TryLockContext retries acquiring the lock every retryDelay until it
	// succeeds or ctx is done
	TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error)

	// Unlock releases the lock
	Unlock() error
}

// FileLockFactory creates the lock guarding one collection file
type FileLockFactory interface {
	New(path string) FileLock
}

// FlockFactory creates locks backed by flock(2)
type FlockFactory struct{}

// New implements FileLockFactory.New
func (FlockFactory) New(path string) FileLock {
	return flock.New(path)
}
