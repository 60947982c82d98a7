package storage

import (
	"context"
	"sync"
	"time"
)

// MockFileLock is a FileLock for tests. A lock held elsewhere (Held) makes
// every attempt fail until released.
type MockFileLock struct {
	mu        sync.Mutex
	locked    bool
	held      bool
	lockError error

	LockAttempts   int
	UnlockAttempts int
}

func (m *MockFileLock) TryLockContext(ctx context.Context, retryDelay time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockAttempts++
	if m.lockError != nil {
		return false, m.lockError
	}
	if m.held || m.locked {
		return false, nil
	}
	m.locked = true
	return true, nil
}

func (m *MockFileLock) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnlockAttempts++
	m.locked = false
	return nil
}

// IsLocked reports whether the lock is currently held by its owner
func (m *MockFileLock) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// SetHeld simulates another process holding the lock
func (m *MockFileLock) SetHeld(held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = held
}

// SetLockError makes every lock attempt fail with err
func (m *MockFileLock) SetLockError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockError = err
}

// MockFileLockFactory hands out one MockFileLock per path
type MockFileLockFactory struct {
	mu    sync.Mutex
	locks map[string]*MockFileLock
}

// NewMockFileLockFactory creates an empty factory
func NewMockFileLockFactory() *MockFileLockFactory {
	return &MockFileLockFactory{locks: make(map[string]*MockFileLock)}
}

// New implements FileLockFactory.New
func (f *MockFileLockFactory) New(path string) FileLock {
	return f.Lock(path)
}

// Lock returns the mock lock for path, creating it on first use
func (f *MockFileLockFactory) Lock(path string) *MockFileLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[path]; ok {
		return l
	}
	l := &MockFileLock{}
	f.locks[path] = l
	return l
}
