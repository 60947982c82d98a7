package storage

import (
	"log/slog"
	"time"
)

// Option configures a Collection
type Option func(*Collection)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fs FileSystem) Option {
	return func(c *Collection) {
		c.fs = fs
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(c *Collection) {
		c.lockFactory = factory
	}
}

// WithLogger sets the logger used for load and persist events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// WithIDFunc sets the generator used for documents stored without an _id
func WithIDFunc(fn func() string) Option {
	return func(c *Collection) {
		c.newID = fn
	}
}

// WithLockTimeout bounds how long load and persist wait for the file lock
func WithLockTimeout(d time.Duration) Option {
	return func(c *Collection) {
		c.lockTimeout = d
	}
}
