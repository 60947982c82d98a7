package docstore

import (
	"log/slog"
	"time"

	"github.com/arthur-debert/docstore/docstore/storage"
)

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger shared by every model of the registry
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithFileSystem sets the file system collections are stored on
func WithFileSystem(fs storage.FileSystem) Option {
	return func(r *Registry) {
		r.fs = fs
	}
}

// WithLockFactory sets the factory for collection file locks
func WithLockFactory(factory storage.FileLockFactory) Option {
	return func(r *Registry) {
		r.lockFactory = factory
	}
}

// WithTimeFunc sets the clock used for createdAt/updatedAt
func WithTimeFunc(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDFunc sets the generator for document and sub-document ids
func WithIDFunc(fn func() string) Option {
	return func(r *Registry) {
		r.newID = fn
	}
}
