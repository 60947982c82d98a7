// Package docstore is an embedded document store over plain JSON files.
//
// A Registry binds model names to backing files under one data directory.
// Each Model offers MongoDB-style reads (Find with sort, skip, limit,
// select and populate), find-and-modify updates with upsert, deletes,
// counting, aggregation pipelines and ranked text search. Every mutation
// rewrites the whole collection file atomically.
package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/arthur-debert/docstore/docstore/ids"
	"github.com/arthur-debert/docstore/docstore/storage"
	"github.com/arthur-debert/docstore/internal/validation"
	"github.com/arthur-debert/docstore/types"
)

// Registry owns the models of one data directory
type Registry struct {
	dataDir     string
	fs          storage.FileSystem
	lockFactory storage.FileLockFactory
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	mu      sync.RWMutex
	models  map[string]*Model
	order   []string
	watcher *storage.Watcher
}

// NewRegistry creates an empty registry rooted at dataDir
func NewRegistry(dataDir string, opts ...Option) *Registry {
	r := &Registry{
		dataDir:     dataDir,
		fs:          storage.OSFileSystem{},
		lockFactory: storage.FlockFactory{},
		logger:      slog.Default(),
		now:         time.Now,
		newID:       ids.New,
		models:      make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DataDir returns the directory collection files live in
func (r *Registry) DataDir() string {
	return r.dataDir
}

// Define validates cfg and registers a model bound to dataDir/cfg.File
func (r *Registry) Define(cfg types.ModelConfig) (*Model, error) {
	if err := validation.ValidateModel(cfg); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrModelExists, cfg.Name)
	}

	path := filepath.Join(r.dataDir, cfg.FileName())
	logger := r.logger.With("model", cfg.Name)
	coll := storage.New(path,
		storage.WithFileSystem(r.fs),
		storage.WithFileLockFactory(r.lockFactory),
		storage.WithLogger(logger),
		storage.WithIDFunc(r.newID),
	)
	m := &Model{cfg: cfg, coll: coll, reg: r, logger: logger}

	if r.watcher != nil {
		if err := r.watch(r.watcher, m); err != nil {
			return nil, err
		}
	}

	r.models[cfg.Name] = m
	r.order = append(r.order, cfg.Name)
	r.logger.Debug("model defined", "model", cfg.Name, "path", path)
	return m, nil
}

// DefineFromFile registers every model listed in a models file
func (r *Registry) DefineFromFile(path string) ([]*Model, error) {
	mf, err := LoadModelsFile(r.fs, path)
	if err != nil {
		return nil, err
	}
	models := make([]*Model, 0, len(mf.Models))
	for _, cfg := range mf.Models {
		m, err := r.Define(cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// Model returns the model registered under name
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// MustModel is Model that returns ErrUnknownModel for missing names
func (r *Registry) MustModel(name string) (*Model, error) {
	m, ok := r.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// Models returns the registered model names in registration order
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Documents returns a snapshot of the named model's documents. It lets the
// registry serve as the $lookup source of aggregation pipelines.
func (r *Registry) Documents(ctx context.Context, name string) ([]types.Document, bool, error) {
	m, ok := r.Model(name)
	if !ok {
		return nil, false, nil
	}
	docs, err := m.coll.Snapshot(ctx)
	if err != nil {
		return nil, true, err
	}
	return docs, true, nil
}

// Watch starts reloading collections whose files are changed by other
// processes. It runs until ctx is done or Close is called.
func (r *Registry) Watch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return nil
	}

	w, err := storage.NewWatcher(r.logger)
	if err != nil {
		return err
	}
	for _, name := range r.order {
		if err := r.watch(w, r.models[name]); err != nil {
			_ = w.Close()
			return err
		}
	}
	r.watcher = w
	go w.Run(ctx)
	return nil
}

// watch adds a model's file to w, creating its directory first since only
// existing directories can be watched
func (r *Registry) watch(w *storage.Watcher, m *Model) error {
	dir := filepath.Dir(m.coll.Path())
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := w.Add(m.coll); err != nil {
		return fmt.Errorf("failed to watch model %s: %w", m.cfg.Name, err)
	}
	return nil
}

// Close stops the watcher, if any
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	r.watcher = nil
	return err
}
