package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates collection caches when their files are changed by
// another process. Events caused by the collection's own writes are
// recognized by content hash and ignored.
type Watcher struct {
	w      *fsnotify.Watcher
	logger *slog.Logger

	mu     sync.Mutex
	byPath map[string]*Collection
	dirs   map[string]bool
}

// NewWatcher creates a watcher with no collections
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		w:      w,
		logger: logger,
		byPath: make(map[string]*Collection),
		dirs:   make(map[string]bool),
	}, nil
}

// Add starts watching a collection. The containing directory is watched
// rather than the file, since every persist replaces the file by rename.
func (w *Watcher) Add(c *Collection) error {
	path, err := filepath.Abs(c.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", c.Path(), err)
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.byPath[path] = c
	return nil
}

// Run dispatches file events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.logger.WarnContext(ctx, "error watching collection files", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	path, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	w.mu.Lock()
	c, ok := w.byPath[path]
	w.mu.Unlock()
	if !ok || !c.ChangedOnDisk() {
		return
	}
	w.logger.InfoContext(ctx, "collection file changed externally, reloading on next access",
		"path", c.Path(), "op", event.Op.String())
	c.Invalidate()
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.w.Close()
}
