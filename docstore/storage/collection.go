// Package storage holds the collection cache: one authoritative in-memory
// copy of a JSON collection file, lazily loaded and persisted through a
// single serialized write path.
//
// Every collection is backed 1:1 by a file holding a top-level JSON array of
// documents, pretty-printed with two-space indentation. Writes go to
// "<file>.tmp" and are renamed over the original, so a reader of the file
// never observes a partial write. A "<file>.lock" advisory lock is taken
// around file access as a best-effort guard against other processes.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arthur-debert/docstore/docstore/ids"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Matcher selects documents
type Matcher interface {
	Match(doc types.Document) bool
}

// MatchFunc adapts a function to Matcher
type MatchFunc func(doc types.Document) bool

// Match implements Matcher
func (f MatchFunc) Match(doc types.Document) bool { return f(doc) }

// All matches every document
var All Matcher = MatchFunc(func(types.Document) bool { return true })

// Constants for file locking
const (
	defaultLockTimeout = 3 * time.Second
	lockMaxRetries     = 3
	lockRetryDelay     = 100 * time.Millisecond
)

// Collection is the cache of one collection file.
//
// mu guards the document slice. writeMu serializes writers: it is held from
// the moment a mutation reads the cache until its rename completes, so the
// last finished write always includes every earlier mutation.
type Collection struct {
	path        string
	fs          FileSystem
	lockFactory FileLockFactory
	fileLock    FileLock
	logger      *slog.Logger
	newID       func() string
	lockTimeout time.Duration

	mu     sync.RWMutex
	docs   []types.Document
	loaded bool

	writeMu sync.Mutex

	// hash of the bytes last read or written, used to tell our own writes
	// apart from external edits
	lastHash atomic.Pointer[[sha256.Size]byte]
}

// New creates the cache for the collection file at path. Nothing is read
// until the first operation.
func New(path string, opts ...Option) *Collection {
	c := &Collection{
		path:        path,
		fs:          OSFileSystem{},
		lockFactory: FlockFactory{},
		logger:      slog.Default(),
		newID:       ids.New,
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fileLock = c.lockFactory.New(path + ".lock")
	return c
}

// Path returns the backing file path
func (c *Collection) Path() string {
	return c.path
}

// Name returns the file name without extension
func (c *Collection) Name() string {
	base := filepath.Base(c.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load (re)reads the backing file, replacing the cache. A missing or empty
// file is an empty collection; an unparsable one is a *CorruptError and
// leaves the cache unloaded.
func (c *Collection) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.load(ctx)
}

func (c *Collection) ensure(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	loaded = c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.load(ctx)
}

// load reads the file; the caller holds writeMu
func (c *Collection) load(ctx context.Context) error {
	docs, err := c.read(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.docs = docs
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Collection) read(ctx context.Context) ([]types.Document, error) {
	if _, err := c.fs.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("collection file missing, starting empty", "path", c.path)
		c.lastHash.Store(nil)
		return []types.Document{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat collection file: %w", err)
	}

	if err := c.acquireLock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = c.fileLock.Unlock() }()

	data, err := c.fs.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}
	sum := sha256.Sum256(data)
	c.lastHash.Store(&sum)

	if len(bytes.TrimSpace(data)) == 0 {
		return []types.Document{}, nil
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Error("collection file is corrupt", "path", c.path, "error", err)
		return nil, &CorruptError{Path: c.path, Err: err}
	}

	docs := make([]types.Document, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		doc := types.Document(m)
		if doc[types.IDField] == nil {
			doc[types.IDField] = c.newID()
		}
		docs = append(docs, doc)
	}
	c.logger.Debug("collection loaded", "path", c.path, "count", len(docs))
	return docs, nil
}

// acquireLock takes the file lock, retrying a few times within lockTimeout
func (c *Collection) acquireLock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()

	for i := 0; i < lockMaxRetries; i++ {
		locked, err := c.fileLock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s", ErrLockTimeout, c.path)
			}
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return nil
		}

		c.logger.Warn("collection lock busy", "path", c.path, "attempt", i+1)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockTimeout, c.path)
		case <-time.After(lockRetryDelay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %s", ErrLockTimeout, lockMaxRetries, c.path)
}

// Snapshot returns deep copies of every document, in collection order
func (c *Collection) Snapshot(ctx context.Context) ([]types.Document, error) {
	return c.Filtered(ctx, All)
}

// Filtered returns deep copies of the documents selected by m
func (c *Collection) Filtered(ctx context.Context, m Matcher) ([]types.Document, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Document, 0, len(c.docs))
	for _, doc := range c.docs {
		if m.Match(doc) {
			out = append(out, value.CloneDocument(doc))
		}
	}
	return out, nil
}

// ByIDs returns deep copies of the documents whose _id is in idList
func (c *Collection) ByIDs(ctx context.Context, idList []string) ([]types.Document, error) {
	want := make(map[string]struct{}, len(idList))
	for _, id := range idList {
		want[id] = struct{}{}
	}
	return c.Filtered(ctx, MatchFunc(func(doc types.Document) bool {
		_, ok := want[doc.ID()]
		return ok
	}))
}

// Count returns the number of documents selected by m
func (c *Collection) Count(ctx context.Context, m Matcher) (int, error) {
	if err := c.ensure(ctx); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, doc := range c.docs {
		if m.Match(doc) {
			n++
		}
	}
	return n, nil
}

// Insert appends documents and persists. Documents without an _id are given
// one in place. Nothing is inserted if any _id already exists.
func (c *Collection) Insert(ctx context.Context, docs ...types.Document) error {
	if len(docs) == 0 {
		return nil
	}
	err := c.Modify(ctx, func(current []types.Document) ([]types.Document, bool, error) {
		taken := make(map[string]struct{}, len(current)+len(docs))
		for _, d := range current {
			taken[d.ID()] = struct{}{}
		}
		added := make([]types.Document, 0, len(docs))
		for _, d := range docs {
			if d[types.IDField] == nil {
				d[types.IDField] = c.newID()
			}
			id := d.ID()
			if _, dup := taken[id]; dup {
				return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, id)
			}
			taken[id] = struct{}{}
			added = append(added, value.CloneDocument(d))
		}
		return append(current, added...), true, nil
	})
	return err
}

// Upsert replaces the document with the same _id, or appends it, and persists
func (c *Collection) Upsert(ctx context.Context, doc types.Document) error {
	if doc[types.IDField] == nil {
		doc[types.IDField] = c.newID()
	}
	stored := value.CloneDocument(doc)
	id := stored.ID()
	return c.Modify(ctx, func(current []types.Document) ([]types.Document, bool, error) {
		for i, d := range current {
			if d.ID() == id {
				current[i] = stored
				return current, true, nil
			}
		}
		return append(current, stored), true, nil
	})
}

// ModifyFunc receives a copy of the document slice and returns the
// replacement slice and whether anything changed. Documents in the slice are
// shared with the cache and must be replaced, not mutated.
type ModifyFunc func(docs []types.Document) ([]types.Document, bool, error)

// Modify runs an exclusive read-modify-write pass. The replacement is
// written to disk first and becomes visible only once the write succeeded,
// so a failed write leaves the cache unchanged.
func (c *Collection) Modify(ctx context.Context, fn ModifyFunc) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if !loaded {
		if err := c.load(ctx); err != nil {
			return err
		}
	}

	c.mu.RLock()
	current := slices.Clone(c.docs)
	c.mu.RUnlock()

	next, changed, err := fn(current)
	if err != nil || !changed {
		return err
	}
	if err := c.write(ctx, next); err != nil {
		return err
	}

	c.mu.Lock()
	c.docs = next
	c.mu.Unlock()
	return nil
}

// DeleteMany removes the documents selected by m and persists
func (c *Collection) DeleteMany(ctx context.Context, m Matcher) (int, error) {
	removed := 0
	err := c.Modify(ctx, func(current []types.Document) ([]types.Document, bool, error) {
		kept := current[:0:0]
		for _, d := range current {
			if m.Match(d) {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		return kept, removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Persist rewrites the backing file from the cache, loading it first if
// needed
func (c *Collection) Persist(ctx context.Context) error {
	return c.Modify(ctx, func(docs []types.Document) ([]types.Document, bool, error) {
		return docs, true, nil
	})
}

// write replaces the backing file with docs; the caller holds writeMu
func (c *Collection) write(ctx context.Context, docs []types.Document) error {
	if docs == nil {
		docs = []types.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := c.acquireLock(ctx); err != nil {
		return err
	}
	defer func() { _ = c.fileLock.Unlock() }()

	tmpFile := c.path + ".tmp"
	if err := c.fs.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	prev := c.lastHash.Load()
	sum := sha256.Sum256(data)
	c.lastHash.Store(&sum)
	if err := c.fs.Rename(tmpFile, c.path); err != nil {
		c.lastHash.Store(prev)
		_ = c.fs.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	c.logger.Debug("collection persisted", "path", c.path, "count", len(docs), "bytes", len(data))
	return nil
}

// Invalidate drops the cache; the next operation reloads the file
func (c *Collection) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// ChangedOnDisk reports whether the backing file differs from the bytes
// this collection last read or wrote
func (c *Collection) ChangedOnDisk() bool {
	data, err := c.fs.ReadFile(c.path)
	last := c.lastHash.Load()
	if err != nil {
		return last != nil
	}
	sum := sha256.Sum256(data)
	return last == nil || sum != *last
}
