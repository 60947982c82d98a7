package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arthur-debert/docstore/types"
	"github.com/google/go-cmp/cmp"
)

func newMockCollection(t *testing.T, opts ...Option) (*Collection, *MockFileSystem, *MockFileLockFactory) {
	t.Helper()
	mockFS := NewMockFileSystem()
	locks := NewMockFileLockFactory()
	n := 0
	base := []Option{
		WithFileSystem(mockFS),
		WithFileLockFactory(locks),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("id%d", n)
		}),
	}
	return New("data/users.json", append(base, opts...)...), mockFS, locks
}

func TestCollectionWithMockFS(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is an empty collection", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)

		docs, err := c.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(docs) != 0 {
			t.Errorf("expected no documents, got %d", len(docs))
		}
		if mockFS.FileExists("data/users.json") {
			t.Error("reading should not create the file")
		}
	})

	t.Run("empty file is an empty collection", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte("  \n"))

		n, err := c.Count(ctx, All)
		if err != nil || n != 0 {
			t.Errorf("Count = %d, %v; want 0, nil", n, err)
		}
	})

	t.Run("corrupt file is reported", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "a",`))

		_, err := c.Snapshot(ctx)
		if !errors.Is(err, ErrCorrupt) {
			t.Fatalf("expected ErrCorrupt, got %v", err)
		}
		var corrupt *CorruptError
		if !errors.As(err, &corrupt) || corrupt.Path != "data/users.json" {
			t.Errorf("expected *CorruptError for data/users.json, got %v", err)
		}

		// fixing the file makes the next access succeed
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "a"}]`))
		docs, err := c.Snapshot(ctx)
		if err != nil || len(docs) != 1 {
			t.Errorf("after repair Snapshot = %v, %v", docs, err)
		}
	})

	t.Run("loaded documents without id receive one", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"name": "Amy"}, {"_id": "u2", "name": "Bo"}]`))

		docs, err := c.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		want := []types.Document{
			{"_id": "id1", "name": "Amy"},
			{"_id": "u2", "name": "Bo"},
		}
		if diff := cmp.Diff(want, docs); diff != "" {
			t.Errorf("documents mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("persist writes keys in sorted order", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id":"u1","zip":"1000","name":"Amy","address":{"street":"Main","city":"Oslo"}}]`))

		if err := c.Persist(ctx); err != nil {
			t.Fatalf("Persist: %v", err)
		}
		content, _ := mockFS.FileContent("data/users.json")
		want := "[\n  {\n    \"_id\": \"u1\",\n    \"address\": {\n      \"city\": \"Oslo\",\n      \"street\": \"Main\"\n    },\n    \"name\": \"Amy\",\n    \"zip\": \"1000\"\n  }\n]"
		if string(content) != want {
			t.Errorf("file content:\n%s\nwant:\n%s", content, want)
		}
	})

	t.Run("insert persists pretty printed array", func(t *testing.T) {
		c, mockFS, locks := newMockCollection(t)

		doc := types.Document{"name": "Amy", "age": 30.0}
		if err := c.Insert(ctx, doc); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if doc.ID() != "id1" {
			t.Errorf("Insert should assign the id in place, got %q", doc.ID())
		}

		content, ok := mockFS.FileContent("data/users.json")
		if !ok {
			t.Fatal("file not written")
		}
		want := "[\n  {\n    \"_id\": \"id1\",\n    \"age\": 30,\n    \"name\": \"Amy\"\n  }\n]"
		if string(content) != want {
			t.Errorf("file content:\n%s\nwant:\n%s", content, want)
		}
		if mockFS.FileExists("data/users.json.tmp") {
			t.Error("temp file left behind")
		}
		lock := locks.Lock("data/users.json.lock")
		if lock.IsLocked() {
			t.Error("lock still held after persist")
		}
		if lock.LockAttempts == 0 {
			t.Error("persist did not take the file lock")
		}
	})

	t.Run("insert rejects duplicate ids", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1"}]`))

		err := c.Insert(ctx, types.Document{"_id": "u2"}, types.Document{"_id": "u1"})
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		if n, _ := c.Count(ctx, All); n != 1 {
			t.Errorf("failed insert must not add documents, have %d", n)
		}
	})

	t.Run("snapshots are copies", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1", "tags": ["a"]}]`))

		docs, _ := c.Snapshot(ctx)
		docs[0]["tags"] = []any{"changed"}
		again, _ := c.Snapshot(ctx)
		if diff := cmp.Diff([]any{"a"}, again[0]["tags"]); diff != "" {
			t.Errorf("cache mutated through snapshot (-want +got):\n%s", diff)
		}
	})

	t.Run("upsert replaces by id", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1", "name": "Amy"}, {"_id": "u2"}]`))

		if err := c.Upsert(ctx, types.Document{"_id": "u1", "name": "Amelia"}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := c.Upsert(ctx, types.Document{"_id": "u3"}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		docs, _ := c.Snapshot(ctx)
		want := []types.Document{{"_id": "u1", "name": "Amelia"}, {"_id": "u2"}, {"_id": "u3"}}
		if diff := cmp.Diff(want, docs); diff != "" {
			t.Errorf("documents mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("delete many and by ids", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1", "x": 1}, {"_id": "u2", "x": 2}, {"_id": "u3", "x": 1}]`))

		byID, err := c.ByIDs(ctx, []string{"u3", "u1", "nope"})
		if err != nil || len(byID) != 2 || byID[0].ID() != "u1" {
			t.Errorf("ByIDs = %v, %v", byID, err)
		}

		n, err := c.DeleteMany(ctx, MatchFunc(func(d types.Document) bool { return d["x"] == 1.0 }))
		if err != nil || n != 2 {
			t.Fatalf("DeleteMany = %d, %v; want 2", n, err)
		}
		content, _ := mockFS.FileContent("data/users.json")
		var onDisk []map[string]any
		if err := json.Unmarshal(content, &onDisk); err != nil {
			t.Fatalf("persisted file is invalid JSON: %v", err)
		}
		if len(onDisk) != 1 || onDisk[0]["_id"] != "u2" {
			t.Errorf("persisted %v, want only u2", onDisk)
		}
	})

	t.Run("write failures propagate", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.WriteFileError = errors.New("disk full")

		err := c.Insert(ctx, types.Document{"name": "Amy"})
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Errorf("expected disk full error, got %v", err)
		}
	})

	t.Run("failed write leaves the cache unchanged", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		if err := c.Insert(ctx, types.Document{"_id": "u1"}); err != nil {
			t.Fatal(err)
		}

		mockFS.WriteFileError = errors.New("disk full")
		if err := c.Insert(ctx, types.Document{"_id": "u2"}); err == nil {
			t.Fatal("expected insert to fail")
		}
		mockFS.WriteFileError = nil
		mockFS.RenameError = errors.New("device busy")
		if _, err := c.DeleteMany(ctx, All); err == nil {
			t.Fatal("expected delete to fail")
		}
		mockFS.RenameError = nil

		if n, _ := c.Count(ctx, All); n != 1 {
			t.Errorf("cache holds %d documents after failed writes, want 1", n)
		}
		// the next successful write must not carry the rejected insert
		if err := c.Insert(ctx, types.Document{"_id": "u3"}); err != nil {
			t.Fatal(err)
		}
		c.Invalidate()
		docs, err := c.Snapshot(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, d := range docs {
			got = append(got, d.ID())
		}
		if diff := cmp.Diff([]string{"u1", "u3"}, got); diff != "" {
			t.Errorf("persisted ids (-want +got):\n%s", diff)
		}
	})

	t.Run("busy lock times out", func(t *testing.T) {
		c, _, locks := newMockCollection(t, WithLockTimeout(time.Second))
		locks.Lock("data/users.json.lock").SetHeld(true)

		err := c.Insert(ctx, types.Document{"name": "Amy"})
		if !errors.Is(err, ErrLockTimeout) {
			t.Errorf("expected ErrLockTimeout, got %v", err)
		}
	})

	t.Run("invalidate reloads from disk", func(t *testing.T) {
		c, mockFS, _ := newMockCollection(t)
		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1"}]`))
		if n, _ := c.Count(ctx, All); n != 1 {
			t.Fatalf("expected 1 document, got %d", n)
		}
		if c.ChangedOnDisk() {
			t.Error("unchanged file reported as changed")
		}

		mockFS.SetFile("data/users.json", []byte(`[{"_id": "u1"}, {"_id": "u2"}]`))
		if !c.ChangedOnDisk() {
			t.Error("external edit not detected")
		}
		if n, _ := c.Count(ctx, All); n != 1 {
			t.Errorf("cache should still hold 1 document before invalidation, got %d", n)
		}
		c.Invalidate()
		if n, _ := c.Count(ctx, All); n != 2 {
			t.Errorf("expected 2 documents after reload, got %d", n)
		}
	})
}

func TestCollectionConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "items.json")
	c := New(path, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- c.Insert(ctx, types.Document{"n": float64(i)})
		}(i)
	}

	// read the file while writes are in flight; it must always parse
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for reading := true; reading; {
		select {
		case <-done:
			reading = false
		default:
			if data, err := os.ReadFile(path); err == nil {
				var docs []map[string]any
				if err := json.Unmarshal(data, &docs); err != nil {
					t.Fatalf("file read back as invalid JSON mid-write: %v", err)
				}
			}
		}
	}
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	reloaded := New(path)
	docs, err := reloaded.Snapshot(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(docs) != writers {
		t.Errorf("expected %d documents on disk, got %d", writers, len(docs))
	}
}
