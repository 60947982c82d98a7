package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherInvalidatesOnExternalEdit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`[{"_id": "u1"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(path, WithLogger(logger))
	if n, err := c.Count(ctx, All); err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	w, err := NewWatcher(logger)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	go w.Run(ctx)

	if err := os.WriteFile(path, []byte(`[{"_id": "u1"}, {"_id": "u2"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n, err := c.Count(ctx, All); err == nil && n == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("external edit was not picked up")
}
