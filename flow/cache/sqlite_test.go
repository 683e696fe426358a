package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	backend, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	return backend
}

func TestSQLite(t *testing.T) {
	backend := newTestSQLite(t)
	defer backend.Close()
	testBackend(t, backend)
}

func TestSQLite_Expiry(t *testing.T) {
	ctx := context.Background()
	backend := newTestSQLite(t)
	defer backend.Close()

	now := time.Unix(1_700_000_000, 0)
	backend.now = func() time.Time { return now }

	_ = backend.Set(ctx, "short", []byte("v"), time.Minute)
	_ = backend.Set(ctx, "forever", []byte("v"), 0)

	now = now.Add(2 * time.Minute)
	if _, found, _ := backend.Get(ctx, "short"); found {
		t.Error("expected expired entry to miss")
	}
	if _, found, _ := backend.Get(ctx, "forever"); !found {
		t.Error("expected entry without ttl to survive")
	}

	removed, err := backend.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Purge removed %d entries, want 1", removed)
	}
}

func TestSQLite_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	_ = first.Set(ctx, "k", []byte("kept"), 0)
	_ = first.Close()

	second, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	value, found, err := second.Get(ctx, "k")
	if err != nil || !found || string(value) != "kept" {
		t.Errorf("after reopen Get = %q, %v, %v", value, found, err)
	}
	if second.Path() != path {
		t.Errorf("Path() = %q, want %q", second.Path(), path)
	}
}

func TestSQLite_Close(t *testing.T) {
	testClosed(t, newTestSQLite(t))
}
