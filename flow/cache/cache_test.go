package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// testBackend runs the behaviour every Backend must share.
func testBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		value, found, err := backend.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found || value != nil {
			t.Errorf("expected miss, got found=%v value=%q", found, value)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := backend.Set(ctx, "k1", []byte(`{"sum":49}`), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, found, err := backend.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !found {
			t.Fatal("expected hit")
		}
		if !bytes.Equal(value, []byte(`{"sum":49}`)) {
			t.Errorf("value = %q", value)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_ = backend.Set(ctx, "k2", []byte("old"), 0)
		if err := backend.Set(ctx, "k2", []byte("new"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, _, _ := backend.Get(ctx, "k2")
		if string(value) != "new" {
			t.Errorf("value = %q, want new", value)
		}
	})

	t.Run("delete", func(t *testing.T) {
		_ = backend.Set(ctx, "k3", []byte("v"), 0)
		if err := backend.Delete(ctx, "k3"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, found, _ := backend.Get(ctx, "k3"); found {
			t.Error("expected miss after Delete")
		}
		if err := backend.Delete(ctx, "k3"); err != nil {
			t.Errorf("deleting an absent key failed: %v", err)
		}
	})

	t.Run("concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("c%d", i)
				if err := backend.Set(ctx, key, []byte(key), time.Minute); err != nil {
					t.Errorf("Set %s failed: %v", key, err)
					return
				}
				if value, found, err := backend.Get(ctx, key); err != nil || !found || string(value) != key {
					t.Errorf("Get %s = %q, %v, %v", key, value, found, err)
				}
			}(i)
		}
		wg.Wait()
	})
}

func testClosed(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, _, err := backend.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close: expected ErrClosed, got %v", err)
	}
	if err := backend.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close: expected ErrClosed, got %v", err)
	}
}
