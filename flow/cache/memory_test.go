package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMemory(t *testing.T) {
	backend := NewMemory(0)
	defer backend.Close()
	testBackend(t, backend)
}

func TestMemory_NoJanitorWithoutCleanupInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := NewMemory(0)
	if err := backend.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := backend.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory(0)
	defer backend.Close()

	_ = backend.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	_ = backend.Set(ctx, "forever", []byte("v"), 0)
	time.Sleep(30 * time.Millisecond)

	if _, found, _ := backend.Get(ctx, "short"); found {
		t.Error("expected expired entry to miss")
	}
	if _, found, _ := backend.Get(ctx, "forever"); !found {
		t.Error("expected entry without ttl to survive")
	}
}

func TestMemory_CopiesValue(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory(0)
	defer backend.Close()

	value := []byte("abc")
	_ = backend.Set(ctx, "k", value, 0)
	value[0] = 'x'

	got, _, _ := backend.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value changed with caller's slice: %q", got)
	}
}

func TestMemory_Close(t *testing.T) {
	backend := NewMemory(0)
	_ = backend.Set(context.Background(), "k", []byte("v"), 0)
	testClosed(t, backend)
	if backend.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", backend.Len())
	}
}
