package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// MySQL tests need a server: TEST_MYSQL_DSN="user:pass@tcp(localhost:3306)/taskflow_test"
func newTestMySQL(t *testing.T) *MySQL {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL tests")
	}
	backend, err := NewMySQL(dsn)
	if err != nil {
		t.Fatalf("NewMySQL failed: %v", err)
	}
	return backend
}

func TestMySQL(t *testing.T) {
	backend := newTestMySQL(t)
	defer backend.Close()
	testBackend(t, backend)
}

func TestMySQL_Expiry(t *testing.T) {
	ctx := context.Background()
	backend := newTestMySQL(t)
	defer backend.Close()

	now := time.Now()
	backend.now = func() time.Time { return now }
	key := fmt.Sprintf("expiry-%d", now.UnixNano())

	_ = backend.Set(ctx, key, []byte("v"), time.Minute)
	now = now.Add(2 * time.Minute)
	if _, found, _ := backend.Get(ctx, key); found {
		t.Error("expected expired entry to miss")
	}
}

func TestNewMySQL_BadDSN(t *testing.T) {
	if _, err := NewMySQL("not a dsn"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}
