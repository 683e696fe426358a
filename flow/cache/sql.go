package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const tableName = "taskflow_cache"

// sqlBackend is the database/sql Backend shared by the SQLite and MySQL backends. Only the
// schema and the upsert statement differ between dialects.
//
// expires_at holds a Unix time in nanoseconds, or 0 for entries that never expire.
type sqlBackend struct {
	db     *sql.DB
	upsert string
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

func (s *sqlBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	var (
		value     []byte
		expiresAt int64
	)
	row := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM "+tableName+" WHERE cache_key = ?", key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if expiresAt > 0 && s.now().UnixNano() >= expiresAt {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *sqlBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *sqlBackend) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+tableName+" WHERE cache_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Purge deletes every expired entry and returns how many were removed.
func (s *sqlBackend) Purge(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+tableName+" WHERE expires_at > 0 AND expires_at <= ?", s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return res.RowsAffected()
}

func (s *sqlBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
