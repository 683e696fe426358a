package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Backend stored in a single SQLite file, so cached results survive restarts
// of the process.
type SQLite struct {
	sqlBackend
	path string
}

// NewSQLite opens (creating if needed) the cache database at path. Use ":memory:" for a
// throwaway database.
//
//	backend, err := cache.NewSQLite("./taskflow-cache.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// one writer at a time; a single connection also keeps ":memory:" databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			cache_key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create %s table: %w", tableName, err)
	}

	return &SQLite{
		sqlBackend: sqlBackend{
			db: db,
			upsert: `INSERT INTO ` + tableName + ` (cache_key, value, expires_at) VALUES (?, ?, ?)
				ON CONFLICT(cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
			now: time.Now,
		},
		path: path,
	}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }
