package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL is a Backend stored in a MySQL or MariaDB table, shareable by several processes.
type MySQL struct {
	sqlBackend
}

// NewMySQL connects to the database named by dsn and creates the cache table if needed.
//
//	user:password@tcp(localhost:3306)/taskflow
//
// Keep credentials out of source code; read the DSN from the environment or config.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			cache_key VARCHAR(255) NOT NULL PRIMARY KEY,
			value LONGBLOB NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_expires_at (expires_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create %s table: %w", tableName, err)
	}

	return &MySQL{
		sqlBackend: sqlBackend{
			db: db,
			upsert: `INSERT INTO ` + tableName + ` (cache_key, value, expires_at) VALUES (?, ?, ?)
				ON DUPLICATE KEY UPDATE value = VALUES(value), expires_at = VALUES(expires_at)`,
			now: time.Now,
		},
	}, nil
}
