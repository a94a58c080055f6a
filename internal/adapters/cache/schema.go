package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQL dialects supported by the response cache schema.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Initialize the response cache schema.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	blob := "BLOB"
	switch dialect {
	case DialectPostgres:
		blob = "BYTEA"
	case DialectSQLite:
	default:
		return fmt.Errorf("init schema: unknown dialect %q", dialect)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createResponseCacheQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS response_cache (
		cache_key TEXT PRIMARY KEY,
		body %s NOT NULL,
		stored_at BIGINT NOT NULL
	);
	`, blob)

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_response_cache_stored_at
	ON response_cache(stored_at);
	`

	statements := []string{
		createResponseCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Purge deletes entries stored before cutoff and returns how many were removed.
func Purge(ctx context.Context, db *sql.DB, dialect Dialect, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("purge cache: DB is nil")
	}

	q := `DELETE FROM response_cache WHERE stored_at < ?;`
	if dialect == DialectPostgres {
		q = `DELETE FROM response_cache WHERE stored_at < $1;`
	}

	res, err := db.ExecContext(ctx, q, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge cache: rows affected: %w", err)
	}
	return n, nil
}
