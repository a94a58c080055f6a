package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"strings"
	"time"
)

// SQLite backed response cache. The database should be opened with a
// single connection; see db.OpenSQLite.
type SqliteResponseCache struct {
	DB  *sql.DB
	TTL time.Duration
	now func() time.Time
}

var _ ports.ResponseCache = (*SqliteResponseCache)(nil)

func NewSqliteResponseCache(db *sql.DB, ttl time.Duration) *SqliteResponseCache {
	return &SqliteResponseCache{DB: db, TTL: ttl, now: time.Now}
}

// Fetch the cached body for key.
func (s *SqliteResponseCache) Get(ctx context.Context, key string) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, "cache.sqlite.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("response cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return nil, false, errors.New("get response cache: key must not be empty")
	}

	q := `
	SELECT
		body,
		stored_at
	FROM response_cache
	WHERE cache_key = ?;
	`

	var (
		body     []byte
		storedAt int64
	)
	err = s.DB.QueryRowContext(ctx, q, key).Scan(&body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get response cache: query response_cache table: %w", err)
	}

	if !fresh(time.Unix(0, storedAt), s.TTL, s.now()) {
		return nil, false, nil
	}
	return body, true, nil
}

// Store body under key, replacing any previous entry.
func (s *SqliteResponseCache) Put(ctx context.Context, key string, body []byte) (err error) {
	defer obs.Time(ctx, "cache.sqlite.Put")(&err)

	if s.DB == nil {
		return errors.New("response cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert response cache: key must not be empty")
	}

	q := `
	INSERT OR REPLACE INTO response_cache (
		cache_key,
		body,
		stored_at
	)
	VALUES (?, ?, ?);
	`
	if _, err := s.DB.ExecContext(ctx, q, key, body, s.now().UnixNano()); err != nil {
		return fmt.Errorf("insert response cache key=%q: %w", key, err)
	}

	return nil
}
