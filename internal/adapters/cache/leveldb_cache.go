package cache

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"os"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBResponseCache stores responses in a local directory. Removing the
// directory forces every query to be fetched again.
type LevelDBResponseCache struct {
	DB  *leveldb.DB
	TTL time.Duration
	now func() time.Time
}

var _ ports.ResponseCache = (*LevelDBResponseCache)(nil)

// OpenLevelDB opens or creates the cache directory.
func OpenLevelDB(dir string, ttl time.Duration) (*LevelDBResponseCache, error) {
	if dir == "" {
		return nil, errors.New("open leveldb cache: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open leveldb cache: create %q: %w", dir, err)
	}

	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb cache %q: %w", dir, err)
	}

	return &LevelDBResponseCache{DB: db, TTL: ttl, now: time.Now}, nil
}

func (c *LevelDBResponseCache) Get(ctx context.Context, key string) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, "cache.leveldb.Get")(&err)

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	raw, err := c.DB.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get leveldb cache: %w", err)
	}

	storedAt, body, err := decodeEntry(raw)
	if err != nil {
		return nil, false, fmt.Errorf("get leveldb cache: %w", err)
	}
	if !fresh(storedAt, c.TTL, c.now()) {
		return nil, false, nil
	}

	return body, true, nil
}

func (c *LevelDBResponseCache) Put(ctx context.Context, key string, body []byte) (err error) {
	defer obs.Time(ctx, "cache.leveldb.Put")(&err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.DB.Put([]byte(key), encodeEntry(c.now(), body), nil); err != nil {
		return fmt.Errorf("put leveldb cache: %w", err)
	}
	return nil
}

func (c *LevelDBResponseCache) Close() error {
	return c.DB.Close()
}
