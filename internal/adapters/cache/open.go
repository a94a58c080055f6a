package cache

import (
	"context"
	"fmt"
	"gbfs2osm/internal/domain"
	"gbfs2osm/internal/platform/db"
	"gbfs2osm/internal/ports"
	"io"
	"path/filepath"
	"time"
)

// Response cache backends.
const (
	BackendLevelDB  = "leveldb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

// Options selects and configures a response cache.
type Options struct {
	Backend string
	// Dir holds the LevelDB directory and the default SQLite file.
	Dir string
	// DSN is a database URL (postgres), redis URL (redis) or file path (sqlite).
	DSN string
	TTL time.Duration
	// MemoryEntries sizes the in-process LRU layer; 0 disables it.
	MemoryEntries int
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// Open builds the configured cache. The returned closer releases the
// underlying store and is never nil.
func Open(ctx context.Context, opts Options) (ports.ResponseCache, io.Closer, error) {
	var (
		store  ports.ResponseCache
		closer io.Closer = nopCloser
	)

	switch opts.Backend {
	case BackendNone:
		return NopResponseCache{}, nopCloser, nil

	case BackendLevelDB, "":
		c, err := OpenLevelDB(opts.Dir, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		store, closer = c, c

	case BackendSQLite:
		path := opts.DSN
		if path == "" {
			path = filepath.Join(opts.Dir, "cache.sqlite")
		}
		sqlDB, err := db.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		if err := InitSchema(ctx, sqlDB, DialectSQLite); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		store, closer = NewSqliteResponseCache(sqlDB, opts.TTL), sqlDB

	case BackendPostgres:
		if opts.DSN == "" {
			return nil, nil, domain.NewInvalidConfigurationError("cache-dsn", "", "postgres cache needs a database URL")
		}
		sqlDB, err := db.OpenPostgres(opts.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, closer = NewSQLResponseCache(sqlDB, opts.TTL), sqlDB

	case BackendRedis:
		if opts.DSN == "" {
			return nil, nil, domain.NewInvalidConfigurationError("cache-dsn", "", "redis cache needs a redis:// URL")
		}
		c, err := OpenRedis(ctx, opts.DSN, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		store, closer = c, c

	default:
		return nil, nil, domain.NewInvalidConfigurationError("cache-backend", opts.Backend,
			fmt.Sprintf("unknown backend; expected one of %s, %s, %s, %s, %s",
				BackendLevelDB, BackendSQLite, BackendPostgres, BackendRedis, BackendNone))
	}

	if opts.MemoryEntries > 0 {
		store = NewMemoryResponseCache(opts.MemoryEntries, opts.TTL, store)
	}

	return store, closer, nil
}
