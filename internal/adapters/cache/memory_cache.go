package cache

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/ports"
	"slices"
	"time"

	"github.com/bluele/gcache"
)

// DefaultMemoryEntries bounds the in-process layer.
const DefaultMemoryEntries = 64

// MemoryResponseCache is an in-process LRU in front of another cache.
// Reads fall through to Next on a miss and fill the LRU; writes go to both.
// A nil Next makes it a plain memory cache.
type MemoryResponseCache struct {
	lru  gcache.Cache
	Next ports.ResponseCache
}

var _ ports.ResponseCache = (*MemoryResponseCache)(nil)

func NewMemoryResponseCache(size int, ttl time.Duration, next ports.ResponseCache) *MemoryResponseCache {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &MemoryResponseCache{lru: b.Build(), Next: next}
}

func (c *MemoryResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.lru.Get(key)
	if err == nil {
		return slices.Clone(v.([]byte)), true, nil
	}
	if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, fmt.Errorf("get memory cache: %w", err)
	}

	if c.Next == nil {
		return nil, false, nil
	}

	body, ok, err := c.Next.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.lru.Set(key, slices.Clone(body))
	return body, true, nil
}

func (c *MemoryResponseCache) Put(ctx context.Context, key string, body []byte) error {
	if err := c.lru.Set(key, slices.Clone(body)); err != nil {
		return fmt.Errorf("put memory cache: %w", err)
	}
	if c.Next != nil {
		return c.Next.Put(ctx, key, body)
	}
	return nil
}

// NopResponseCache never stores anything.
type NopResponseCache struct{}

var _ ports.ResponseCache = NopResponseCache{}

func (NopResponseCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NopResponseCache) Put(context.Context, string, []byte) error { return nil }
