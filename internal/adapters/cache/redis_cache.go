package cache

import (
	"context"
	"errors"
	"fmt"
	"gbfs2osm/internal/platform/obs"
	"gbfs2osm/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gbfs2osm:"

// RedisResponseCache shares responses between machines. Expiry is left to
// Redis.
type RedisResponseCache struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

var _ ports.ResponseCache = (*RedisResponseCache)(nil)

// OpenRedis connects using a redis:// or rediss:// URL and checks the
// connection.
func OpenRedis(ctx context.Context, url string, ttl time.Duration) (*RedisResponseCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("open redis cache: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open redis cache: ping: %w", err)
	}

	return NewRedisResponseCache(client, ttl), nil
}

func NewRedisResponseCache(client *redis.Client, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{Client: client, Prefix: defaultRedisPrefix, TTL: ttl}
}

func (c *RedisResponseCache) Get(ctx context.Context, key string) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, "cache.redis.Get")(&err)

	body, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get redis cache: %w", err)
	}
	return body, true, nil
}

func (c *RedisResponseCache) Put(ctx context.Context, key string, body []byte) (err error) {
	defer obs.Time(ctx, "cache.redis.Put")(&err)

	ttl := c.TTL
	if ttl < 0 {
		ttl = 0
	}
	if err := c.Client.Set(ctx, c.Prefix+key, body, ttl).Err(); err != nil {
		return fmt.Errorf("put redis cache: %w", err)
	}
	return nil
}

func (c *RedisResponseCache) Close() error {
	return c.Client.Close()
}
