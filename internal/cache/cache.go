package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rivalscan/rivalscan/config"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

// SearchCache is a redis-backed TTL cache for search provider responses.
// Repeated runs over the same market reuse prior results instead of
// burning provider quota.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// New connects to redis and verifies the connection. Returns (nil, nil)
// when no address is configured: callers treat a nil cache as disabled.
func New(ctx context.Context, cfg config.CacheConfig) (*SearchCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SearchCache{client: client, ttl: ttl, prefix: "rivalscan:"}, nil
}

func (c *SearchCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

func (c *SearchCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

func (c *SearchCache) Close() error {
	return c.client.Close()
}
