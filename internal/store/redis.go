package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axvier/blog/internal/models"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

const searchGenKey = "posts:search:gen"

// SearchCache is a read-through cache for post search results. Every write
// to posts bumps a generation counter; cached entries are keyed by the
// generation they were computed under, so stale entries are never read and
// simply expire.
type SearchCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSearchCache(rdb *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{rdb: rdb, ttl: ttl}
}

func (c *SearchCache) key(ctx context.Context, q string) (string, error) {
	gen, err := c.rdb.Get(ctx, searchGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("posts:search:%d:%s", gen, strings.ToLower(q)), nil
}

// Get returns the cached result for q, or ErrNotFound on a miss.
func (c *SearchCache) Get(ctx context.Context, q string) (*models.SearchResult, error) {
	key, err := c.key(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search cache key: %w", err)
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("search cache get: %w", err)
	}
	var res models.SearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("search cache decode: %w", err)
	}
	res.Query = q
	return &res, nil
}

// Set stores res under q for the configured TTL.
func (c *SearchCache) Set(ctx context.Context, q string, res *models.SearchResult) error {
	key, err := c.key(ctx, q)
	if err != nil {
		return fmt.Errorf("search cache key: %w", err)
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("search cache encode: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate makes every cached search result unreachable.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, searchGenKey).Err()
}
