package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheVersion is bumped whenever the cached read model changes shape so old
// entries are ignored instead of decoded into the wrong fields.
const cacheVersion = "v1"

// Cache stores catalog read models as JSON in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// GetJSON unmarshals a cached JSON payload into dst and reports whether the
// key existed. Entries that no longer decode are dropped and count as misses.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		_ = c.client.Del(ctx, key).Err()
		return false, fmt.Errorf("catalog cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete drops the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func productKey(id string) string   { return "catalog:" + cacheVersion + ":product:" + id }
func compositeKey(id string) string { return "catalog:" + cacheVersion + ":composite:" + id }

var (
	productListKey   = "catalog:" + cacheVersion + ":products"
	compositeListKey = "catalog:" + cacheVersion + ":composites"
)
