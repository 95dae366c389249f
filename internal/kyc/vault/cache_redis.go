package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/pkg/platform/sentinel"
)

// RedisCache stores vault grants in Redis with a TTL matching the grant
// validity, so stale grants age out on their own.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*CachedGrant, error) {
	raw, err := c.client.Get(ctx, "vault:grant:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get vault grant: %w", err)
	}
	var grant CachedGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, fmt.Errorf("decode vault grant: %w", err)
	}
	return &grant, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, grant *CachedGrant, ttl time.Duration) error {
	raw, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("encode vault grant: %w", err)
	}
	if err := c.client.Set(ctx, "vault:grant:"+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set vault grant: %w", err)
	}
	return nil
}
