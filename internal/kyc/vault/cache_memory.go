package vault

import (
	"context"
	"sync"
	"time"

	"onboard/pkg/platform/sentinel"
)

// MemoryCache is the in-process grant cache used by tests and local
// development. TTL is honoured lazily on read.
type MemoryCache struct {
	mu      sync.Mutex
	grants  map[string]*CachedGrant
	expires map[string]time.Time
	// Clock is overridable for expiry tests; defaults to time.Now.
	Clock func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		grants:  make(map[string]*CachedGrant),
		expires: make(map[string]time.Time),
		Clock:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*CachedGrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	grant, ok := c.grants[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if expiry, ok := c.expires[key]; ok && c.Clock().After(expiry) {
		delete(c.grants, key)
		delete(c.expires, key)
		return nil, sentinel.ErrNotFound
	}
	clone := *grant
	return &clone, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, grant *CachedGrant, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *grant
	c.grants[key] = &clone
	if ttl > 0 {
		c.expires[key] = c.Clock().Add(ttl)
	}
	return nil
}
