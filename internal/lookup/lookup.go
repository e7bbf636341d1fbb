// Package lookup caches executable path resolution.
//
// Direct-spawn invocations resolve the program against PATH on every call;
// the cache keeps resolved paths for a bounded time so hot callers skip
// the filesystem walk. Failed lookups are never cached, so freshly
// installed binaries are picked up immediately.
package lookup

import (
	"os/exec"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration bounds how long a resolved path is trusted.
	DefaultExpiration = 5 * time.Minute

	defaultCleanupInterval = 15 * time.Minute
)

// Cache memoizes exec.LookPath results.
type Cache struct {
	cache *gocache.Cache
}

// New creates a Cache with the given entry TTL. A non-positive TTL uses
// DefaultExpiration.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Cache{cache: gocache.New(ttl, defaultCleanupInterval)}
}

// Resolve returns the executable path for name, consulting the cache
// before PATH.
func (c *Cache) Resolve(name string) (string, error) {
	if v, ok := c.cache.Get(name); ok {
		if path, ok := v.(string); ok {
			return path, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", err
	}
	c.cache.SetDefault(name, path)
	return path, nil
}
