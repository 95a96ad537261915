package portsweep

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// Cache errors
var (
	ErrCacheInitFailed = errors.New("failed to initialize cache")
)

// ResolverCache caches hostname resolutions for the lifetime of a run so
// that repeated expansions of the same expression do not hit the system
// resolver again.
type ResolverCache struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolverCache creates a resolver cache with the given entry TTL.
func NewResolverCache(ttl time.Duration, logger *zap.Logger) (*ResolverCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheInitFailed, err)
	}

	return &ResolverCache{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// Get returns the cached address for a hostname, or "" on a miss.
func (c *ResolverCache) Get(host string) string {
	value, found := c.cache.Get(host)
	if !found {
		return ""
	}
	ip, ok := value.(string)
	if !ok {
		return ""
	}
	c.logger.Debug("Resolver cache hit", zap.String("host", host), zap.String("ip", ip))
	return ip
}

// Set stores a resolved address for a hostname.
func (c *ResolverCache) Set(host, ip string) {
	c.cache.SetWithTTL(host, ip, 1, c.ttl)
}

// Wait blocks until pending writes are applied. Mostly useful in tests,
// since ristretto applies sets asynchronously.
func (c *ResolverCache) Wait() {
	c.cache.Wait()
}

// Close releases the cache's resources.
func (c *ResolverCache) Close() {
	c.cache.Close()
}
