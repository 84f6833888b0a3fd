package infrastructure

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pericarp/es/pkg/application"
)

// GoCacheProvider is the production application.CacheProvider, backed by
// the same in-process TTL cache CachingSnapshotRepository uses. A
// production fx.App supplies this instead of application's dependency-free
// InMemoryCache (which never expires entries).
type GoCacheProvider struct {
	cache *cache.Cache
}

// NewGoCacheProvider wraps a TTL cache cleaned up on the given interval.
func NewGoCacheProvider(ttl, cleanupInterval time.Duration) *GoCacheProvider {
	return &GoCacheProvider{cache: cache.New(ttl, cleanupInterval)}
}

// Get implements application.CacheProvider.
func (p *GoCacheProvider) Get(key string) (any, bool) {
	return p.cache.Get(key)
}

// Set implements application.CacheProvider.
func (p *GoCacheProvider) Set(key string, value any) {
	p.cache.SetDefault(key, value)
}

// Delete implements application.CacheProvider.
func (p *GoCacheProvider) Delete(key string) {
	p.cache.Delete(key)
}

var _ application.CacheProvider = (*GoCacheProvider)(nil)
