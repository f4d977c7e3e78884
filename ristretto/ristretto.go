// Package ristretto provides an engine.ResultCache backed by the Ristretto
// cache library and registers it as a named cache provider.
package ristretto

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/byte4ever/r8econf"
	"github.com/byte4ever/r8econf/engine"
)

// ProviderName is the cacheProvider value selecting this adapter.
const ProviderName = "ristretto"

// adapter wraps a ristretto.Cache to implement engine.ResultCache.
type adapter struct {
	cache *ristretto.Cache[string, any]
}

// New creates an engine.ResultCache holding at most maxSize entries.
// Ristretto recommends NumCounters = 10 * MaxCost.
//
//nolint:ireturn // callers only see the ResultCache interface
func New(maxSize int) (engine.ResultCache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("r8econf/ristretto: max size must be positive, got %d", maxSize)
	}

	//nolint:mnd // Ristretto recommends 10x max size for counters and 64 buffer items.
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: int64(maxSize) * 10,
		MaxCost:     int64(maxSize),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("r8econf/ristretto: build cache: %w", err)
	}

	return &adapter{cache: cache}, nil
}

// Register makes the adapter available to policy definitions as
// cacheProvider "ristretto". Every caching step gets its own cache.
func Register(r *r8econf.TypeResolver, maxSize int) {
	r.RegisterCacheProvider(ProviderName, func() (engine.ResultCache, error) {
		return New(maxSize)
	})
}

// Get retrieves a cached value by key.
func (a *adapter) Get(key string) (any, bool) {
	return a.cache.Get(key)
}

// Set stores a value with the given TTL (zero keeps it until evicted) and
// waits for the write buffer to drain so that the value is visible to the
// next Get.
func (a *adapter) Set(key string, value any, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	a.cache.SetWithTTL(key, value, 1, ttl)
	a.cache.Wait()
}
