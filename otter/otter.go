// Package otter provides an engine.ResultCache backed by the Otter cache
// library. It is the storage behind the built-in "memory" cache provider.
package otter

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/byte4ever/r8econf/engine"
)

// noExpiry stands in for "never expires"; Otter's variable TTL needs a
// positive duration.
const noExpiry = 100 * 365 * 24 * time.Hour

// adapter wraps an otter.CacheWithVariableTTL to implement
// engine.ResultCache.
type adapter struct {
	cache otter.CacheWithVariableTTL[string, any]
}

// New creates an engine.ResultCache holding at most capacity entries.
//
//nolint:ireturn // callers only see the ResultCache interface
func New(capacity int) (engine.ResultCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("r8econf/otter: capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, any](capacity).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, fmt.Errorf("r8econf/otter: build cache: %w", err)
	}

	return &adapter{cache: cache}, nil
}

// MustNew is like New but panics when the cache cannot be built.
//
//nolint:ireturn // callers only see the ResultCache interface
func MustNew(capacity int) engine.ResultCache {
	c, err := New(capacity)
	if err != nil {
		panic(err)
	}

	return c
}

// Get retrieves a cached value by key.
func (a *adapter) Get(key string) (any, bool) {
	return a.cache.Get(key)
}

// Set stores a value; a non-positive ttl keeps it until evicted.
func (a *adapter) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = noExpiry
	}

	a.cache.Set(key, value, ttl)
}
