package engine

import (
	"context"
	"time"
)

// ResultCache stores execution results by operation key. Implementations
// must be safe for concurrent use. A ttl of zero means the entry does not
// expire.
type ResultCache interface {
	// Get returns the cached value for key and whether it was found.
	Get(key string) (any, bool)
	// Set stores value under key.
	Set(key string, value any, ttl time.Duration)
}

// Caching returns a middleware serving results from cache. Calls run without
// an operation key (see [WithOperationKey]) bypass the cache entirely. Only
// successful results are stored.
func Caching(cache ResultCache, ttl time.Duration, hooks *Hooks) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			key, ok := OperationKey(ctx)
			if !ok {
				return next(ctx)
			}

			if v, hit := cache.Get(key); hit {
				hooks.emitCacheHit(key)
				return v, nil
			}

			hooks.emitCacheMiss(key)

			v, err := next(ctx)
			if err != nil {
				return nil, err
			}

			cache.Set(key, v, ttl)

			return v, nil
		}
	}
}
