package r8econf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/byte4ever/r8econf/engine"
	"github.com/byte4ever/r8econf/otter"
)

// MemoryCacheProvider is the cache provider name selecting the built-in
// in-process cache. It is matched case-insensitively.
const MemoryCacheProvider = "memory"

const defaultMemoryCapacity = 10_000

type (
	// FallbackValueProvider computes a substitute result for a failed call.
	// ctx carries cancellation and the caller's [engine.ContextData].
	FallbackValueProvider interface {
		FallbackValue(ctx context.Context, data engine.ContextData) (any, error)
	}

	// FallbackValueProviderFunc adapts a function to [FallbackValueProvider].
	FallbackValueProviderFunc func(ctx context.Context, data engine.ContextData) (any, error)

	// CustomPolicyFactory builds a user-defined layer from the step's
	// unrecognized attributes.
	CustomPolicyFactory func(attrs Attributes) (engine.Middleware, error)

	// CacheProviderFactory constructs a cache provider with no arguments.
	CacheProviderFactory func() (engine.ResultCache, error)

	// Container is an optional dependency container consulted for cache
	// providers registered as abstractions.
	Container interface {
		Resolve(name string) (any, bool)
	}

	// ResolverOption configures a [TypeResolver].
	ResolverOption func(*TypeResolver)

	fallbackFactory struct {
		withAttrs func(Attributes) (FallbackValueProvider, error)
		zeroArg   func() FallbackValueProvider
	}

	// TypeResolver maps textual type names found in policy definitions to
	// runtime capabilities: error predicates, cache providers, fallback value
	// providers and custom policies. It is safe for concurrent use.
	//
	// Pattern: Registry. Capabilities are registered up front by name
	// instead of being looked up reflectively at compile time.
	TypeResolver struct {
		container      Container
		errors         map[string]engine.ErrorPredicate
		caches         map[string]CacheProviderFactory
		abstractCaches map[string]struct{}
		fallbacks      map[string]fallbackFactory
		customs        map[string]CustomPolicyFactory
		memoryCapacity int
		mu             sync.RWMutex
	}
)

// FallbackValue calls f.
func (f FallbackValueProviderFunc) FallbackValue(ctx context.Context, data engine.ContextData) (any, error) {
	return f(ctx, data)
}

// WithContainer sets the container used for abstract cache providers.
func WithContainer(c Container) ResolverOption {
	return func(r *TypeResolver) {
		r.container = c
	}
}

// WithMemoryCapacity sets the entry capacity of built-in memory caches.
func WithMemoryCapacity(n int) ResolverOption {
	return func(r *TypeResolver) {
		r.memoryCapacity = n
	}
}

// NewTypeResolver creates a resolver preloaded with the built-in error
// names: "error", "Exception" and "System.Exception" match every error;
// "context.DeadlineExceeded", "context.Canceled" and the engine sentinels
// match by [errors.Is].
func NewTypeResolver(opts ...ResolverOption) *TypeResolver {
	r := &TypeResolver{
		errors:         make(map[string]engine.ErrorPredicate),
		caches:         make(map[string]CacheProviderFactory),
		abstractCaches: make(map[string]struct{}),
		fallbacks:      make(map[string]fallbackFactory),
		customs:        make(map[string]CustomPolicyFactory),
		memoryCapacity: defaultMemoryCapacity,
	}

	for _, o := range opts {
		o(r)
	}

	for _, name := range []string{"error", "Exception", "System.Exception"} {
		r.errors[name] = engine.AnyError
	}

	r.errors["context.DeadlineExceeded"] = engine.ErrorIs(context.DeadlineExceeded)
	r.errors["context.Canceled"] = engine.ErrorIs(context.Canceled)
	r.errors["engine.ErrTimeout"] = engine.ErrorIs(engine.ErrTimeout)
	r.errors["engine.ErrCircuitOpen"] = engine.ErrorIs(engine.ErrCircuitOpen)
	r.errors["engine.ErrThrottled"] = engine.ErrorIs(engine.ErrThrottled)
	r.errors["engine.ErrRetriesExhausted"] = engine.ErrorIs(engine.ErrRetriesExhausted)

	return r
}

// RegisterErrorPredicate registers pred under name.
func (r *TypeResolver) RegisterErrorPredicate(name string, pred engine.ErrorPredicate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors[name] = pred
}

// RegisterErrorTarget registers name as matching errors that are target
// according to [errors.Is].
func (r *TypeResolver) RegisterErrorTarget(name string, target error) {
	r.RegisterErrorPredicate(name, engine.ErrorIs(target))
}

// RegisterErrorType registers name as matching errors whose chain contains
// an E, according to [errors.As].
func RegisterErrorType[E error](r *TypeResolver, name string) {
	r.RegisterErrorPredicate(name, engine.ErrorAs[E]())
}

// RegisterCacheProvider registers a cache provider factory under name.
func (r *TypeResolver) RegisterCacheProvider(name string, factory CacheProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.caches[name] = factory
}

// RegisterCacheAbstraction marks name as an abstraction: it is obtained from
// the container when one is configured, and from a registered factory
// otherwise.
func (r *TypeResolver) RegisterCacheAbstraction(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.abstractCaches[name] = struct{}{}
}

// RegisterFallbackProvider registers a provider constructor receiving the
// step's unrecognized attributes. It takes precedence over a zero-argument
// constructor registered under the same name.
func (r *TypeResolver) RegisterFallbackProvider(
	name string,
	ctor func(Attributes) (FallbackValueProvider, error),
) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.fallbacks[name]
	f.withAttrs = ctor
	r.fallbacks[name] = f
}

// RegisterFallbackProviderFunc registers a zero-argument provider
// constructor.
func (r *TypeResolver) RegisterFallbackProviderFunc(name string, ctor func() FallbackValueProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.fallbacks[name]
	f.zeroArg = ctor
	r.fallbacks[name] = f
}

// RegisterCustomPolicy registers a custom policy factory under name.
func (r *TypeResolver) RegisterCustomPolicy(name string, factory CustomPolicyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.customs[name] = factory
}

func unresolved(kind, name string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrTypeResolution, kind, name, cause)
	}

	return fmt.Errorf("%w: %s %q is not registered", ErrTypeResolution, kind, name)
}

// ResolveErrorPredicate returns the predicate registered under name.
func (r *TypeResolver) ResolveErrorPredicate(name string) (engine.ErrorPredicate, error) {
	r.mu.RLock()
	pred, ok := r.errors[name]
	r.mu.RUnlock()

	if !ok {
		return nil, unresolved("error type", name, nil)
	}

	return pred, nil
}

// ResolveCacheProvider returns a cache provider for name. The memory keyword
// yields a fresh built-in cache; abstractions are taken from the container
// first; other names are constructed from their registered factory.
//
//nolint:ireturn // providers are user supplied
func (r *TypeResolver) ResolveCacheProvider(name string) (engine.ResultCache, error) {
	if strings.EqualFold(name, MemoryCacheProvider) {
		return otter.New(r.memoryCapacity)
	}

	r.mu.RLock()
	factory, registered := r.caches[name]
	_, abstract := r.abstractCaches[name]
	container := r.container
	r.mu.RUnlock()

	if abstract && container != nil {
		if v, ok := container.Resolve(name); ok {
			cache, isCache := v.(engine.ResultCache)
			if !isCache {
				return nil, unresolved("cache provider", name, fmt.Errorf("container returned %T", v))
			}

			return cache, nil
		}
	}

	if !registered {
		return nil, unresolved("cache provider", name, nil)
	}

	cache, err := factory()
	if err != nil {
		return nil, unresolved("cache provider", name, err)
	}

	return cache, nil
}

// ResolveFallbackProvider constructs the provider registered under name,
// preferring the constructor that receives attrs.
//
//nolint:ireturn // providers are user supplied
func (r *TypeResolver) ResolveFallbackProvider(name string, attrs Attributes) (FallbackValueProvider, error) {
	r.mu.RLock()
	f, ok := r.fallbacks[name]
	r.mu.RUnlock()

	switch {
	case ok && f.withAttrs != nil:
		p, err := f.withAttrs(attrs)
		if err != nil {
			return nil, unresolved("fallback value provider", name, err)
		}

		return p, nil
	case ok && f.zeroArg != nil:
		return f.zeroArg(), nil
	default:
		return nil, unresolved("fallback value provider", name, nil)
	}
}

// ResolveCustomPolicy constructs the custom layer registered under name.
func (r *TypeResolver) ResolveCustomPolicy(name string, attrs Attributes) (engine.Middleware, error) {
	r.mu.RLock()
	factory, ok := r.customs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, unresolved("custom policy", name, nil)
	}

	mw, err := factory(attrs)
	if err != nil {
		return nil, unresolved("custom policy", name, err)
	}

	if mw == nil {
		return nil, unresolved("custom policy", name, errors.New("factory returned no middleware"))
	}

	return mw, nil
}
