package r8econf

import (
	"context"
	"fmt"

	"github.com/byte4ever/r8econf/engine"
)

type (
	// CompilerOption configures a [Compiler].
	CompilerOption func(*Compiler)

	// Compiler folds policy definitions into engine policies.
	//
	// Compilation happens in two passes over one typed step list: every
	// primary step (handle, timeout, throttle, caching, metrics) folds
	// before any secondary step, whatever their declared order. Each fold
	// produces a new chain value; the previous one is never mutated.
	Compiler struct {
		resolver *TypeResolver
		clock    engine.Clock
		hooks    *engine.Hooks
	}

	// chain is the fold accumulator. A zero chain is empty.
	chain struct {
		handles engine.PredicateSet
		layers  []engine.Layer // innermost first
		opened  bool
		metrics bool
	}
)

// WithCompilerClock sets the clock used by circuit breakers and samplers.
func WithCompilerClock(c engine.Clock) CompilerOption {
	return func(cp *Compiler) {
		cp.clock = c
	}
}

// WithCompilerHooks sets the lifecycle hooks shared by every compiled layer.
func WithCompilerHooks(h *engine.Hooks) CompilerOption {
	return func(cp *Compiler) {
		cp.hooks = h
	}
}

// NewCompiler creates a compiler resolving type names with resolver. A nil
// resolver means [NewTypeResolver] with no options.
func NewCompiler(resolver *TypeResolver, opts ...CompilerOption) *Compiler {
	if resolver == nil {
		resolver = NewTypeResolver()
	}

	c := &Compiler{resolver: resolver, clock: engine.RealClock{}}
	for _, o := range opts {
		o(c)
	}

	return c
}

// Resolver returns the compiler's type resolver.
func (c *Compiler) Resolver() *TypeResolver { return c.resolver }

// Compile validates def and folds it into a policy tagged with def.Name.
// The first invalid step aborts compilation.
func (c *Compiler) Compile(def PolicyDefinition) (*engine.Policy, error) {
	steps, err := classify(def)
	if err != nil {
		return nil, err
	}

	primary, secondary := orderSteps(steps)

	var ch chain

	for _, s := range primary {
		if ch, err = c.fold(def.Name, ch, s); err != nil {
			return nil, err
		}
	}

	for _, s := range secondary {
		if !ch.opened {
			return nil, &StepError{
				Kind:   ErrSequence,
				Policy: def.Name,
				Step:   s.key,
				Detail: s.step.Kind().String() + " needs a preceding primary step",
			}
		}

		if ch, err = c.fold(def.Name, ch, s); err != nil {
			return nil, err
		}
	}

	if !ch.opened {
		return nil, fmt.Errorf("r8econf: policy %q: %w", def.Name, ErrNoPrimaryStep)
	}

	policy := engine.Compose(ch.layers...).WithKey(def.Name)
	if ch.metrics {
		policy = policy.WithMetrics(engine.NewSampler(
			engine.DefaultMetricsWindow,
			engine.DefaultMetricsBuckets,
			0,
			c.clock,
			c.hooks,
		))
	}

	return policy, nil
}

// wrap returns a copy of ch wrapped by one more layer.
func (ch chain) wrap(layer engine.Layer) chain {
	layers := make([]engine.Layer, 0, len(ch.layers)+1)
	layers = append(layers, ch.layers...)
	layers = append(layers, layer)

	ch.layers = layers
	ch.opened = true

	return ch
}

func (c *Compiler) fold(policy string, ch chain, s classifiedStep) (chain, error) {
	switch st := s.step.(type) {
	case HandleStep:
		return c.handle(policy, s.key, ch, st.ErrorType)

	case ThenHandleStep:
		return c.handle(policy, s.key, ch, st.ErrorType)

	case TimeoutStep:
		return ch.wrap(engine.Layer{
			Kind: engine.KindTimeout,
			MW:   engine.Timeout(st.Timeout, c.hooks),
		}), nil

	case ThrottleStep:
		t := engine.NewThrottle(st.MaxParallelization, st.MaxQueuedActions, c.hooks)

		return ch.wrap(engine.Layer{
			Kind:     engine.KindThrottle,
			MW:       t.Middleware(),
			Throttle: t,
		}), nil

	case CachingStep:
		cache, err := c.resolver.ResolveCacheProvider(st.Provider)
		if err != nil {
			return ch, resolutionError(policy, s.key, AttrCacheProvider, err)
		}

		return ch.wrap(engine.Layer{
			Kind: engine.KindCaching,
			MW:   engine.Caching(cache, 0, c.hooks),
		}), nil

	case MetricsStep:
		ch.metrics = true
		return ch, nil

	case FallbackStep:
		mw, err := c.fallback(policy, s.key, ch.handles, st)
		if err != nil {
			return ch, err
		}

		return ch.wrap(engine.Layer{Kind: engine.KindFallback, MW: mw}), nil

	case RetryStep:
		count := st.Count
		if st.Forever {
			count = engine.RetryForever
		}

		return ch.wrap(engine.Layer{
			Kind: engine.KindRetry,
			MW:   engine.Retry(ch.handles, count, c.hooks),
		}), nil

	case CircuitBreakerStep:
		cb := c.circuitBreaker(st)

		return ch.wrap(engine.Layer{
			Kind:    engine.KindCircuitBreaker,
			MW:      cb.Middleware(ch.handles),
			Breaker: cb,
		}), nil

	case LatencyStep:
		sampler := engine.NewSampler(st.Window, st.Buckets, st.BucketDataLength, c.clock, c.hooks)

		return ch.wrap(engine.Layer{
			Kind:    engine.KindLatency,
			MW:      sampler.Middleware(),
			Sampler: sampler,
		}), nil

	case CustomStep:
		mw, err := c.resolver.ResolveCustomPolicy(st.PolicyType, st.Attributes)
		if err != nil {
			return ch, resolutionError(policy, s.key, AttrPolicyType, err)
		}

		return ch.wrap(engine.Layer{Kind: engine.KindCustom, MW: mw}), nil

	default:
		return ch, &StepError{Kind: ErrUnknownStepType, Policy: policy, Step: s.key}
	}
}

// handle widens the handled error set. Handle steps open the chain; then
// handle steps only ever run once it is open.
func (c *Compiler) handle(policy, key string, ch chain, errorType string) (chain, error) {
	pred, err := c.resolver.ResolveErrorPredicate(errorType)
	if err != nil {
		return ch, resolutionError(policy, key, AttrExceptionType, err)
	}

	ch.handles = ch.handles.Or(pred)
	ch.opened = true

	return ch, nil
}

func (c *Compiler) fallback(
	policy, key string,
	handles engine.PredicateSet,
	st FallbackStep,
) (engine.Middleware, error) {
	if st.ProviderType == "" {
		return engine.FallbackValue(handles, st.Value, c.hooks), nil
	}

	provider, err := c.resolver.ResolveFallbackProvider(st.ProviderType, st.Attributes)
	if err != nil {
		return nil, resolutionError(policy, key, AttrValueProviderType, err)
	}

	return engine.Fallback(handles, func(ctx context.Context, _ error) (any, error) {
		return provider.FallbackValue(ctx, engine.DataFrom(ctx))
	}, c.hooks), nil
}

func (c *Compiler) circuitBreaker(st CircuitBreakerStep) *engine.CircuitBreaker {
	trip := engine.ConsecutiveFailures(st.ExceptionsAllowed, st.ExceptionCountLifetime)
	if st.Advanced {
		trip = engine.FailureRatio(st.FailureThreshold, st.SamplingDuration, st.MinimumThroughput)
	}

	return engine.NewCircuitBreaker(c.clock, c.hooks, trip, engine.BreakDuration(st.BreakDuration))
}

func resolutionError(policy, key, attr string, cause error) error {
	return &StepError{
		Kind:      ErrTypeResolution,
		Policy:    policy,
		Step:      key,
		Attribute: attr,
		Cause:     cause,
	}
}
