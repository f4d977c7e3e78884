package engine

import (
	"context"
	"fmt"
)

// Layer kinds reported by [Policy.Kinds].
const (
	KindTimeout        = "timeout"
	KindThrottle       = "throttle"
	KindCaching        = "caching"
	KindRetry          = "retry"
	KindCircuitBreaker = "circuitbreaker"
	KindFallback       = "fallback"
	KindLatency        = "latency"
	KindCustom         = "custom"
	KindMetrics        = "metrics"
)

// Layer is one wrapping step of a policy. The stateful component, if any, is
// kept so the policy can report health and expose it to callers.
type Layer struct {
	MW       Middleware
	Breaker  *CircuitBreaker
	Throttle *Throttle
	Sampler  *Sampler
	Kind     string
}

// Policy is a compiled, immutable chain of layers tagged with a key.
//
// Pattern: Decorator. Layers are applied outermost-first around the unit of
// work; With* methods return modified copies and never touch the receiver.
type Policy struct {
	chain   Middleware
	metrics *Sampler
	key     string
	layers  []Layer // outermost first
}

// Compose builds a policy from layers given in wrapping order: the first
// layer wraps the unit of work directly, each following layer wraps the
// previous ones.
func Compose(layers ...Layer) *Policy {
	outer := make([]Layer, len(layers))
	for i, l := range layers {
		outer[len(layers)-1-i] = l
	}

	return newPolicy("", outer, nil)
}

func newPolicy(key string, layers []Layer, metrics *Sampler) *Policy {
	mws := make([]Middleware, 0, len(layers))
	for _, l := range layers {
		mws = append(mws, l.MW)
	}

	return &Policy{
		chain:   Chain(mws...),
		metrics: metrics,
		key:     key,
		layers:  layers,
	}
}

// WithKey returns a copy of p tagged with key.
func (p *Policy) WithKey(key string) *Policy {
	return newPolicy(key, p.layers, p.metrics)
}

// WithMetrics returns a copy of p wrapped once more by s.
func (p *Policy) WithMetrics(s *Sampler) *Policy {
	layers := make([]Layer, 0, len(p.layers)+1)
	layers = append(layers, Layer{Kind: KindMetrics, MW: s.Middleware(), Sampler: s})
	layers = append(layers, p.layers...)

	return newPolicy(p.key, layers, s)
}

// Key returns the policy key, the name of the definition it was compiled
// from.
func (p *Policy) Key() string { return p.key }

// Name returns the policy key.
func (p *Policy) Name() string { return p.key }

// MetricsEnabled reports whether the policy samples every execution.
func (p *Policy) MetricsEnabled() bool { return p.metrics != nil }

// Metrics returns the metrics sampler, or nil when metrics are disabled.
func (p *Policy) Metrics() *Sampler { return p.metrics }

// Kinds returns the layer kinds, outermost first.
func (p *Policy) Kinds() []string {
	kinds := make([]string, 0, len(p.layers))
	for _, l := range p.layers {
		kinds = append(kinds, l.Kind)
	}

	return kinds
}

// Layers returns a copy of the layers, outermost first.
func (p *Policy) Layers() []Layer {
	out := make([]Layer, len(p.layers))
	copy(out, p.layers)

	return out
}

// CircuitBreaker returns the outermost circuit breaker, or nil.
func (p *Policy) CircuitBreaker() *CircuitBreaker {
	for _, l := range p.layers {
		if l.Breaker != nil {
			return l.Breaker
		}
	}

	return nil
}

// Execute runs fn through every layer.
func (p *Policy) Execute(ctx context.Context, fn Func) (any, error) {
	return p.chain(fn)(ctx)
}

// Execute runs fn through p and converts the result back to T. A nil result
// (for instance from a null fallback) yields the zero T. A result of another
// type, which a literal fallback can produce, fails with ErrResultType.
//
//nolint:ireturn // generic type parameter T, not an interface
func Execute[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := p.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}

	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrResultType, v, zero)
	}

	return typed, nil
}
