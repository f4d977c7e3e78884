package engine

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Default metrics window applied by policies compiled with a metrics step.
const (
	DefaultMetricsWindow  = 2 * time.Minute
	DefaultMetricsBuckets = 12
)

type (
	// Sampler records execution durations and outcomes over a rolling
	// window split into buckets. Each bucket keeps at most a fixed number of
	// raw duration samples for percentile estimates; counters are always
	// exact.
	Sampler struct {
		clock  Clock
		hooks  *Hooks
		window *rollingWindow
		mu     sync.Mutex
	}

	// SamplerSnapshot summarises the live part of a sampler's window.
	SamplerSnapshot struct {
		Count    int64         `json:"count"`
		Failures int64         `json:"failures"`
		Mean     time.Duration `json:"mean"`
		Max      time.Duration `json:"max"`
		P95      time.Duration `json:"p95"`
	}
)

// NewSampler creates a sampler covering window, split into buckets buckets,
// each keeping up to capacity raw samples (0 keeps counters only).
func NewSampler(window time.Duration, buckets, capacity int, clock Clock, hooks *Hooks) *Sampler {
	return &Sampler{
		clock:  clockOrReal(clock),
		hooks:  hooks,
		window: newRollingWindow(window, buckets, capacity),
	}
}

// Record adds one observation.
func (s *Sampler) Record(d time.Duration, err error) {
	s.mu.Lock()
	s.window.add(s.clock.Now(), d, err != nil)
	s.mu.Unlock()

	s.hooks.emitSample(d, err)
}

// Snapshot returns the aggregate of every live bucket.
func (s *Sampler) Snapshot() SamplerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		snap    SamplerSnapshot
		total   time.Duration
		samples []time.Duration
	)

	s.window.live(s.clock.Now(), func(b *windowBucket) {
		snap.Count += b.successes + b.failures
		snap.Failures += b.failures
		total += b.total

		if b.max > snap.Max {
			snap.Max = b.max
		}

		samples = append(samples, b.samples...)
	})

	if snap.Count > 0 {
		snap.Mean = total / time.Duration(snap.Count)
	}

	if len(samples) > 0 {
		slices.Sort(samples)
		snap.P95 = samples[(len(samples)*95-1)/100]
	}

	return snap
}

// Middleware returns the layer timing every call through s.
func (s *Sampler) Middleware() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			start := s.clock.Now()
			v, err := next(ctx)
			s.Record(s.clock.Since(start), err)

			return v, err
		}
	}
}
