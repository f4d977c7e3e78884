package engine

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Forever is the break duration used when none is configured.
const Forever = time.Duration(math.MaxInt64)

type (
	circuitBreakerConfig struct {
		trip                tripper
		breakDuration       time.Duration
		halfOpenMaxAttempts int
	}

	// CircuitBreakerOption configures a circuit breaker.
	CircuitBreakerOption func(*circuitBreakerConfig)

	// tripper decides, from the stream of outcomes seen while closed, when
	// the breaker opens.
	tripper interface {
		success(now time.Time)
		failure(now time.Time) bool
		reset()
	}

	// consecutiveTripper opens after a run of handled failures. Failures
	// older than lifetime (when positive) no longer count towards the run.
	consecutiveTripper struct {
		first    time.Time
		mu       sync.Mutex
		allowed  int
		count    int
		lifetime time.Duration
	}

	// ratioTripper opens once the failure ratio over the sampling window
	// reaches threshold with at least minThroughput calls observed.
	ratioTripper struct {
		window        *rollingWindow
		mu            sync.Mutex
		threshold     float64
		minThroughput int64
	}

	// CircuitBreaker fails fast while a dependency is unhealthy.
	//
	// Pattern: Circuit Breaker. Fast-fails calls to an unhealthy downstream
	// and lets a probe through once the break duration has elapsed. State
	// transitions are lock-free via atomic CAS.
	CircuitBreaker struct {
		clock Clock
		hooks *Hooks
		cfg   circuitBreakerConfig

		state             atomic.Uint32 // stateClosed | stateOpen | stateHalfOpen
		openedNano        atomic.Int64
		halfOpenSuccesses atomic.Int64
	}
)

// Circuit breaker states (stored in atomic.Uint32).
const (
	stateClosed   uint32 = 0
	stateOpen     uint32 = 1
	stateHalfOpen uint32 = 2
)

// State names returned by [CircuitBreaker.State].
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// ConsecutiveFailures opens the breaker after n handled failures in a row.
// A positive lifetime forgets a run whose first failure is older than
// lifetime.
func ConsecutiveFailures(n int, lifetime time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.trip = &consecutiveTripper{allowed: max(n, 1), lifetime: lifetime}
	}
}

// FailureRatio opens the breaker when, over the sampling duration, at least
// minThroughput calls were seen and the share of handled failures reached
// threshold (0 < threshold <= 1).
func FailureRatio(threshold float64, sampling time.Duration, minThroughput int) CircuitBreakerOption {
	const samplingBuckets = 10

	return func(cfg *circuitBreakerConfig) {
		cfg.trip = &ratioTripper{
			window:        newRollingWindow(sampling, samplingBuckets, 0),
			threshold:     threshold,
			minThroughput: int64(max(minThroughput, 1)),
		}
	}
}

// BreakDuration sets how long the breaker stays open before letting a probe
// through.
func BreakDuration(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.breakDuration = d
	}
}

// HalfOpenMaxAttempts sets the number of successful probes needed to close
// from half-open.
func HalfOpenMaxAttempts(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.halfOpenMaxAttempts = n
	}
}

// NewCircuitBreaker creates a closed circuit breaker. Without options it
// opens after 5 consecutive failures and stays open for 30s.
func NewCircuitBreaker(clock Clock, hooks *Hooks, opts ...CircuitBreakerOption) *CircuitBreaker {
	cfg := circuitBreakerConfig{
		trip:                &consecutiveTripper{allowed: 5},
		breakDuration:       30 * time.Second,
		halfOpenMaxAttempts: 1,
	}

	for _, o := range opts {
		o(&cfg)
	}

	return &CircuitBreaker{
		clock: clockOrReal(clock),
		hooks: hooks,
		cfg:   cfg,
	}
}

// Allow returns nil when a call may proceed and ErrCircuitOpen while the
// breaker is open and the break duration has not elapsed.
func (cb *CircuitBreaker) Allow() error {
	if cb.state.Load() != stateOpen {
		return nil
	}

	opened := time.Unix(0, cb.openedNano.Load())
	if cb.clock.Since(opened) <= cb.cfg.breakDuration {
		return ErrCircuitOpen
	}

	if cb.state.CompareAndSwap(stateOpen, stateHalfOpen) {
		cb.halfOpenSuccesses.Store(0)
		cb.hooks.emitCircuitHalfOpen()
	}

	return nil
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.state.Load() {
	case stateClosed:
		cb.cfg.trip.success(cb.clock.Now())

	case stateHalfOpen:
		if cb.halfOpenSuccesses.Add(1) < int64(cb.cfg.halfOpenMaxAttempts) {
			return
		}

		if !cb.state.CompareAndSwap(stateHalfOpen, stateClosed) {
			return
		}

		cb.cfg.trip.reset()
		cb.hooks.emitCircuitClose()

	default:
		// stateOpen: nothing to do
	}
}

// RecordFailure records a handled failure.
func (cb *CircuitBreaker) RecordFailure() {
	now := cb.clock.Now()

	switch cb.state.Load() {
	case stateClosed:
		if cb.cfg.trip.failure(now) {
			cb.open(stateClosed, now)
		}

	case stateHalfOpen:
		cb.open(stateHalfOpen, now)

	default:
		// stateOpen: already open
	}
}

func (cb *CircuitBreaker) open(from uint32, now time.Time) {
	if !cb.state.CompareAndSwap(from, stateOpen) {
		return
	}

	cb.openedNano.Store(now.UnixNano())
	cb.halfOpenSuccesses.Store(0)
	cb.cfg.trip.reset()
	cb.hooks.emitCircuitOpen()
}

// State returns [StateClosed], [StateOpen] or [StateHalfOpen].
func (cb *CircuitBreaker) State() string {
	switch cb.state.Load() {
	case stateOpen:
		return StateOpen
	case stateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Middleware returns the layer guarding calls with cb. Only failures matched
// by handles count against the breaker.
func (cb *CircuitBreaker) Middleware(handles PredicateSet) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			if err := cb.Allow(); err != nil {
				return nil, err
			}

			val, err := next(ctx)

			switch {
			case err == nil:
				cb.RecordSuccess()
			case handles.Match(err):
				cb.RecordFailure()
			}

			return val, err
		}
	}
}

// ---------------------------------------------------------------------------
// Trippers
// ---------------------------------------------------------------------------

func (t *consecutiveTripper) success(time.Time) {
	t.mu.Lock()
	t.count = 0
	t.mu.Unlock()
}

func (t *consecutiveTripper) failure(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lifetime > 0 && t.count > 0 && now.Sub(t.first) > t.lifetime {
		t.count = 0
	}

	if t.count == 0 {
		t.first = now
	}

	t.count++

	return t.count >= t.allowed
}

func (t *consecutiveTripper) reset() {
	t.mu.Lock()
	t.count = 0
	t.mu.Unlock()
}

func (t *ratioTripper) success(now time.Time) {
	t.mu.Lock()
	t.window.add(now, 0, false)
	t.mu.Unlock()
}

func (t *ratioTripper) failure(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.window.add(now, 0, true)

	successes, failures := t.window.counts(now)

	throughput := successes + failures
	if throughput < t.minThroughput {
		return false
	}

	return float64(failures)/float64(throughput) >= t.threshold
}

func (t *ratioTripper) reset() {
	t.mu.Lock()
	t.window.reset()
	t.mu.Unlock()
}
