package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// stubClock: controllable clock for deterministic tests
// ---------------------------------------------------------------------------

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStubClock() *stubClock {
	return &stubClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *stubClock) Since(t time.Time) time.Duration { return c.Now().Sub(t) }

func (c *stubClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errDown = errors.New("down")

// ---------------------------------------------------------------------------
// Default config values
// ---------------------------------------------------------------------------

func TestCircuitBreakerDefaultConfig(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil)

	// Default threshold is 5: four failures should keep it closed.
	for range 4 {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after 4 failures = %v, want nil (threshold is 5)", err)
	}

	cb.RecordFailure()
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() after 5 failures = %v, want ErrCircuitOpen", err)
	}

	// Default break duration is 30s.
	clk.advance(30 * time.Second)
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() at 30s = %v, want ErrCircuitOpen", err)
	}

	clk.advance(time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after 30s = %v, want nil", err)
	}
}

// ---------------------------------------------------------------------------
// Consecutive failures
// ---------------------------------------------------------------------------

func TestCircuitBreakerSuccessResetsRun(t *testing.T) {
	cb := NewCircuitBreaker(newStubClock(), nil, ConsecutiveFailures(2, 0))

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q, want %q", got, StateClosed)
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %q, want %q", got, StateOpen)
	}
}

func TestCircuitBreakerFailureLifetimeForgetsOldRun(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil, ConsecutiveFailures(2, 10*time.Second))

	cb.RecordFailure()
	clk.advance(11 * time.Second)
	cb.RecordFailure()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q, want %q (first failure expired)", got, StateClosed)
	}

	clk.advance(time.Second)
	cb.RecordFailure()

	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %q, want %q", got, StateOpen)
	}
}

func TestCircuitBreakerForeverNeverRecovers(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil, ConsecutiveFailures(1, 0), BreakDuration(Forever))

	cb.RecordFailure()
	clk.advance(24 * 365 * time.Hour)

	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}
}

// ---------------------------------------------------------------------------
// Failure ratio
// ---------------------------------------------------------------------------

func TestCircuitBreakerRatioNeedsMinimumThroughput(t *testing.T) {
	cb := NewCircuitBreaker(newStubClock(), nil, FailureRatio(0.5, time.Minute, 4))

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q after 3 calls, want %q (throughput 4)", got, StateClosed)
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %q, want %q", got, StateOpen)
	}
}

func TestCircuitBreakerRatioBelowThreshold(t *testing.T) {
	cb := NewCircuitBreaker(newStubClock(), nil, FailureRatio(0.5, time.Minute, 1))

	for range 3 {
		cb.RecordSuccess()
	}

	cb.RecordFailure() // 1/4

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q, want %q", got, StateClosed)
	}

	cb.RecordFailure() // 2/5
	cb.RecordFailure() // 3/6 reaches 0.5

	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %q, want %q", got, StateOpen)
	}
}

func TestCircuitBreakerRatioWindowExpires(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil, FailureRatio(0.5, 10*time.Second, 2))

	cb.RecordFailure()
	clk.advance(11 * time.Second)
	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordFailure() // 1/3 in window

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q, want %q", got, StateClosed)
	}
}

// ---------------------------------------------------------------------------
// Half-open
// ---------------------------------------------------------------------------

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil, ConsecutiveFailures(1, 0), BreakDuration(time.Second))

	cb.RecordFailure()
	clk.advance(2 * time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %q, want %q", got, StateHalfOpen)
	}

	cb.RecordFailure()
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State() = %q, want %q", got, StateOpen)
	}
}

func TestCircuitBreakerHalfOpenMaxAttempts(t *testing.T) {
	clk := newStubClock()
	cb := NewCircuitBreaker(clk, nil,
		ConsecutiveFailures(1, 0),
		BreakDuration(time.Second),
		HalfOpenMaxAttempts(2),
	)

	cb.RecordFailure()
	clk.advance(2 * time.Second)
	_ = cb.Allow()

	cb.RecordSuccess()
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() after 1 probe = %q, want %q", got, StateHalfOpen)
	}

	cb.RecordSuccess()
	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() after 2 probes = %q, want %q", got, StateClosed)
	}
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

func TestCircuitBreakerHooks(t *testing.T) {
	clk := newStubClock()

	var opened, halfOpened, closed atomic.Int32

	hooks := &Hooks{
		OnCircuitOpen:     func() { opened.Add(1) },
		OnCircuitHalfOpen: func() { halfOpened.Add(1) },
		OnCircuitClose:    func() { closed.Add(1) },
	}

	cb := NewCircuitBreaker(clk, hooks, ConsecutiveFailures(1, 0), BreakDuration(time.Second))

	cb.RecordFailure()
	clk.advance(2 * time.Second)
	_ = cb.Allow()
	cb.RecordSuccess()

	if opened.Load() != 1 || halfOpened.Load() != 1 || closed.Load() != 1 {
		t.Fatalf("hooks open=%d halfOpen=%d close=%d, want 1 each",
			opened.Load(), halfOpened.Load(), closed.Load())
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestCircuitBreakerMiddlewareCountsOnlyHandledErrors(t *testing.T) {
	cb := NewCircuitBreaker(newStubClock(), nil, ConsecutiveFailures(1, 0))
	handles := PredicateSet{}.Or(ErrorIs(errDown))

	fn := cb.Middleware(handles)(func(context.Context) (any, error) {
		return nil, errors.New("unrelated")
	})

	for range 3 {
		_, _ = fn(context.Background())
	}

	if got := cb.State(); got != StateClosed {
		t.Fatalf("State() = %q, want %q", got, StateClosed)
	}

	fn = cb.Middleware(handles)(func(context.Context) (any, error) {
		return nil, errDown
	})

	_, _ = fn(context.Background())

	if _, err := fn(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("call on open breaker = %v, want ErrCircuitOpen", err)
	}
}
