package engine

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Throttle caps concurrent executions, optionally queuing a bounded number
// of callers while every slot is taken.
//
// Pattern: Bulkhead. A weighted semaphore bounds parallelism; an atomic
// counter bounds the waiting queue.
type Throttle struct {
	sem       *semaphore.Weighted
	hooks     *Hooks
	maxActive int64
	maxQueued int64
	active    atomic.Int64
	queued    atomic.Int64
}

// NewThrottle creates a throttle admitting maxParallel concurrent calls and
// queuing at most maxQueued more. maxQueued <= 0 disables queuing.
func NewThrottle(maxParallel, maxQueued int, hooks *Hooks) *Throttle {
	if maxParallel < 1 {
		maxParallel = 1
	}

	if maxQueued < 0 {
		maxQueued = 0
	}

	return &Throttle{
		sem:       semaphore.NewWeighted(int64(maxParallel)),
		hooks:     hooks,
		maxActive: int64(maxParallel),
		maxQueued: int64(maxQueued),
	}
}

// Acquire takes a slot, waiting in the queue when one is free. It returns
// ErrThrottled when both slots and queue are exhausted, or the context error
// when ctx ends while queued.
func (t *Throttle) Acquire(ctx context.Context) error {
	if t.sem.TryAcquire(1) {
		t.active.Add(1)
		return nil
	}

	if t.queued.Add(1) > t.maxQueued {
		t.queued.Add(-1)
		t.hooks.emitThrottled()

		return ErrThrottled
	}
	defer t.queued.Add(-1)

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err //nolint:wrapcheck // preserving context error identity
	}

	t.active.Add(1)

	return nil
}

// Release frees a slot taken by Acquire.
func (t *Throttle) Release() {
	t.active.Add(-1)
	t.sem.Release(1)
}

// Full reports whether every slot is in use.
func (t *Throttle) Full() bool {
	return t.active.Load() >= t.maxActive
}

// Queued returns the number of callers currently waiting.
func (t *Throttle) Queued() int {
	return int(t.queued.Load())
}

// Middleware returns the layer guarding calls with t.
func (t *Throttle) Middleware() Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			if err := t.Acquire(ctx); err != nil {
				return nil, err
			}
			defer t.Release()

			return next(ctx)
		}
	}
}
