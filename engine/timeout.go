package engine

import (
	"context"
	"errors"
	"time"
)

// Pattern: Timeout. Runs the call under a derived deadline and reports
// ErrTimeout when that deadline, not the parent context, expired first.

// Timeout returns a middleware that cancels calls running longer than d.
func Timeout(d time.Duration, hooks *Hooks) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			return doTimeout(ctx, d, next, hooks)
		}
	}
}

func doTimeout(ctx context.Context, d time.Duration, fn Func, hooks *Hooks) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // preserving context error identity
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val any
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := fn(timeoutCtx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		// fn may observe the expired deadline and return before Done is
		// selected; that is still our timeout.
		if r.err != nil && ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			hooks.emitTimeout()
			return nil, ErrTimeout
		}

		return r.val, r.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		hooks.emitTimeout()

		return nil, ErrTimeout
	}
}
