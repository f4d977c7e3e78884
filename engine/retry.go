package engine

import (
	"context"
	"fmt"
)

// RetryForever is the retry count meaning "no upper bound".
const RetryForever = -1

// Pattern: Retry. Re-invokes the wrapped call while it fails with a handled
// error. Attempts follow each other immediately; a Permanent error or a done
// context stops the loop.

// Retry returns a middleware that retries handled failures up to count times
// after the first attempt, or without bound when count is [RetryForever].
// Once every retry is used the last error is wrapped with
// ErrRetriesExhausted.
func Retry(handles PredicateSet, count int, hooks *Hooks) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			return doRetry(ctx, handles, count, next, hooks)
		}
	}
}

func doRetry(
	ctx context.Context,
	handles PredicateSet,
	count int,
	fn Func,
	hooks *Hooks,
) (any, error) {
	forever := count < 0

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if IsPermanent(err) || !handles.Match(err) {
			return nil, err
		}

		if !forever && attempt >= count {
			return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr //nolint:wrapcheck // preserving context error identity
		}

		hooks.emitRetry(attempt+1, err)
	}
}
