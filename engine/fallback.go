package engine

import "context"

// Pattern: Fallback. Last line of defence; a handled failure is replaced by
// a substitute result.

// FallbackValue returns a middleware replacing handled failures with val.
// val may be nil, yielding an empty result.
func FallbackValue(handles PredicateSet, val any, hooks *Hooks) Middleware {
	return Fallback(handles, func(context.Context, error) (any, error) {
		return val, nil
	}, hooks)
}

// Fallback returns a middleware calling provide when the wrapped call fails
// with a handled error. Unhandled errors pass through.
func Fallback(
	handles PredicateSet,
	provide func(ctx context.Context, cause error) (any, error),
	hooks *Hooks,
) Middleware {
	return func(next Func) Func {
		return func(ctx context.Context) (any, error) {
			result, err := next(ctx)
			if err == nil {
				return result, nil
			}

			if !handles.Match(err) {
				return nil, err
			}

			hooks.emitFallbackUsed(err)

			//nolint:wrapcheck // provider's error returned as-is
			return provide(ctx, err)
		}
	}
}
