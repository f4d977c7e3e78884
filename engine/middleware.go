package engine

import "context"

// Pattern: Decorator. Each layer wraps the next, forming a chain where the
// order of wrapping determines execution semantics.

// Func is the unit of work a policy wraps.
type Func func(ctx context.Context) (any, error)

// Middleware wraps a Func with additional behavior.
type Middleware func(next Func) Func

// Chain composes middlewares into one. The first middleware is the
// outermost wrapper: Chain(a, b, c) produces a(b(c(next))).
// Chain() with zero middlewares is the identity.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Func) Func {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}
