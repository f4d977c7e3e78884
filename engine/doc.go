// Package engine is the execution runtime behind compiled r8econf policies.
//
// A [Policy] is an immutable stack of [Layer] values, each wrapping the next
// with one behavior (timeout, throttle, result cache, retry, circuit breaker,
// fallback, latency sampling or a user supplied [Middleware]). The compiler in
// the parent package builds policies by calling the constructors in this
// package; callers only ever run them through [Policy.Execute] or [Execute].
package engine
