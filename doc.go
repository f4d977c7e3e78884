// Package r8econf compiles declarative fault-tolerance policies into
// executable chains.
//
// A policy definition is a named, ordered list of steps read from a
// configuration tree rooted at the "polly" key. Each step has a type tag
// (handle, timeout, throttle, caching, metrics, thenhandle, fallback, retry,
// circuitbreaker, latency or custom) and string attributes. The [Compiler]
// folds primary steps first and secondary steps second into an
// [engine.Policy]; the [Registry] compiles each definition once and hands
// out the cached result for the process lifetime.
package r8econf
