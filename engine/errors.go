package engine

import "errors"

type (
	// permanentError marks a wrapped error as non-retriable.
	permanentError struct {
		err error
	}

	// engineError is the concrete type backing the sentinel errors below.
	engineError string
)

// Sentinel errors produced by the layers themselves, as opposed to errors
// returned by the wrapped function.
var (
	// ErrCircuitOpen is returned when a circuit breaker rejects a call.
	ErrCircuitOpen error = engineError("circuit breaker is open")
	// ErrThrottled is returned when a throttle has no free slot and its queue
	// is full.
	ErrThrottled error = engineError("throttled")
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout error = engineError("timeout")
	// ErrRetriesExhausted wraps the last error once every retry was used.
	ErrRetriesExhausted error = engineError("retries exhausted")
	// ErrResultType is returned by [Execute] when the chain produced a value
	// that is not assignable to the requested type.
	ErrResultType error = engineError("unexpected result type")
)

func (e engineError) Error() string { return string(e) }

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that retry layers stop immediately even when the
// error matches their predicate set. Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var pe *permanentError

	return errors.As(err, &pe)
}
