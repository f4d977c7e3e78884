package engine

import "errors"

// ErrorPredicate reports whether a layer handles err.
type ErrorPredicate func(err error) bool

// AnyError matches every non-nil error.
func AnyError(err error) bool { return err != nil }

// ErrorIs returns a predicate matching errors for which errors.Is(err,
// target) holds.
func ErrorIs(target error) ErrorPredicate {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// ErrorAs returns a predicate matching errors whose chain contains an E.
func ErrorAs[E error]() ErrorPredicate {
	return func(err error) bool {
		var target E

		return errors.As(err, &target)
	}
}

// PredicateSet is an immutable OR of error predicates. The zero value is
// empty; an empty set matches every error.
type PredicateSet struct {
	preds []ErrorPredicate
}

// Or returns a new set matching everything s matches plus p. s is left
// unchanged.
func (s PredicateSet) Or(p ErrorPredicate) PredicateSet {
	preds := make([]ErrorPredicate, 0, len(s.preds)+1)
	preds = append(preds, s.preds...)
	preds = append(preds, p)

	return PredicateSet{preds: preds}
}

// Len returns the number of predicates in the set.
func (s PredicateSet) Len() int { return len(s.preds) }

// Match reports whether err is handled. nil never matches.
func (s PredicateSet) Match(err error) bool {
	if err == nil {
		return false
	}

	if len(s.preds) == 0 {
		return true
	}

	for _, p := range s.preds {
		if p(err) {
			return true
		}
	}

	return false
}
