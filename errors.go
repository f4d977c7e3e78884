package r8econf

import (
	"errors"
	"fmt"
)

type (
	// compileError is the concrete type backing the sentinel error kinds.
	compileError string

	// ArgumentError reports a missing required argument of a registry call.
	ArgumentError struct {
		Param string
	}

	// StepError describes why one step of a policy definition could not be
	// compiled. It unwraps to one of the sentinel kinds (ErrMissingAttribute,
	// ErrTypeResolution, ErrSequence, ErrUnknownStepType) and, when present,
	// the underlying cause.
	StepError struct {
		Kind      error
		Cause     error
		Policy    string
		Step      string
		Attribute string
		Detail    string
	}
)

// Error kinds. Use [errors.Is] against these to classify a failure.
var (
	// ErrArgument is the kind of every [ArgumentError].
	ErrArgument error = compileError("argument required")
	// ErrTypeResolution is returned when a type name cannot be located or
	// constructed.
	ErrTypeResolution error = compileError("type resolution failed")
	// ErrMissingAttribute is returned when a required attribute is absent,
	// empty or unparsable.
	ErrMissingAttribute error = compileError("missing or invalid attribute")
	// ErrSequence is returned when a secondary step precedes every primary
	// step.
	ErrSequence error = compileError("invalid step sequence")
	// ErrUnknownStepType is returned for an unrecognized step type tag.
	ErrUnknownStepType error = compileError("unknown step type")
	// ErrPolicyNotFound is returned when no definition matches a name.
	ErrPolicyNotFound error = compileError("policy not found")
)

// Argument errors returned by [Registry.Resolve].
var (
	ErrNameRequired          = &ArgumentError{Param: "name"}
	ErrConfigurationRequired = &ArgumentError{Param: "configuration"}
)

// ErrNoPrimaryStep is returned for a definition without any primary step.
var ErrNoPrimaryStep = fmt.Errorf("%w: policy has no primary step", ErrSequence)

func (e compileError) Error() string { return string(e) }

func (e *ArgumentError) Error() string {
	return "r8econf: " + e.Param + " is required"
}

// Is makes every ArgumentError match ErrArgument.
func (e *ArgumentError) Is(target error) bool {
	return target == ErrArgument //nolint:errorlint // sentinel identity
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("r8econf: policy %q step %q: %v", e.Policy, e.Step, e.Kind)
	if e.Attribute != "" {
		msg += " (" + e.Attribute + ")"
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the cause to [errors.Is] and [errors.As].
func (e *StepError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Cause}
}

func missingAttribute(policy, step, attribute, detail string) error {
	return &StepError{
		Kind:      ErrMissingAttribute,
		Policy:    policy,
		Step:      step,
		Attribute: attribute,
		Detail:    detail,
	}
}

// IsStepError reports whether err carries a [StepError] and returns it.
func IsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}

	return nil, false
}
