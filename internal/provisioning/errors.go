package provisioning

import (
	"errors"
	"fmt"
)

// TransitionError is returned when an operation's event is not allowed in
// the current state. The state is left untouched.
type TransitionError struct {
	From   State
	Event  Event
	Reason string
}

// Error implements the error interface
func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not allowed in state %s: %s", e.Event, e.From, e.Reason)
	}
	return fmt.Sprintf("%s not allowed in state %s", e.Event, e.From)
}

// ValidationError is returned for malformed configuration input. Nothing is
// mutated or persisted.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ClaimError wraps a failed remote claim.
type ClaimError struct {
	Err error
}

// Error implements the error interface
func (e *ClaimError) Error() string {
	return fmt.Sprintf("identity claim failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *ClaimError) Unwrap() error {
	return e.Err
}

// IsTransitionError reports whether err is a rejected transition.
func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsClaimError reports whether err is a failed remote claim.
func IsClaimError(err error) bool {
	var e *ClaimError
	return errors.As(err, &e)
}
