// Package adapter defines the contract protocol adapters (database
// drivers, HTTP clients, RPC stubs — all out of this core's scope) use to
// tell a breaker which errors should count against it, and the error type
// a caller sees when a call is short-circuited.
package adapter

import (
	"context"
	"errors"
)

// MarksCircuits classifies whether an error returned by a protected call
// should count toward a breaker's failure tracking.
type MarksCircuits func(error) bool

// DefaultMarksCircuits counts every non-nil error except context
// cancellation — a caller giving up on its own deadline is not the
// resource's fault and should not push a breaker toward tripping.
func DefaultMarksCircuits(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// AdapterError wraps the reason a call was short-circuited (the breaker's
// ErrOpenCircuit/adaptive.ErrRejected, or the bulkhead's ErrBusy) together
// with the last classified failure that caused it, so a caller's
// errors.Is/errors.As can recover both.
type AdapterError struct {
	// Reason is the fail-fast sentinel (ErrOpenCircuit, ErrRejected, or
	// ErrBusy).
	Reason error

	// Cause is the last error that was classified as marking the circuit,
	// if the producer supplied one. resourcecore.Resource does not track
	// failures across calls and always leaves Cause nil.
	Cause error
}

func (e *AdapterError) Error() string {
	if e.Cause == nil {
		return e.Reason.Error()
	}
	return e.Reason.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes both the fail-fast reason and the underlying cause to
// errors.Is/errors.As via Go's multi-unwrap support.
func (e *AdapterError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

// Wrap builds an AdapterError from a fail-fast reason and an optional
// cause.
func Wrap(reason, cause error) *AdapterError {
	return &AdapterError{Reason: reason, Cause: cause}
}
