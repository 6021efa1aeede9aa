// Package breaker implements the classic three-state circuit breaker: a
// bounded failure window with lumping and a timeout-governed half-open
// probe, in the spirit of the teacher's atomic-state-plus-doc-comment-dense
// circuit breaker, generalized from a bare consecutive-failure counter to
// the windowed/lumped failure tracking this system's spec calls for.
package breaker

import (
	"errors"
	"time"
)

// State represents the circuit breaker's current state.
type State int32

const (
	// StateClosed allows all requests through and tracks failures in a
	// bounded window.
	StateClosed State = iota
	// StateOpen rejects all requests immediately until ErrorTimeout elapses.
	StateOpen
	// StateHalfOpen allows probe requests to test recovery.
	StateHalfOpen
)

// String returns the state's name, used in logs and Metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Errors returned by the classic breaker.
var (
	// ErrOpenCircuit is returned when Acquire is called while the breaker is
	// open.
	ErrOpenCircuit = errors.New("breaker: circuit is open")

	// ErrNotSupported reports configuration that cannot be honored (e.g. a
	// lumping interval incompatible with the error window); New panics with
	// its message.
	ErrNotSupported = errors.New("breaker: unsupported configuration")
)

// Config configures a classic circuit breaker.
type Config struct {
	// Name identifies the breaker for logging and the OnStateChange callback.
	Name string

	// ErrorThreshold is the size of the failure-timestamp window: the
	// breaker trips once this many failures are present in the window and
	// their span fits within ErrorThresholdTimeout. Required, must be > 0.
	ErrorThreshold int

	// ErrorThresholdTimeout bounds how old a failure may be before it is
	// purged from the window. Must be > 0.
	ErrorThresholdTimeout time.Duration

	// ErrorTimeout is how long the breaker stays Open before probing via
	// HalfOpen. Required, must be > 0.
	ErrorTimeout time.Duration

	// SuccessThreshold is the number of successes (a plain counter, reset on
	// entry to HalfOpen and on any HalfOpen failure) required to close the
	// circuit from HalfOpen. Required, must be > 0.
	SuccessThreshold int

	// HalfOpenResourceTimeout, if set, bounds how long a HalfOpen probe call
	// may run via a derived context.
	HalfOpenResourceTimeout time.Duration

	// LumpingInterval, if set, merges failures that occur within this
	// interval of the previous recorded failure into a single window slot,
	// so a tight burst doesn't trip the breaker faster than real traffic
	// volume would suggest. Must satisfy
	// LumpingInterval * (ErrorThreshold - 1) <= ErrorThresholdTimeout.
	LumpingInterval time.Duration

	// MarksCircuits classifies whether an error returned by a protected
	// block should count toward the failure window. Defaults to "any
	// non-nil error marks circuits".
	MarksCircuits func(error) bool

	// OnStateChange is invoked (synchronously, on the transitioning
	// goroutine) whenever the state changes.
	OnStateChange func(name string, from, to State)
}

func defaultMarksCircuits(err error) bool {
	return err != nil
}

// validate checks Config for construction-time misuse. Matching the
// teacher's New() convention, invalid configuration is a programmer error
// caught at construction via a panic in New, not a runtime error.
func (c Config) validate() error {
	if c.ErrorThreshold <= 0 {
		return errors.New("breaker: ErrorThreshold must be > 0")
	}
	if c.ErrorThresholdTimeout <= 0 {
		return errors.New("breaker: ErrorThresholdTimeout must be > 0")
	}
	if c.ErrorTimeout <= 0 {
		return errors.New("breaker: ErrorTimeout must be > 0")
	}
	if c.SuccessThreshold <= 0 {
		return errors.New("breaker: SuccessThreshold must be > 0")
	}
	if c.LumpingInterval > 0 {
		span := c.LumpingInterval * time.Duration(c.ErrorThreshold-1)
		if span > c.ErrorThresholdTimeout {
			return ErrNotSupported
		}
	}
	return nil
}

// Counts holds a snapshot of request statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}
