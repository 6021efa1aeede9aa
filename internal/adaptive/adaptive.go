// Package adaptive implements the PID-driven circuit breaker: instead of a
// discrete Closed/Open/HalfOpen state machine, it maintains a continuous
// rejection probability and decides per call whether to let traffic
// through.
package adaptive

import (
	"context"
	"errors"

	"github.com/vnykmshr/resiliencecore/internal/pid"
	"github.com/vnykmshr/resiliencecore/internal/scheduler"
)

// ErrRejected is returned by Acquire when the PID controller's rejection
// draw turns the call away.
var ErrRejected = errors.New("adaptive: request rejected")

// Config configures an adaptive breaker.
type Config struct {
	Name string
	PID  pid.Config

	// MarksCircuits classifies whether an error returned by a protected
	// block should count as an error toward the controller's window.
	// Defaults to "any non-nil error".
	MarksCircuits func(error) bool
}

func defaultMarksCircuits(err error) bool { return err != nil }

// Breaker is the adaptive circuit breaker. Unlike the classic breaker it
// has no discrete state: Open/Closed/HalfOpen are derived from the current
// rejection rate for callers that need the shared Breaker interface.
type Breaker struct {
	name          string
	marksCircuits func(error) bool
	controller    *pid.Controller

	sched  *scheduler.Scheduler
	handle scheduler.Handle
}

// New creates an adaptive breaker and registers it with sched so its PID
// controller is ticked at sched's interval. Panics if cfg.PID is
// invalid (delegated to pid.New's own validation).
func New(cfg Config, sched *scheduler.Scheduler) *Breaker {
	if cfg.MarksCircuits == nil {
		cfg.MarksCircuits = defaultMarksCircuits
	}
	b := &Breaker{
		name:          cfg.Name,
		marksCircuits: cfg.MarksCircuits,
		controller:    pid.New(cfg.PID),
		sched:         sched,
	}
	if sched != nil {
		b.handle = sched.Register(b)
	}
	return b
}

// Update runs one PID step. Exported so the breaker satisfies
// scheduler.Updatable directly; also callable synchronously in tests that
// don't want to wait on a real ticker.
func (b *Breaker) Update() { b.controller.Update() }

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.name }

// RequestAllowed reports whether a call would currently be let through: the
// negation of a PID rejection draw.
func (b *Breaker) RequestAllowed() bool {
	return !b.controller.ShouldReject()
}

// Open reports whether the controller's rejection rate has saturated to 1
// (rejecting every call).
func (b *Breaker) Open() bool { return b.controller.RejectionRate() == 1 }

// Closed reports whether the controller's rejection rate is exactly 0.
func (b *Breaker) Closed() bool { return b.controller.RejectionRate() == 0 }

// InProbation reports whether the breaker is neither fully open nor fully
// closed — some but not all traffic is being rejected. There is no
// discrete half-open probe state to match C5's; this is the continuous
// equivalent.
func (b *Breaker) InProbation() bool {
	rate := b.controller.RejectionRate()
	return rate > 0 && rate < 1
}

// HalfOpen is an alias of InProbation, kept so the adaptive breaker
// satisfies the shared Breaker interface's Open/Closed/HalfOpen trio
// uniformly alongside the classic and dual breakers.
func (b *Breaker) HalfOpen() bool { return b.InProbation() }

// InUse reports whether the controller has observed any traffic in its
// current window.
func (b *Breaker) InUse() bool {
	m := b.controller.Metrics()
	return m.Successes+m.Errors+m.Rejected > 0
}

// Acquire runs block under adaptive protection. If the PID controller's
// rejection draw turns the call away, block never runs and Acquire returns
// ErrRejected. Otherwise block runs and its outcome is classified and
// recorded.
func (b *Breaker) Acquire(ctx context.Context, block func(context.Context) (any, error)) (any, error) {
	if b.controller.ShouldReject() {
		b.controller.RecordRequest(false, true)
		return nil, ErrRejected
	}

	result, err := block(ctx)
	b.controller.RecordRequest(!b.marksCircuits(err), false)
	return result, err
}

// MarkSuccess records a successful outcome directly, without going through
// Acquire's own rejection draw. Used by the dual breaker, which runs the
// caller's block only through its currently-active child but must still
// feed both children the same observed outcome.
func (b *Breaker) MarkSuccess() { b.controller.RecordRequest(true, false) }

// MarkFailed records a failed outcome directly; see MarkSuccess.
func (b *Breaker) MarkFailed(error) { b.controller.RecordRequest(false, false) }

// RejectionReason implements the optional capability Resource checks for
// when reporting why a call was turned away, so callers see ErrRejected
// rather than the classic breaker's ErrOpenCircuit for an adaptive
// rejection.
func (b *Breaker) RejectionReason() error { return ErrRejected }

// Reset clears the controller back to a zero rejection rate.
func (b *Breaker) Reset() { b.controller.Reset() }

// Close stops the breaker from being ticked further by its scheduler and
// clears its controller. Satisfies io.Closer for the registry's eviction
// path.
func (b *Breaker) Close() error {
	if b.sched != nil {
		b.sched.Unregister(b.handle)
	}
	b.controller.Reset()
	return nil
}

// Metrics returns the underlying PID controller's metrics snapshot.
func (b *Breaker) Metrics() pid.Metrics { return b.controller.Metrics() }
