// Package resourcecore composes a breaker and a bulkhead into one protected
// resource: the unit the registry tracks and callers acquire through.
package resourcecore

import (
	"context"
	"sync"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/adapter"
	"github.com/vnykmshr/resiliencecore/internal/breaker"
	"github.com/vnykmshr/resiliencecore/internal/bus"
)

// Breaker is the shared contract satisfied structurally by
// internal/breaker.CircuitBreaker, internal/adaptive.Breaker, and
// internal/dual.Dual. Resource holds one behind this interface so it need
// not know which kind backs a given resource.
//
// Resource drives a Breaker directly through RequestAllowed/MarkSuccess/
// MarkFailed rather than through a breaker-owned Acquire: the bulkhead
// reservation sits strictly between the admission check and the block, so
// a bulkhead rejection must never reach a breaker's failure classifier.
type Breaker interface {
	RequestAllowed() bool
	MarkSuccess()
	MarkFailed(err error)
	Open() bool
	Closed() bool
	HalfOpen() bool
	InUse() bool
	Reset()
	Close() error
}

// halfOpenResourceTimer is an optional capability a Breaker may implement:
// while HalfOpen, Resource runs the block under this reduced timeout, on
// top of the caller's own deadline, so a stuck dependency cannot hold
// a probe call open indefinitely. internal/breaker.CircuitBreaker and
// internal/dual.Dual both implement it; internal/adaptive.Breaker does
// not, since it has no discrete half-open probe to bound.
type halfOpenResourceTimer interface {
	HalfOpenResourceTimeout() time.Duration
}

// rejectionReasoner is an optional capability a Breaker may implement to
// report which concrete sentinel a rejected call should surface. Breakers
// without it are assumed to be the classic kind (breaker.ErrOpenCircuit);
// internal/adaptive.Breaker and internal/dual.Dual both implement it so a
// caller's errors.Is can still distinguish an adaptive rejection from a
// classic one.
type rejectionReasoner interface {
	RejectionReason() error
}

// Bulkhead is the shared contract satisfied by internal/bulkhead.Bulkhead
// (and any alternative, e.g. a cross-process implementation, a caller
// supplies).
type Bulkhead interface {
	Acquire(ctx context.Context) error
	Release()
	InUse() bool
	Close() error
}

// BreakerKind tags which kind of breaker a Resource holds, for
// diagnostics.
type BreakerKind int

const (
	BreakerKindNone BreakerKind = iota
	BreakerKindClassic
	BreakerKindAdaptive
	BreakerKindDual
)

// Config configures a single protected Resource.
type Config struct {
	Name          string
	Breaker       Breaker
	BreakerKind   BreakerKind
	Bulkhead      Bulkhead
	MarksCircuits adapter.MarksCircuits
	Bus           *bus.Bus
}

// Resource composes an optional breaker and an optional bulkhead behind a
// single Acquire. Zero value is not usable; construct via New.
type Resource struct {
	name          string
	breaker       Breaker
	breakerKind   BreakerKind
	bulkhead      Bulkhead
	marksCircuits adapter.MarksCircuits
	notifier      *bus.Bus

	mu        sync.Mutex
	updatedAt time.Time
}

// New constructs a Resource from cfg.
func New(cfg Config) *Resource {
	marksCircuits := cfg.MarksCircuits
	if marksCircuits == nil {
		marksCircuits = adapter.DefaultMarksCircuits
	}
	return &Resource{
		name:          cfg.Name,
		breaker:       cfg.Breaker,
		breakerKind:   cfg.BreakerKind,
		bulkhead:      cfg.Bulkhead,
		marksCircuits: marksCircuits,
		notifier:      cfg.Bus,
		updatedAt:     time.Now(),
	}
}

// Name returns the resource's name.
func (r *Resource) Name() string { return r.name }

// BreakerKind returns which kind of breaker backs this resource.
func (r *Resource) BreakerKind() BreakerKind { return r.breakerKind }

// Acquire runs block under this resource's full protection as three
// independent steps: the breaker's admission check, then the bulkhead
// reservation, then the block itself — with the block's outcome recorded
// only on the breaker, never the bulkhead's own busy/timeout rejection.
// Emits EventCircuitOpen, EventBusy, or EventSuccess; a block error that
// marks circuits emits no event.
func (r *Resource) Acquire(ctx context.Context, block func(context.Context) (any, error)) (any, error) {
	r.touch()

	if r.breaker != nil && !r.breaker.RequestAllowed() {
		r.notify(bus.Event{Kind: bus.EventCircuitOpen, Resource: r.name})
		return nil, adapter.Wrap(r.rejectionReason(), nil)
	}

	runCtx := ctx
	if r.breaker != nil && r.breaker.HalfOpen() {
		if timer, ok := r.breaker.(halfOpenResourceTimer); ok {
			if timeout := timer.HalfOpenResourceTimeout(); timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
		}
	}

	result, err := r.acquireBulkhead(runCtx, block)
	return result, err
}

// rejectionReason reports which sentinel a short-circuited Acquire should
// surface, delegating to the breaker if it implements rejectionReasoner
// (adaptive and dual breakers do, to reflect their own kind) and falling
// back to the classic breaker's sentinel otherwise.
func (r *Resource) rejectionReason() error {
	if rr, ok := r.breaker.(rejectionReasoner); ok {
		return rr.RejectionReason()
	}
	return breaker.ErrOpenCircuit
}

// acquireBulkhead reserves a bulkhead slot (if one is attached), runs
// block, and records the outcome on the breaker directly — a bulkhead
// rejection returns before the breaker ever sees this call, so it can
// never be misclassified as a breaker failure.
func (r *Resource) acquireBulkhead(ctx context.Context, block func(context.Context) (any, error)) (any, error) {
	if r.bulkhead == nil {
		return r.runAndRecord(ctx, block, 0)
	}

	start := time.Now()
	if err := r.bulkhead.Acquire(ctx); err != nil {
		r.notify(bus.Event{Kind: bus.EventBusy, Resource: r.name})
		return nil, adapter.Wrap(err, nil)
	}
	defer r.bulkhead.Release()

	return r.runAndRecord(ctx, block, time.Since(start))
}

// runAndRecord executes block and records its outcome directly on the
// breaker (if any), then emits EventSuccess for outcomes the breaker
// wouldn't count as a failure.
func (r *Resource) runAndRecord(ctx context.Context, block func(context.Context) (any, error), waitTime time.Duration) (any, error) {
	result, err := block(ctx)

	marksFailure := err != nil && r.marksCircuits(err)
	if r.breaker != nil {
		if marksFailure {
			r.breaker.MarkFailed(err)
		} else {
			r.breaker.MarkSuccess()
		}
	}
	if !marksFailure {
		r.notify(bus.Event{Kind: bus.EventSuccess, Resource: r.name, WaitTime: waitTime})
	}
	return result, err
}

func (r *Resource) notify(event bus.Event) {
	if r.notifier != nil {
		r.notifier.Notify(event)
	}
}

func (r *Resource) touch() {
	r.mu.Lock()
	r.updatedAt = time.Now()
	r.mu.Unlock()
}

// UpdatedAt returns the timestamp of the most recent Acquire, used by the
// registry for LRU ordering.
func (r *Resource) UpdatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

// InUse reports whether the breaker or bulkhead (whichever are present)
// report activity.
func (r *Resource) InUse() bool {
	if r.breaker != nil && r.breaker.InUse() {
		return true
	}
	if r.bulkhead != nil && r.bulkhead.InUse() {
		return true
	}
	return false
}

// MarkSuccess/MarkFailed/Reset/RequestAllowed/Open/Closed/HalfOpen
// delegate to the underlying breaker, if any is attached; a resource with
// no breaker always allows requests and reports Closed.

func (r *Resource) MarkSuccess() {
	if r.breaker != nil {
		r.breaker.MarkSuccess()
	}
}

func (r *Resource) MarkFailed(err error) {
	if r.breaker != nil {
		r.breaker.MarkFailed(err)
	}
}

func (r *Resource) RequestAllowed() bool {
	if r.breaker == nil {
		return true
	}
	return r.breaker.RequestAllowed()
}

func (r *Resource) Open() bool {
	if r.breaker == nil {
		return false
	}
	return r.breaker.Open()
}

func (r *Resource) Closed() bool {
	if r.breaker == nil {
		return true
	}
	return r.breaker.Closed()
}

func (r *Resource) HalfOpen() bool {
	if r.breaker == nil {
		return false
	}
	return r.breaker.HalfOpen()
}

func (r *Resource) Reset() {
	if r.breaker != nil {
		r.breaker.Reset()
	}
}

// Close tears down the resource's breaker and bulkhead, called by the
// registry on eviction/unregister.
func (r *Resource) Close() error {
	var err error
	if r.breaker != nil {
		if cerr := r.breaker.Close(); cerr != nil {
			err = cerr
		}
	}
	if r.bulkhead != nil {
		if cerr := r.bulkhead.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
