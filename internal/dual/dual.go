// Package dual implements the dual circuit breaker: it owns one classic and
// one adaptive breaker for the same logical resource and routes each call
// to whichever one a caller-supplied selector picks, while feeding both
// breakers every observed outcome.
package dual

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/adapter"
	"github.com/vnykmshr/resiliencecore/internal/adaptive"
	"github.com/vnykmshr/resiliencecore/internal/breaker"
	"github.com/vnykmshr/resiliencecore/internal/bus"
	"github.com/vnykmshr/resiliencecore/internal/pid"
)

// Selector picks which breaker kind should handle the next call for a
// named resource. true selects the classic breaker, false the adaptive
// one.
type Selector func(name string) bool

func defaultSelector(string) bool { return true }

// Config configures a dual breaker.
type Config struct {
	Name     string
	Selector Selector
	Bus      *bus.Bus

	// MarksCircuits classifies whether an outcome counts as a failure
	// toward both children. Should match whatever MarksCircuits the
	// classic/adaptive children were themselves constructed with, since
	// Dual is the single point that decides success-vs-failure on their
	// behalf. Defaults to adapter.DefaultMarksCircuits.
	MarksCircuits adapter.MarksCircuits
}

// Dual owns a classic and an adaptive breaker and arbitrates between them
// per call via a Selector. MarkSuccess/MarkFailed fan out to both children,
// serialized under one mutex, so both always observe the identical outcome
// sequence.
type Dual struct {
	name          string
	selector      Selector
	notifier      *bus.Bus
	marksCircuits adapter.MarksCircuits

	classic  *breaker.CircuitBreaker
	adaptive *adaptive.Breaker

	mu          sync.Mutex
	usedClassic bool
	everUsed    bool
}

// New creates a dual breaker wrapping the given classic and adaptive
// breakers, which the caller constructs and owns (dual is a router, not a
// factory for its children).
func New(cfg Config, classic *breaker.CircuitBreaker, adaptiveBreaker *adaptive.Breaker) *Dual {
	selector := cfg.Selector
	if selector == nil {
		selector = defaultSelector
	}
	marksCircuits := cfg.MarksCircuits
	if marksCircuits == nil {
		marksCircuits = adapter.DefaultMarksCircuits
	}
	return &Dual{
		name:          cfg.Name,
		selector:      selector,
		notifier:      cfg.Bus,
		marksCircuits: marksCircuits,
		classic:       classic,
		adaptive:      adaptiveBreaker,
	}
}

// selectClassic evaluates the selector with panic recovery, defaulting to
// the classic breaker (the named return keeps that default even when the
// selector call itself panics partway through, since a panic abandons the
// in-flight `return d.selector(...)` before it ever assigns useClassic).
func (d *Dual) selectClassic() (useClassic bool) {
	useClassic = true
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[DUAL WARNING] circuit %q: selector callback panicked: %v\n", d.name, r)
			useClassic = true
		}
	}()
	return d.selector(d.name)
}

func (d *Dual) activeKind(useClassic bool) string {
	if useClassic {
		return "classic"
	}
	return "adaptive"
}

// recordModeChange updates the active-kind bookkeeping and emits
// EventModeChange on the bus if the active kind changed since the previous
// call.
func (d *Dual) recordModeChange(useClassic bool) {
	d.mu.Lock()
	changed := d.everUsed && useClassic != d.usedClassic
	oldKind := d.activeKind(d.usedClassic)
	d.usedClassic = useClassic
	d.everUsed = true
	d.mu.Unlock()

	if changed && d.notifier != nil {
		d.notifier.Notify(bus.Event{
			Kind:     bus.EventModeChange,
			Resource: d.name,
			OldKind:  oldKind,
			NewKind:  d.activeKind(useClassic),
		})
	}
}

// RequestAllowed evaluates the selector for this call, records any
// resulting mode change, and reports whether the now-active child would
// admit the call. This is the sole per-call selector-evaluation point:
// Resource calls RequestAllowed once per Acquire and then records the
// outcome through MarkSuccess/MarkFailed, so the selector must be
// re-evaluated here rather than cached from a previous call.
func (d *Dual) RequestAllowed() bool {
	useClassic := d.selectClassic()
	d.recordModeChange(useClassic)
	if useClassic {
		return d.classic.RequestAllowed()
	}
	return d.adaptive.RequestAllowed()
}

// HalfOpenResourceTimeout implements the optional capability
// resourcecore.Resource checks for: it reflects the classic child's
// timeout when classic is currently active, and 0 (no reduction) when
// adaptive is active, since the continuous adaptive breaker has no
// discrete half-open probe to bound.
func (d *Dual) HalfOpenResourceTimeout() time.Duration {
	if !d.activeIsClassic() {
		return 0
	}
	return d.classic.HalfOpenResourceTimeout()
}

// RejectionReason implements the optional capability resourcecore.Resource
// checks for, reporting whichever child is currently active so a caller's
// errors.Is still distinguishes a classic rejection from an adaptive one.
func (d *Dual) RejectionReason() error {
	if d.activeIsClassic() {
		return breaker.ErrOpenCircuit
	}
	return adaptive.ErrRejected
}

// Acquire evaluates the selector, records any mode change, gates on the
// active child's admission check, runs block, and records the outcome on
// both children under one lock acquisition (see MarkSuccess/MarkFailed).
// Kept as a self-contained convenience for direct/standalone use and
// tests; production callers go through resourcecore.Resource, which
// drives RequestAllowed/MarkSuccess/MarkFailed itself.
func (d *Dual) Acquire(ctx context.Context, block func(context.Context) (any, error)) (any, error) {
	allowed := d.RequestAllowed()
	useClassic := d.activeIsClassic()
	if !allowed {
		if useClassic {
			return nil, breaker.ErrOpenCircuit
		}
		return nil, adaptive.ErrRejected
	}

	runCtx := ctx
	if useClassic && d.classic.HalfOpen() {
		if timeout := d.classic.HalfOpenResourceTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	result, err := block(runCtx)
	d.recordOutcome(err)
	return result, err
}

// recordOutcome classifies err once and marks both children under a
// single lock acquisition, so concurrent calls record into classic and
// adaptive in the same relative order: the sibling was previously fed its
// outcome under d.mu only after the active child had already recorded its
// own outcome under its own, separate lock, which let two overlapping
// calls observe the two children in different relative orders.
func (d *Dual) recordOutcome(err error) {
	failed := err != nil && d.marksCircuits(err)

	d.mu.Lock()
	defer d.mu.Unlock()
	if failed {
		d.classic.MarkFailed(err)
		d.adaptive.MarkFailed(err)
		return
	}
	d.classic.MarkSuccess()
	d.adaptive.MarkSuccess()
}

// MarkSuccess fans out to both children, serialized under d.mu so they
// observe the same outcome sequence.
func (d *Dual) MarkSuccess() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classic.MarkSuccess()
	d.adaptive.MarkSuccess()
}

// MarkFailed fans out to both children, serialized under d.mu.
func (d *Dual) MarkFailed(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classic.MarkFailed(err)
	d.adaptive.MarkFailed(err)
}

// Open reflects the currently active child only.
func (d *Dual) Open() bool {
	if d.activeIsClassic() {
		return d.classic.Open()
	}
	return d.adaptive.Open()
}

// Closed reflects the currently active child only.
func (d *Dual) Closed() bool {
	if d.activeIsClassic() {
		return d.classic.Closed()
	}
	return d.adaptive.Closed()
}

// HalfOpen reflects the currently active child only.
func (d *Dual) HalfOpen() bool {
	if d.activeIsClassic() {
		return d.classic.HalfOpen()
	}
	return d.adaptive.HalfOpen()
}

func (d *Dual) activeIsClassic() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.everUsed {
		return true
	}
	return d.usedClassic
}

// InUse reports whether either child has seen recent traffic.
func (d *Dual) InUse() bool {
	return d.classic.InUse() || d.adaptive.InUse()
}

// Reset resets both children.
func (d *Dual) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classic.Reset()
	d.adaptive.Reset()
}

// Close tears down both children.
func (d *Dual) Close() error {
	d.classic.Close()
	return d.adaptive.Close()
}

// Metrics merges both children's metrics views.
type Metrics struct {
	Classic  breaker.Metrics
	Adaptive pid.Metrics
}

// Metrics returns a merged snapshot of both children.
func (d *Dual) Metrics() Metrics {
	return Metrics{
		Classic:  d.classic.Metrics(),
		Adaptive: d.adaptive.Metrics(),
	}
}
