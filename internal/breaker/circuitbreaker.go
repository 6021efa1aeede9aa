package breaker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/window"
)

// CircuitBreaker implements the classic three-state circuit breaker
// described in SPEC_FULL.md §4.5.
//
// State is kept in an atomic int32 for lock-free reads (mirroring the
// teacher's CircuitBreaker), but transitions and the failure window are
// coordinated under a single mutex: unlike a bare consecutive-failure
// counter, deciding whether to trip requires reading the failure window and
// the clock together, which a pile of independent atomics cannot do
// correctly.
//
// Do not construct CircuitBreaker directly; use New.
type CircuitBreaker struct {
	cfg Config

	state atomic.Int32

	mu               sync.Mutex
	failures         *window.Window[time.Time]
	lastFailureAt    time.Time
	openedAt         time.Time
	stateChangedAt   time.Time
	successCount     uint32
	requests         uint32
	totalSuccesses   uint32
	totalFailures    uint32
	consecSuccesses  uint32
	consecFailures   uint32
}

// New creates a classic circuit breaker. It panics if cfg is invalid —
// construction-time misconfiguration is a programmer error, not a runtime
// condition, matching the teacher's panic-on-bad-Settings convention.
func New(cfg Config) *CircuitBreaker {
	if err := cfg.validate(); err != nil {
		panic("breaker: " + err.Error())
	}
	if cfg.MarksCircuits == nil {
		cfg.MarksCircuits = defaultMarksCircuits
	}

	fw, err := window.New[time.Time](cfg.ErrorThreshold)
	if err != nil {
		panic("breaker: " + err.Error())
	}

	cb := &CircuitBreaker{
		cfg:      cfg,
		failures: fw,
	}
	now := time.Now()
	cb.state.Store(int32(StateClosed))
	cb.stateChangedAt = now
	return cb
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// State returns the current state. Safe for concurrent use; a point-in-time
// snapshot that may change immediately after the call returns.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// Open reports whether the breaker is currently Open.
func (cb *CircuitBreaker) Open() bool { return cb.State() == StateOpen }

// Closed reports whether the breaker is currently Closed.
func (cb *CircuitBreaker) Closed() bool { return cb.State() == StateClosed }

// HalfOpen reports whether the breaker is currently HalfOpen.
func (cb *CircuitBreaker) HalfOpen() bool { return cb.State() == StateHalfOpen }

// RequestAllowed is the breaker's sole admission check: it reports whether
// a call may proceed right now, and — if the breaker is Open and
// ErrorTimeout has elapsed since the last recorded failure — performs the Open-to-HalfOpen
// transition itself. This is the "request_allowed?" gating step a
// Resource calls before running a block; there is no separate entry point
// that performs the transition, so callers that bypass Acquire (as
// Resource does) still get correct HalfOpen recovery.
func (cb *CircuitBreaker) RequestAllowed() bool {
	if cb.State() != StateOpen {
		return true
	}
	cb.mu.Lock()
	elapsed := !cb.lastFailureAt.IsZero() && time.Since(cb.lastFailureAt) >= cb.cfg.ErrorTimeout
	cb.mu.Unlock()
	if !elapsed {
		return false
	}
	cb.transitionToHalfOpen()
	return true
}

// HalfOpenResourceTimeout implements the optional capability Resource
// checks for: while HalfOpen, it runs the protected block under this
// reduced timeout (0 if unset, meaning no reduction).
func (cb *CircuitBreaker) HalfOpenResourceTimeout() time.Duration {
	return cb.cfg.HalfOpenResourceTimeout
}

// InUse reports whether the breaker has seen any traffic since its last
// state change or count reset; used by the registry's LRU GC.
func (cb *CircuitBreaker) InUse() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.requests > 0
}

// Close satisfies the shared Breaker lifecycle contract. The classic
// breaker owns no background resources, so Close is a no-op that always
// succeeds.
func (cb *CircuitBreaker) Close() error { return nil }

// Counts returns a snapshot of current request statistics.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Counts{
		Requests:             cb.requests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		ConsecutiveSuccesses: cb.consecSuccesses,
		ConsecutiveFailures:  cb.consecFailures,
	}
}

// Acquire runs block under circuit breaker protection.
//
// If the breaker is Open and ErrorTimeout has not yet elapsed since the last
// recorded failure, block never runs and Acquire returns ErrOpenCircuit. Otherwise block runs (under a
// reduced-deadline context if HalfOpen and HalfOpenResourceTimeout is set),
// and the outcome is classified via Config.MarksCircuits and recorded.
func (cb *CircuitBreaker) Acquire(ctx context.Context, block func(context.Context) (any, error)) (any, error) {
	if !cb.RequestAllowed() {
		return nil, ErrOpenCircuit
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cb.HalfOpen() && cb.cfg.HalfOpenResourceTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cb.cfg.HalfOpenResourceTimeout)
		defer cancel()
	}

	result, err := block(runCtx)

	if safeMarksCircuits(cb.cfg.Name, cb.cfg.MarksCircuits, err) {
		cb.MarkFailed(err)
	} else {
		cb.MarkSuccess()
	}
	return result, err
}

// MarkSuccess records a successful outcome. In HalfOpen, SuccessThreshold
// consecutive successes close the circuit. In Closed, it is bookkeeping
// only.
func (cb *CircuitBreaker) MarkSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	cb.totalSuccesses++
	cb.consecSuccesses++
	cb.consecFailures = 0

	if State(cb.state.Load()) != StateHalfOpen {
		return
	}

	cb.successCount++
	if cb.successCount >= uint32(cb.cfg.SuccessThreshold) {
		cb.transitionToClosedLocked()
	}
}

// MarkFailed records a failed outcome. In Closed, once the failure window
// fills within ErrorThresholdTimeout the circuit opens. In HalfOpen, any
// failure immediately reopens it.
func (cb *CircuitBreaker) MarkFailed(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	cb.totalFailures++
	cb.consecFailures++
	cb.consecSuccesses = 0

	now := time.Now()
	cb.pushFailureLocked(now)

	switch State(cb.state.Load()) {
	case StateClosed:
		cb.maybeTripLocked(now)
	case StateHalfOpen:
		cb.transitionToOpenLocked(now)
	}
}

// pushFailureLocked records a failure timestamp, lumping it into the
// previous entry if it arrives within LumpingInterval of the last recorded
// failure so a tight burst does not consume window slots faster than real
// traffic would. Callers must hold cb.mu.
func (cb *CircuitBreaker) pushFailureLocked(now time.Time) {
	cb.failures.RejectWhere(func(t time.Time) bool {
		return now.Sub(t) > cb.cfg.ErrorThresholdTimeout
	})

	if cb.cfg.LumpingInterval > 0 && !cb.lastFailureAt.IsZero() &&
		now.Sub(cb.lastFailureAt) < cb.cfg.LumpingInterval {
		cb.lastFailureAt = now
		return
	}

	cb.failures.Push(now)
	cb.lastFailureAt = now
}

// maybeTripLocked opens the circuit if the failure window is full and its
// span fits within ErrorThresholdTimeout. Callers must hold cb.mu.
func (cb *CircuitBreaker) maybeTripLocked(now time.Time) {
	if cb.failures.Len() < cb.cfg.ErrorThreshold {
		return
	}
	items := cb.failures.Items()
	span := items[len(items)-1].Sub(items[0])
	if span > cb.cfg.ErrorThresholdTimeout {
		return
	}
	cb.transitionToOpenLocked(now)
}

// Reset clears the failure window and success counter and forces Closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.resetCountsLocked()
	cb.failures.Clear()
	cb.lastFailureAt = time.Time{}
	cb.openedAt = time.Time{}
	from := State(cb.state.Load())
	cb.state.Store(int32(StateClosed))
	cb.stateChangedAt = time.Now()
	if from != StateClosed {
		safeOnStateChange(cb.cfg.Name, cb.cfg.OnStateChange, from, StateClosed)
	}
}

func (cb *CircuitBreaker) resetCountsLocked() {
	cb.requests = 0
	cb.totalSuccesses = 0
	cb.totalFailures = 0
	cb.consecSuccesses = 0
	cb.consecFailures = 0
	cb.successCount = 0
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
		return
	}
	cb.resetCountsLocked()
	cb.stateChangedAt = time.Now()
	safeOnStateChange(cb.cfg.Name, cb.cfg.OnStateChange, StateOpen, StateHalfOpen)
}

// transitionToClosedLocked transitions HalfOpen -> Closed. Callers must
// hold cb.mu.
func (cb *CircuitBreaker) transitionToClosedLocked() {
	cb.state.Store(int32(StateClosed))
	cb.resetCountsLocked()
	cb.failures.Clear()
	cb.lastFailureAt = time.Time{}
	cb.openedAt = time.Time{}
	cb.stateChangedAt = time.Now()
	safeOnStateChange(cb.cfg.Name, cb.cfg.OnStateChange, StateHalfOpen, StateClosed)
}

// transitionToOpenLocked transitions Closed|HalfOpen -> Open. Callers must
// hold cb.mu.
func (cb *CircuitBreaker) transitionToOpenLocked(now time.Time) {
	from := State(cb.state.Load())
	cb.state.Store(int32(StateOpen))
	cb.openedAt = now
	cb.stateChangedAt = now
	cb.resetCountsLocked()
	safeOnStateChange(cb.cfg.Name, cb.cfg.OnStateChange, from, StateOpen)
}
