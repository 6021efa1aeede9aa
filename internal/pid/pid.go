// Package pid implements the windowed PID controller that drives the
// adaptive circuit breaker: it turns a measured error rate against a
// forecast baseline into a continuous rejection probability, rather than a
// discrete Closed/Open/HalfOpen state.
package pid

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// Estimator forecasts the "ideal" error rate the controller should treat as
// baseline. internal/quantile.P2 satisfies this directly; internal/smoother.SES
// does through the sesEstimator adapter in internal/config.
type Estimator interface {
	Observe(x float64)
	Estimate() (float64, error)
}

// Source supplies the random draw behind ShouldReject. *rand.Rand from
// math/rand/v2 satisfies this, as does the package-level default below.
type Source interface {
	Float64() float64
}

type defaultSource struct{}

func (defaultSource) Float64() float64 { return rand.Float64() }

// Config configures a PID controller.
type Config struct {
	// Name identifies the controller for logging.
	Name string

	// Kp, Ki, Kd are the proportional, integral, and derivative gains.
	Kp, Ki, Kd float64

	// Window is the update period the integral and derivative terms use as
	// their step size. Required, must be > 0.
	Window time.Duration

	// InitialErrorRate seeds rejectionRate before the first Update.
	InitialErrorRate float64

	// Estimator forecasts the baseline error rate. Required, non-nil.
	Estimator Estimator

	// Rand supplies the source for ShouldReject's coin flip. Defaults to
	// math/rand/v2's package-level functions (already safe for concurrent
	// use); inject a *rand.Rand for reproducible tests.
	Rand Source
}

func (c Config) validate() error {
	if c.Window <= 0 {
		return errors.New("pid: Window must be > 0")
	}
	if c.Estimator == nil {
		return errors.New("pid: Estimator must be non-nil")
	}
	if c.InitialErrorRate < 0 || c.InitialErrorRate > 1 {
		return errors.New("pid: InitialErrorRate must be in [0, 1]")
	}
	return nil
}

// Controller is a windowed PID controller producing a rejection
// probability in [0, 1]. All mutating and reading methods, Metrics
// included, are serialized under one mutex — the control loop is inherently
// sequential (each Update depends on the previous integral/pPrev), so there
// is no hot read path worth relaxing to atomics the way the classic
// breaker's State() is.
type Controller struct {
	cfg Config
	rng Source

	mu            sync.Mutex
	rejectionRate float64
	integral      float64
	pPrev         float64
	successes     uint64
	errors        uint64
	rejected      uint64
}

// New creates a PID controller. Panics on invalid Config, matching the
// classic breaker's panic-on-bad-configuration convention.
func New(cfg Config) *Controller {
	if err := cfg.validate(); err != nil {
		panic("pid: " + err.Error())
	}
	rng := cfg.Rand
	if rng == nil {
		rng = defaultSource{}
	}
	return &Controller{
		cfg:           cfg,
		rng:           rng,
		rejectionRate: cfg.InitialErrorRate,
	}
}

// RecordRequest records the outcome of one protected call, accumulating it
// into the current window's counters. rejected should be true when the call
// was turned away by ShouldReject rather than actually attempted.
func (c *Controller) RecordRequest(success bool, rejected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case rejected:
		c.rejected++
	case success:
		c.successes++
	default:
		c.errors++
	}
}

// ShouldReject reports whether the next call should be turned away,
// independently per call, using the current rejection rate.
func (c *Controller) ShouldReject() bool {
	c.mu.Lock()
	rate := c.rejectionRate
	rng := c.rng
	c.mu.Unlock()
	return rng.Float64() < rate
}

// RejectionRate returns the controller's current rejection probability.
func (c *Controller) RejectionRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejectionRate
}

// Update runs one PID step: computes the window's error rate, feeds it to
// the baseline estimator, and adjusts rejectionRate via the proportional,
// integral, and derivative terms. Called by the scheduler once per its tick
// interval.
func (c *Controller) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.errors
	var errorRate float64
	if total > 0 {
		errorRate = float64(c.errors) / float64(total)
	}

	c.cfg.Estimator.Observe(errorRate)
	ideal, err := c.cfg.Estimator.Estimate()
	if err != nil {
		ideal = errorRate
	}

	seconds := c.cfg.Window.Seconds()
	p := (errorRate - ideal) - c.rejectionRate
	c.integral += p * seconds
	derivative := (p - c.pPrev) / seconds

	delta := c.cfg.Kp*p + c.cfg.Ki*c.integral + c.cfg.Kd*derivative
	next := c.rejectionRate + delta

	clamped := clamp(next, 0, 1)
	if clamped != next {
		// Anti-windup: undo the integral contribution that pushed us past
		// the clamp, so it can't keep accumulating while saturated.
		c.integral -= p * seconds
	}
	c.rejectionRate = clamped
	c.pPrev = p

	c.successes, c.errors, c.rejected = 0, 0, 0
}

func clamp(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}

// Reset clears the controller back to zero rejection rate and zeroes all
// accumulated state. InitialErrorRate only seeds the rate at construction
// (New); a fresh Update with zero observations after Reset must leave
// rejection_rate and integral at 0 regardless of how the controller was
// originally seeded.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectionRate = 0
	c.integral = 0
	c.pPrev = 0
	c.successes, c.errors, c.rejected = 0, 0, 0
}

// Metrics is a point-in-time snapshot of controller state.
type Metrics struct {
	RejectionRate float64
	Integral      float64
	Successes     uint64
	Errors        uint64
	Rejected      uint64
}

// Metrics returns a snapshot without acquiring c.mu twice for separate
// fields the way a naive getter-per-field API would; mirrors the classic
// breaker's single-locked-read Metrics().
func (c *Controller) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		RejectionRate: c.rejectionRate,
		Integral:      c.integral,
		Successes:     c.successes,
		Errors:        c.errors,
		Rejected:      c.rejected,
	}
}
