// Package config defines the yaml-tagged Config a caller fills in to
// describe how one named resource should be protected, and turns it into
// the wired-up breaker/bulkhead/resource graph the engine hands back.
package config

import (
	"errors"
	"time"

	"github.com/vnykmshr/resiliencecore/internal/adapter"
	"github.com/vnykmshr/resiliencecore/internal/adaptive"
	"github.com/vnykmshr/resiliencecore/internal/breaker"
	"github.com/vnykmshr/resiliencecore/internal/bulkhead"
	"github.com/vnykmshr/resiliencecore/internal/bus"
	"github.com/vnykmshr/resiliencecore/internal/dual"
	"github.com/vnykmshr/resiliencecore/internal/pid"
	"github.com/vnykmshr/resiliencecore/internal/quantile"
	"github.com/vnykmshr/resiliencecore/internal/resourcecore"
	"github.com/vnykmshr/resiliencecore/internal/scheduler"
	"github.com/vnykmshr/resiliencecore/internal/smoother"
)

// Config describes how a single named resource should be protected.
// Every field besides Name is optional; zero values fall back to "no
// breaker"/"no bulkhead" rather than a panicking default, so a bare
// Config{} yields an unprotected passthrough resource.
type Config struct {
	Name string `yaml:"name"`

	// Classic breaker tuning (internal/breaker.Config). When neither
	// AdaptiveCircuitBreaker nor DualCircuitBreaker is set, a classic
	// breaker is built only if ErrorThreshold > 0.
	ErrorThreshold          int           `yaml:"errorThreshold"`
	ErrorThresholdTimeout   time.Duration `yaml:"errorThresholdTimeout"`
	ErrorTimeout            time.Duration `yaml:"errorTimeout"`
	SuccessThreshold        int           `yaml:"successThreshold"`
	HalfOpenResourceTimeout time.Duration `yaml:"halfOpenResourceTimeout"`
	LumpingInterval         time.Duration `yaml:"lumpingInterval"`

	AdaptiveCircuitBreaker bool `yaml:"adaptiveCircuitBreaker"`
	DualCircuitBreaker     bool `yaml:"dualCircuitBreaker"`

	// Selector picks which child the dual breaker consults for a given
	// call. Required when DualCircuitBreaker is true.
	Selector func(name string) bool `yaml:"-"`

	Bulkhead bool    `yaml:"bulkhead"`
	Tickets  int     `yaml:"tickets"`
	Quota    float64 `yaml:"quota"`

	// PID tuning, consulted only when AdaptiveCircuitBreaker or
	// DualCircuitBreaker is set.
	PIDWindow           time.Duration `yaml:"pidWindow"`
	PIDKp               float64       `yaml:"pidKp"`
	PIDKi               float64       `yaml:"pidKi"`
	PIDKd               float64       `yaml:"pidKd"`
	PIDInitialErrorRate float64       `yaml:"pidInitialErrorRate"`
	PIDEstimatorKind    string        `yaml:"pidEstimatorKind"` // "p2" | "ses"
	PIDQuantile         float64       `yaml:"pidQuantile"`      // used when PIDEstimatorKind == "p2"
	PIDSESCap           float64       `yaml:"pidSesCap"`        // used when PIDEstimatorKind == "ses"

	// MarksCircuits classifies an error as belonging to the protected
	// dependency. Defaults to adapter.DefaultMarksCircuits.
	MarksCircuits adapter.MarksCircuits `yaml:"-"`
}

var (
	// ErrSelectorRequired is returned when DualCircuitBreaker is set
	// without a Selector.
	ErrSelectorRequired = errors.New("config: Selector is required when DualCircuitBreaker is set")

	// ErrTicketsAndQuota is returned when both Tickets and Quota are set;
	// exactly one sizing strategy is allowed.
	ErrTicketsAndQuota = errors.New("config: Tickets and Quota are mutually exclusive")
)

func (c Config) validate() error {
	if c.DualCircuitBreaker && c.Selector == nil {
		return ErrSelectorRequired
	}
	if c.Bulkhead && c.Tickets > 0 && c.Quota > 0 {
		return ErrTicketsAndQuota
	}
	return nil
}

// Validate reports whether cfg is internally consistent, without building
// anything. Callers that need to check a Config before committing to a
// lazy construction (e.g. Engine.GetOrRegister) can call this up front.
func (c Config) Validate() error {
	return c.validate()
}

// sesEstimator adapts smoother.SES's (float64, bool) Estimate to the
// (float64, error) shape pid.Estimator requires.
type sesEstimator struct{ ses *smoother.SES }

func (s sesEstimator) Observe(x float64) { s.ses.Observe(x) }

var errSESNoData = errors.New("config: smoother has no data observed")

func (s sesEstimator) Estimate() (float64, error) {
	v, ok := s.ses.Estimate()
	if !ok {
		return 0, errSESNoData
	}
	return v, nil
}

func (c Config) buildEstimator() pid.Estimator {
	if c.PIDEstimatorKind == "ses" {
		cap := c.PIDSESCap
		if cap == 0 {
			cap = 1
		}
		alphas := smoother.Alphas{LowUp: 0.3, LowDown: 0.4, HighUp: 0.05, HighDown: 0.1}
		return sesEstimator{ses: smoother.New(alphas, 30, cap)}
	}

	q := c.PIDQuantile
	if q == 0 {
		q = 0.5
	}
	est, err := quantile.New(q)
	if err != nil {
		panic("config: " + err.Error())
	}
	return est
}

func (c Config) pidConfig() pid.Config {
	window := c.PIDWindow
	if window == 0 {
		window = 10 * time.Second
	}
	return pid.Config{
		Name:             c.Name,
		Kp:               c.PIDKp,
		Ki:               c.PIDKi,
		Kd:               c.PIDKd,
		Window:           window,
		InitialErrorRate: c.PIDInitialErrorRate,
		Estimator:        c.buildEstimator(),
	}
}

func (c Config) breakerConfig(marksCircuits adapter.MarksCircuits) breaker.Config {
	return breaker.Config{
		Name:                    c.Name,
		ErrorThreshold:          c.ErrorThreshold,
		ErrorThresholdTimeout:   c.ErrorThresholdTimeout,
		ErrorTimeout:            c.ErrorTimeout,
		SuccessThreshold:        c.SuccessThreshold,
		HalfOpenResourceTimeout: c.HalfOpenResourceTimeout,
		LumpingInterval:         c.LumpingInterval,
		MarksCircuits:           marksCircuits,
	}
}

// Build turns Config into a fully wired resourcecore.Resource: the
// requested breaker kind (classic, adaptive, dual, or none), an optional
// bulkhead sized from Tickets or Quota·poolSize, and the shared notification
// bus. sched drives any adaptive controller's periodic Update; poolSize
// resolves a Quota-based ticket count. disableBreaker substitutes
// resourcecore.NoopBreaker for whatever breaker kind the Config requests —
// the engine sets this from RESILIENCE_DISABLE_ALL/RESILIENCE_DISABLE_CIRCUIT_BREAKER.
func (c Config) Build(sched *scheduler.Scheduler, notifier *bus.Bus, poolSize int, disableBreaker bool) (*resourcecore.Resource, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	marksCircuits := c.MarksCircuits
	if marksCircuits == nil {
		marksCircuits = adapter.DefaultMarksCircuits
	}

	rcCfg := resourcecore.Config{
		Name:          c.Name,
		MarksCircuits: marksCircuits,
		Bus:           notifier,
	}

	switch {
	case disableBreaker:
		rcCfg.Breaker = resourcecore.NoopBreaker{}
		rcCfg.BreakerKind = resourcecore.BreakerKindNone
	case c.DualCircuitBreaker:
		classic := breaker.New(c.breakerConfig(marksCircuits))
		ad := adaptive.New(adaptive.Config{Name: c.Name, PID: c.pidConfig(), MarksCircuits: marksCircuits}, sched)
		d := dual.New(dual.Config{Name: c.Name, Selector: c.Selector, Bus: notifier, MarksCircuits: marksCircuits}, classic, ad)
		rcCfg.Breaker = d
		rcCfg.BreakerKind = resourcecore.BreakerKindDual
	case c.AdaptiveCircuitBreaker:
		ad := adaptive.New(adaptive.Config{Name: c.Name, PID: c.pidConfig(), MarksCircuits: marksCircuits}, sched)
		rcCfg.Breaker = ad
		rcCfg.BreakerKind = resourcecore.BreakerKindAdaptive
	case c.ErrorThreshold > 0:
		rcCfg.Breaker = breaker.New(c.breakerConfig(marksCircuits))
		rcCfg.BreakerKind = resourcecore.BreakerKindClassic
	}

	if c.Bulkhead {
		tickets := c.Tickets
		if tickets == 0 && c.Quota > 0 {
			tickets = int(c.Quota * float64(poolSize))
			if tickets < 1 {
				tickets = 1
			}
		}
		rcCfg.Bulkhead = bulkhead.New(bulkhead.Config{Name: c.Name, Tickets: tickets})
	}

	return resourcecore.New(rcCfg), nil
}
