// Package resiliencecore shields a calling process from misbehaving remote
// dependencies. For each named external resource (a database, an HTTP host,
// an RPC backend, a cache) it maintains a breaker that decides, per call,
// whether to let the call through, and an optional bulkhead that bounds how
// many calls run concurrently.
//
// # Quick start
//
// Register a resource once, then protect every call to it through Acquire:
//
//	cfg := resiliencecore.Config{
//	    Name:                  "payments-api",
//	    ErrorThreshold:        5,
//	    ErrorThresholdTimeout: 10 * time.Second,
//	    ErrorTimeout:          30 * time.Second,
//	    SuccessThreshold:      2,
//	}
//	resource, err := resiliencecore.Register("payments-api", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := resource.Acquire(ctx, func(ctx context.Context) (any, error) {
//	    return paymentsClient.Charge(ctx, req)
//	})
//	if errors.Is(err, resiliencecore.ErrOpenCircuit) {
//	    // circuit is open: fall back or fail fast
//	}
//
// # Breaker kinds
//
// Three breaker kinds are available per resource, selected by Config:
//   - Classic (the default, once ErrorThreshold is set): discrete
//     Closed/Open/HalfOpen states driven by a bounded failure window.
//   - Adaptive (Config.AdaptiveCircuitBreaker): a PID controller maintaining
//     a continuous rejection probability against a forecast baseline error
//     rate, rather than a hard trip threshold.
//   - Dual (Config.DualCircuitBreaker): runs a classic and an adaptive
//     breaker side by side, routing each call to one via a Selector while
//     keeping both in sync with the same outcomes.
//
// # Environment switches
//
// RESILIENCE_DISABLE_ALL and RESILIENCE_DISABLE_CIRCUIT_BREAKER, read once
// at Engine construction, collapse every resource's breaker to an
// unprotected pass-through — useful for local development and for
// incident response when the breaker itself is suspected of misbehaving.
package resiliencecore

import (
	"github.com/vnykmshr/resiliencecore/internal/adapter"
	"github.com/vnykmshr/resiliencecore/internal/adaptive"
	"github.com/vnykmshr/resiliencecore/internal/breaker"
	"github.com/vnykmshr/resiliencecore/internal/bulkhead"
	"github.com/vnykmshr/resiliencecore/internal/bus"
	"github.com/vnykmshr/resiliencecore/internal/config"
	"github.com/vnykmshr/resiliencecore/internal/resourcecore"
)

// Core Types
//
// These types form the public API of the library; each is a type alias for
// (or thin re-export of) its implementing internal package, following the
// same facade pattern as the one-package-per-concern layout underneath.

// Resource is a single named, protected dependency: an optional breaker
// composed with an optional bulkhead behind one Acquire.
type Resource = resourcecore.Resource

// Config describes how one resource should be protected. See the field docs
// on internal/config.Config for the meaning of each field.
type Config = config.Config

// State represents the classic breaker's current state. Adaptive and dual
// breakers report a derived approximation via Resource.Open/.Closed/.HalfOpen.
type State = breaker.State

// MarksCircuits classifies whether an error returned by a protected block
// should count against a breaker's failure accounting.
type MarksCircuits = adapter.MarksCircuits

// AdapterError wraps an error a breaker or bulkhead produced when it
// short-circuited a call before the protected block ever ran.
type AdapterError = adapter.AdapterError

const (
	StateClosed   = breaker.StateClosed
	StateOpen     = breaker.StateOpen
	StateHalfOpen = breaker.StateHalfOpen
)

// Errors
//
// Returned by Resource.Acquire to signal why a call was short-circuited.
var (
	// ErrOpenCircuit is returned (wrapped in AdapterError) when the
	// resource's breaker rejected the call outright.
	ErrOpenCircuit = breaker.ErrOpenCircuit

	// ErrRejected is returned (wrapped in AdapterError) when an adaptive
	// breaker's rejection draw turned the call away.
	ErrRejected = adaptive.ErrRejected

	// ErrBusy is returned (wrapped in AdapterError) when the resource's
	// bulkhead had no free ticket within the caller's context.
	ErrBusy = bulkhead.ErrBusy

	// ErrSelectorRequired is returned by Register/GetOrRegister when
	// Config.DualCircuitBreaker is set without a Selector.
	ErrSelectorRequired = config.ErrSelectorRequired

	// ErrTicketsAndQuota is returned by Register/GetOrRegister when both
	// Config.Tickets and Config.Quota are set.
	ErrTicketsAndQuota = config.ErrTicketsAndQuota
)

// defaultEngine is the implicit engine backing the package-level
// convenience functions below. Created lazily on first use so importing
// this package never starts a background goroutine by itself.
var defaultEngine = NewLazyEngine(EngineConfig{})

// Register builds and registers a resource named name under cfg on the
// default engine. See Engine.Register.
func Register(name string, cfg Config) (*Resource, error) {
	return defaultEngine.Get().Register(name, cfg)
}

// GetOrRegister returns the existing resource named name, or builds and
// registers one from cfg. See Engine.GetOrRegister.
func GetOrRegister(name string, cfg Config) (*Resource, error) {
	return defaultEngine.Get().GetOrRegister(name, cfg)
}

// Unregister removes and closes the resource named name on the default
// engine, if present.
func Unregister(name string) {
	defaultEngine.Get().Unregister(name)
}

// Bus returns the default engine's notification bus, for subscribing to
// EventSuccess/EventBusy/EventCircuitOpen/etc.
func Bus() *bus.Bus {
	return defaultEngine.Get().Bus()
}

// Shutdown tears down the default engine: stops its tick scheduler and
// closes every registered resource.
func Shutdown() error {
	return defaultEngine.Get().Shutdown()
}
