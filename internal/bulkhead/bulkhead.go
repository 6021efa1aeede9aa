// Package bulkhead implements the concrete in-process Bulkhead: a buffered
// channel of tickets capping concurrent access to a protected resource.
package bulkhead

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned by Acquire when no slot freed up before ctx's
// deadline (or immediately, if ctx carries no deadline).
var ErrBusy = errors.New("bulkhead: no slot available")

// Config configures a Bulkhead.
type Config struct {
	// Name identifies the bulkhead for diagnostics.
	Name string

	// Tickets is the number of concurrent slots. Required, must be > 0.
	Tickets int
}

// Bulkhead caps the number of concurrent callers holding a ticket.
type Bulkhead struct {
	name    string
	tickets chan struct{}

	mu      sync.Mutex
	active  int
	waiting int
}

// New creates a Bulkhead. Panics if cfg.Tickets <= 0 — construction-time
// misconfiguration, matching the rest of this package family's
// panic-on-bad-configuration convention.
func New(cfg Config) *Bulkhead {
	if cfg.Tickets <= 0 {
		panic("bulkhead: Tickets must be > 0")
	}
	return &Bulkhead{
		name:    cfg.Name,
		tickets: make(chan struct{}, cfg.Tickets),
	}
}

// Acquire reserves one ticket. If ctx carries a deadline, Acquire blocks up
// to it; if ctx carries none, Acquire makes a single non-blocking attempt
// and returns ErrBusy immediately if no ticket is free.
func (bh *Bulkhead) Acquire(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		select {
		case bh.tickets <- struct{}{}:
			bh.mu.Lock()
			bh.active++
			bh.mu.Unlock()
			return nil
		default:
			return ErrBusy
		}
	}

	bh.mu.Lock()
	bh.waiting++
	bh.mu.Unlock()
	defer func() {
		bh.mu.Lock()
		bh.waiting--
		bh.mu.Unlock()
	}()

	select {
	case bh.tickets <- struct{}{}:
		bh.mu.Lock()
		bh.active++
		bh.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ErrBusy
	}
}

// Release returns a previously acquired ticket.
func (bh *Bulkhead) Release() {
	select {
	case <-bh.tickets:
		bh.mu.Lock()
		bh.active--
		bh.mu.Unlock()
	default:
	}
}

// InUse reports whether any ticket is currently held.
func (bh *Bulkhead) InUse() bool {
	bh.mu.Lock()
	defer bh.mu.Unlock()
	return bh.active > 0
}

// Active returns the number of tickets currently held.
func (bh *Bulkhead) Active() int {
	bh.mu.Lock()
	defer bh.mu.Unlock()
	return bh.active
}

// Waiting returns the number of callers currently blocked on Acquire.
func (bh *Bulkhead) Waiting() int {
	bh.mu.Lock()
	defer bh.mu.Unlock()
	return bh.waiting
}

// Close is a no-op satisfying the shared lifecycle contract; a bulkhead
// owns no background goroutines to stop.
func (bh *Bulkhead) Close() error { return nil }
