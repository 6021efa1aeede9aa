// Package quantile implements the P² algorithm for streaming, O(1)-space
// quantile estimation (Jain & Chlamtac, 1985). It is used by the adaptive
// circuit breaker's PID controller as one of two interchangeable baseline
// estimators for the resource's natural background error rate.
package quantile

import (
	"errors"
	"math"
)

// ErrNoData is returned by Estimate on an estimator that has never observed
// a value.
var ErrNoData = errors.New("quantile: no data observed")

const numMarkers = 5

// P2 estimates a single target quantile from a stream of float64
// observations in O(1) time and space per observation.
//
// Not safe for concurrent use; callers needing concurrency (the PID
// controller) guard it with their own mutex.
type P2 struct {
	q float64

	// h holds the 5 marker heights once N >= 5; before that it holds the
	// raw, sorted observations seen so far (fewer than 5 of them).
	h [numMarkers]float64
	// n holds the 5 marker positions (integer, but kept as float64 to avoid
	// repeated conversions in the update arithmetic).
	n [numMarkers]float64
	// np holds the 5 desired marker positions.
	np [numMarkers]float64

	count int
}

// New creates a P2 estimator for quantile q, which must lie in (0, 1).
func New(q float64) (*P2, error) {
	if q <= 0 || q >= 1 {
		return nil, errors.New("quantile: q must be in (0, 1)")
	}
	return &P2{q: q}, nil
}

// Observe feeds a new value into the estimator.
func (p *P2) Observe(x float64) {
	if p.count < numMarkers {
		p.observeInitial(x)
		return
	}
	p.observeSteadyState(x)
}

// observeInitial handles the first 5 observations: store, keep sorted, and
// on the 5th initialize marker/desired-position state.
func (p *P2) observeInitial(x float64) {
	p.h[p.count] = x
	p.count++

	// Keep the filled prefix sorted (simple insertion sort is fine; numMarkers is tiny).
	for i := p.count - 1; i > 0 && p.h[i-1] > p.h[i]; i-- {
		p.h[i-1], p.h[i] = p.h[i], p.h[i-1]
	}

	if p.count == numMarkers {
		for i := 0; i < numMarkers; i++ {
			p.n[i] = float64(i)
		}
		p.np[0] = 0
		p.np[1] = 2 * p.q
		p.np[2] = 4 * p.q
		p.np[3] = 2 + 2*p.q
		p.np[4] = 4
	}
}

// observeSteadyState implements the standard P² update once 5 or more
// observations have been seen.
func (p *P2) observeSteadyState(x float64) {
	p.count++

	// 1. Find cell k and extend extremes if needed.
	k := p.locateCell(x)

	// 2. Increment n[i] for markers to the right of k.
	for i := k + 1; i < numMarkers; i++ {
		p.n[i]++
	}

	// 3. Update desired positions for the three interior markers.
	dns := [numMarkers]float64{0, p.q / 2, p.q, (1 + p.q) / 2, 1}
	for i := 0; i < numMarkers; i++ {
		p.np[i] = float64(p.count-1) * dns[i]
	}

	// 4. Adjust interior markers.
	for i := 1; i <= 3; i++ {
		d := p.np[i] - p.n[i]
		if (d >= 1 && p.n[i+1]-p.n[i] > 1) || (d <= -1 && p.n[i-1]-p.n[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}
			adjusted := p.parabolic(i, sign)
			if p.h[i-1] < adjusted && adjusted < p.h[i+1] {
				p.h[i] = adjusted
			} else {
				p.h[i] = p.linear(i, sign)
			}
			p.n[i] += sign
		}
	}
}

// locateCell finds the cell k in {0,1,2,3} containing x, extending the min
// (marker 0) or max (marker 4) if x falls outside the current range.
func (p *P2) locateCell(x float64) int {
	switch {
	case x < p.h[0]:
		p.h[0] = x
		return 0
	case x >= p.h[4]:
		p.h[4] = x
		return 3
	default:
		for k := 0; k < numMarkers-1; k++ {
			if p.h[k] <= x && x < p.h[k+1] {
				return k
			}
		}
		return numMarkers - 2
	}
}

// parabolic computes the P² parabolic-prediction adjustment for marker i.
func (p *P2) parabolic(i int, d float64) float64 {
	return p.h[i] + d/(p.n[i+1]-p.n[i-1])*(
		(p.n[i]-p.n[i-1]+d)*(p.h[i+1]-p.h[i])/(p.n[i+1]-p.n[i])+
			(p.n[i+1]-p.n[i]-d)*(p.h[i]-p.h[i-1])/(p.n[i]-p.n[i-1]))
}

// linear computes the fallback linear adjustment for marker i.
func (p *P2) linear(i int, d float64) float64 {
	return p.h[i] + d*(p.h[i+int(d)]-p.h[i])/(p.n[i+int(d)]-p.n[i])
}

// Estimate returns the current estimate of quantile q.
func (p *P2) Estimate() (float64, error) {
	if p.count == 0 {
		return 0, ErrNoData
	}
	if p.count < numMarkers {
		// Exact order statistic: h[0..count-1] is sorted.
		idx := int(math.Round(p.q * float64(p.count-1)))
		return p.h[idx], nil
	}
	return p.h[2], nil
}

// Reset re-initializes all state as if no observations had been made.
func (p *P2) Reset() {
	*p = P2{q: p.q}
}

// Markers returns a copy of the current marker heights, for tests asserting
// monotonicity invariants.
func (p *P2) Markers() [numMarkers]float64 {
	return p.h
}

// Positions returns a copy of the current marker positions, for tests
// asserting monotonicity invariants.
func (p *P2) Positions() [numMarkers]float64 {
	return p.n
}

// Count returns the number of observations seen so far.
func (p *P2) Count() int {
	return p.count
}
