package breaker

import "time"

// Metrics is a point-in-time snapshot of a circuit breaker's state, counts,
// and derived rates, for dashboards and health checks.
type Metrics struct {
	State          State
	Counts         Counts
	FailureRate    float64
	SuccessRate    float64
	StateChangedAt time.Time
	OpenedAt       time.Time
}

// Metrics returns a snapshot of the breaker's current metrics. Like Counts,
// it is built from a single locked read, so the fields it reports are
// mutually consistent even while the breaker is handling concurrent
// traffic.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	counts := Counts{
		Requests:             cb.requests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		ConsecutiveSuccesses: cb.consecSuccesses,
		ConsecutiveFailures:  cb.consecFailures,
	}
	stateChangedAt := cb.stateChangedAt
	openedAt := cb.openedAt
	cb.mu.Unlock()

	var failureRate, successRate float64
	if counts.Requests > 0 {
		failureRate = float64(counts.TotalFailures) / float64(counts.Requests)
		successRate = float64(counts.TotalSuccesses) / float64(counts.Requests)
	}

	return Metrics{
		State:          cb.State(),
		Counts:         counts,
		FailureRate:    failureRate,
		SuccessRate:    successRate,
		StateChangedAt: stateChangedAt,
		OpenedAt:       openedAt,
	}
}
