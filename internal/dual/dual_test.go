package dual

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/resiliencecore/internal/adaptive"
	"github.com/vnykmshr/resiliencecore/internal/breaker"
	"github.com/vnykmshr/resiliencecore/internal/bus"
	"github.com/vnykmshr/resiliencecore/internal/pid"
	"github.com/vnykmshr/resiliencecore/internal/quantile"
)

type passthroughEstimator struct{ q *quantile.P2 }

func (p passthroughEstimator) Observe(x float64)          { p.q.Observe(x) }
func (p passthroughEstimator) Estimate() (float64, error) { return p.q.Estimate() }

func newChildren(t *testing.T) (*breaker.CircuitBreaker, *adaptive.Breaker) {
	t.Helper()
	cb := breaker.New(breaker.Config{
		Name:                  "test",
		ErrorThreshold:        3,
		ErrorThresholdTimeout: time.Minute,
		ErrorTimeout:          50 * time.Millisecond,
		SuccessThreshold:      2,
	})
	q, err := quantile.New(0.5)
	require.NoError(t, err)
	ab := adaptive.New(adaptive.Config{
		Name: "test",
		PID: pid.Config{
			Window:    time.Second,
			Kp:        0.5,
			Estimator: passthroughEstimator{q: q},
		},
	}, nil)
	return cb, ab
}

var errBoom = errors.New("boom")

func TestDefaultSelectorUsesClassic(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{Name: "test"}, cb, ab)

	_, err := d.Acquire(context.Background(), func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)

	assert.EqualValues(t, 1, cb.Counts().Requests)
}

func TestSelectorRoutesToAdaptive(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{Name: "test", Selector: func(string) bool { return false }}, cb, ab)

	_, err := d.Acquire(context.Background(), func(context.Context) (any, error) { return "ok", nil })
	require.NoError(t, err)

	// Outcomes fan out to both children regardless of which one gated the
	// call, so the classic child still observes the request.
	assert.EqualValues(t, 1, cb.Counts().Requests)
	assert.EqualValues(t, 1, ab.Metrics().Successes)
}

func TestSiblingReceivesSameOutcome(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{Name: "test"}, cb, ab) // classic active

	_, err := d.Acquire(context.Background(), func(context.Context) (any, error) { return nil, errBoom })
	require.ErrorIs(t, err, errBoom)

	assert.EqualValues(t, 1, cb.Counts().TotalFailures)
	abMetrics := ab.Metrics()
	assert.EqualValues(t, 1, abMetrics.Errors)
}

func TestPanickingSelectorDefaultsToClassic(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{
		Name:     "test",
		Selector: func(string) bool { panic("boom") },
	}, cb, ab)

	assert.NotPanics(t, func() {
		d.Acquire(context.Background(), func(context.Context) (any, error) { return "ok", nil })
	})
	assert.EqualValues(t, 1, cb.Counts().Requests)
}

func TestModeChangeEmitsEvent(t *testing.T) {
	cb, ab := newChildren(t)
	b := bus.New()
	useClassic := true
	d := New(Config{
		Name:     "test",
		Bus:      b,
		Selector: func(string) bool { return useClassic },
	}, cb, ab)

	var events []bus.Event
	b.Subscribe("test", func(e bus.Event) { events = append(events, e) })

	d.Acquire(context.Background(), func(context.Context) (any, error) { return "ok", nil })
	useClassic = false
	d.Acquire(context.Background(), func(context.Context) (any, error) { return "ok", nil })

	require.Len(t, events, 1)
	assert.Equal(t, bus.EventModeChange, events[0].Kind)
	assert.Equal(t, "classic", events[0].OldKind)
	assert.Equal(t, "adaptive", events[0].NewKind)
}

func TestMarkSuccessFansOutToBoth(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{Name: "test"}, cb, ab)

	d.MarkSuccess()

	assert.EqualValues(t, 1, cb.Counts().TotalSuccesses)
	assert.EqualValues(t, 1, ab.Metrics().Successes)
}

func TestResetResetsBothChildren(t *testing.T) {
	cb, ab := newChildren(t)
	d := New(Config{Name: "test"}, cb, ab)
	cb.MarkFailed(errBoom)
	cb.MarkFailed(errBoom)
	cb.MarkFailed(errBoom)
	require.True(t, cb.Open())

	d.Reset()
	assert.True(t, cb.Closed())
}
