package quantile

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalidQuantile(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	_, err = New(1)
	assert.Error(t, err)
}

func TestEstimateEmptyReturnsNoData(t *testing.T) {
	p, err := New(0.5)
	require.NoError(t, err)

	_, err = p.Estimate()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestEstimateFewerThanFiveIsExactOrderStatistic(t *testing.T) {
	p, err := New(0.5)
	require.NoError(t, err)

	for _, x := range []float64{3, 1, 2} {
		p.Observe(x)
	}

	est, err := p.Estimate()
	require.NoError(t, err)
	assert.Equal(t, 2.0, est)
}

func TestMarkersStayMonotonic(t *testing.T) {
	p, err := New(0.5)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		p.Observe(rng.NormFloat64()*10 + 50)
	}

	markers := p.Markers()
	positions := p.Positions()
	for i := 1; i < numMarkers; i++ {
		assert.LessOrEqualf(t, markers[i-1], markers[i], "marker %d out of order", i)
		assert.LessOrEqualf(t, positions[i-1], positions[i], "position %d out of order", i)
	}
}

func TestEstimateConvergesNearTrueQuantile(t *testing.T) {
	p, err := New(0.9)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20000; i++ {
		p.Observe(rng.Float64())
	}

	est, err := p.Estimate()
	require.NoError(t, err)
	assert.InDelta(t, 0.9, est, 0.03)
}

func TestResetClearsState(t *testing.T) {
	p, err := New(0.5)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		p.Observe(float64(i))
	}
	p.Reset()

	_, err = p.Estimate()
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, 0, p.Count())
}

func TestQuantileOfConstantStream(t *testing.T) {
	p, err := New(0.5)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		p.Observe(7)
	}

	est, err := p.Estimate()
	require.NoError(t, err)
	assert.True(t, math.Abs(est-7) < 1e-9)
}
