package smoother

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validAlphas() Alphas {
	return Alphas{LowUp: 0.3, LowDown: 0.4, HighUp: 0.15, HighDown: 0.2}
}

func TestNewPanicsOnInvalidAlphas(t *testing.T) {
	assert.Panics(t, func() {
		New(Alphas{LowUp: 0.6, LowDown: 0.4, HighUp: 0.15, HighDown: 0.2}, 30, 1)
	})
	assert.Panics(t, func() {
		New(Alphas{LowUp: 0, LowDown: 0.4, HighUp: 0.15, HighDown: 0.2}, 30, 1)
	})
}

func TestFirstObservationSeedsEstimate(t *testing.T) {
	s := New(validAlphas(), 5, 1.0)
	s.Observe(0.2)

	est, ok := s.Estimate()
	assert.True(t, ok)
	assert.Equal(t, 0.2, est)
}

func TestObservationAboveCapIsDropped(t *testing.T) {
	s := New(validAlphas(), 5, 0.5)
	s.Observe(0.1)
	before, _ := s.Estimate()

	s.Observe(10.0) // way above cap

	after, _ := s.Estimate()
	assert.Equal(t, before, after)
	assert.Equal(t, 1, s.Count())
}

func TestDownwardConvergesFasterThanUpward(t *testing.T) {
	alphas := Alphas{LowUp: 0.1, LowDown: 0.4, HighUp: 0.1, HighDown: 0.4}

	up := New(alphas, 1000, 1.0)
	up.Observe(0.1)
	up.Observe(0.5) // spike up

	down := New(alphas, 1000, 1.0)
	down.Observe(0.5)
	down.Observe(0.1) // spike down

	upEst, _ := up.Estimate()
	downEst, _ := down.Estimate()

	upMove := upEst - 0.1
	downMove := 0.5 - downEst

	assert.Greater(t, downMove, upMove, "downward move should be larger given DownAlpha > UpAlpha")
}

func TestHighConfidenceAlphaIsSmaller(t *testing.T) {
	alphas := Alphas{LowUp: 0.3, LowDown: 0.3, HighUp: 0.1, HighDown: 0.1}

	s := New(alphas, 2, 1.0)
	s.Observe(0.1) // seeds, count=1
	s.Observe(0.1) // low confidence still (count=1 < threshold=2), count=2
	// Now count == confidenceThreshold, next observation uses high-confidence alpha.
	before, _ := s.Estimate()
	s.Observe(0.9)
	after, _ := s.Estimate()

	moveHigh := after - before

	s2 := New(Alphas{LowUp: 0.3, LowDown: 0.3, HighUp: 0.1, HighDown: 0.1}, 100000, 1.0)
	s2.Observe(0.1)
	s2.Observe(0.1)
	before2, _ := s2.Estimate()
	s2.Observe(0.9)
	after2, _ := s2.Estimate()
	moveLow := after2 - before2

	assert.Less(t, moveHigh, moveLow)
}

func TestResetClearsState(t *testing.T) {
	s := New(validAlphas(), 5, 1.0)
	s.Observe(0.3)
	s.Reset()

	_, ok := s.Estimate()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Count())
}
