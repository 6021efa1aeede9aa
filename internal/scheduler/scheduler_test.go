package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingUpdatable struct {
	calls atomic.Int64
}

func (c *countingUpdatable) Update() { c.calls.Add(1) }

type panickingUpdatable struct{}

func (panickingUpdatable) Update() { panic("boom") }

func TestTicksRegisteredUpdatables(t *testing.T) {
	s := New(5 * time.Millisecond)
	u := &countingUpdatable{}
	s.Register(u)
	s.Start()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, u.calls.Load(), int64(0))
}

func TestUnregisterStopsTicks(t *testing.T) {
	s := New(5 * time.Millisecond)
	u := &countingUpdatable{}
	h := s.Register(u)
	s.Start()
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	s.Unregister(h)
	seen := u.calls.Load()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, seen, u.calls.Load())
}

func TestPanicInUpdateDoesNotStopScheduler(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Register(panickingUpdatable{})
	u := &countingUpdatable{}
	s.Register(u)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return u.calls.Load() > 0
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestStopIsIdempotentAndBlocksUntilExit(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Start()
	s.Stop()
	assert.NotPanics(t, func() { s.Stop() })
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	s := New(time.Second)
	assert.NotPanics(t, func() { s.Stop() })
}
