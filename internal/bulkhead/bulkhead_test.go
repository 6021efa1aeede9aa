package bulkhead

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPanicsOnZeroTickets(t *testing.T) {
	assert.Panics(t, func() { New(Config{Tickets: 0}) })
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	bh := New(Config{Tickets: 2})
	require.NoError(t, bh.Acquire(context.Background()))
	assert.Equal(t, 1, bh.Active())
	assert.True(t, bh.InUse())

	bh.Release()
	assert.Equal(t, 0, bh.Active())
	assert.False(t, bh.InUse())
}

func TestNonBlockingAcquireFailsWhenFull(t *testing.T) {
	bh := New(Config{Tickets: 1})
	require.NoError(t, bh.Acquire(context.Background()))

	err := bh.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestBlockingAcquireWaitsForFreeSlot(t *testing.T) {
	bh := New(Config{Tickets: 1})
	require.NoError(t, bh.Acquire(context.Background()))

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err = bh.Acquire(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	bh.Release()
	wg.Wait()
	assert.NoError(t, err)
}

func TestBlockingAcquireTimesOut(t *testing.T) {
	bh := New(Config{Tickets: 1})
	require.NoError(t, bh.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBusy)
}
