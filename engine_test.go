package resiliencecore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestRegisterAndAcquire(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Shutdown()

	resource, err := e.Register("svc", Config{
		Name:                  "svc",
		ErrorThreshold:        2,
		ErrorThresholdTimeout: time.Second,
		ErrorTimeout:          time.Minute,
		SuccessThreshold:      1,
	})
	require.NoError(t, err)

	result, err := resource.Acquire(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestGetOrRegisterReturnsSameResource(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Shutdown()

	a, err := e.GetOrRegister("svc", Config{Name: "svc"})
	require.NoError(t, err)
	b, err := e.GetOrRegister("svc", Config{Name: "svc"})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestGetOrRegisterRejectsInvalidConfig(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Shutdown()

	_, err := e.GetOrRegister("svc", Config{Name: "svc", DualCircuitBreaker: true})
	assert.ErrorIs(t, err, ErrSelectorRequired)
}

func TestUnregisterFreesNameForReRegistration(t *testing.T) {
	e := NewEngine(EngineConfig{})
	defer e.Shutdown()

	_, err := e.Register("svc", Config{Name: "svc"})
	require.NoError(t, err)
	e.Unregister("svc")

	_, err = e.GetOrRegister("svc", Config{Name: "svc"})
	require.NoError(t, err)
}

func TestDisableAllEnvCollapsesToPassthrough(t *testing.T) {
	t.Setenv("RESILIENCE_DISABLE_ALL", "1")

	e := NewEngine(EngineConfig{})
	defer e.Shutdown()

	resource, err := e.Register("svc", Config{
		Name:                  "svc",
		ErrorThreshold:        1,
		ErrorThresholdTimeout: time.Second,
		ErrorTimeout:          time.Hour,
		SuccessThreshold:      1,
		Bulkhead:              true,
		Tickets:               1,
	})
	require.NoError(t, err)

	_, err = resource.Acquire(context.Background(), func(context.Context) (any, error) {
		return nil, errBoom
	})
	require.Error(t, err)
	assert.True(t, resource.Closed())
}

func TestDefaultEngineFacadeFunctions(t *testing.T) {
	name := "facade-test-resource"
	resource, err := Register(name, Config{Name: name})
	require.NoError(t, err)

	result, err := resource.Acquire(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	Unregister(name)
}
