package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMarksCircuitsIgnoresNilAndCancellation(t *testing.T) {
	assert.False(t, DefaultMarksCircuits(nil))
	assert.False(t, DefaultMarksCircuits(context.Canceled))
	assert.True(t, DefaultMarksCircuits(errors.New("boom")))
}

func TestAdapterErrorUnwrapsBoth(t *testing.T) {
	reason := errors.New("open")
	cause := errors.New("timeout")
	err := Wrap(reason, cause)

	assert.ErrorIs(t, err, reason)
	assert.ErrorIs(t, err, cause)
}

func TestAdapterErrorWithoutCause(t *testing.T) {
	reason := errors.New("open")
	err := Wrap(reason, nil)

	assert.ErrorIs(t, err, reason)
	assert.Equal(t, "open", err.Error())
}
