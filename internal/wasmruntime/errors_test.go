package wasmruntime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndIsResumable(t *testing.T) {
	err := New(TrapCodeDivisionByZero)
	assert.Equal(t, TrapCodeDivisionByZero, err.Code)
	assert.True(t, err.Resumable)
}

func TestNewfWrapsFormattedMessage(t *testing.T) {
	err := Newf(TrapCodeMemoryAccessOutOfBounds, "offset %d exceeds %d", 10, 4)
	assert.Contains(t, err.Error(), "offset 10 exceeds 4")
	assert.Equal(t, TrapCodeMemoryAccessOutOfBounds, err.Code)
}

func TestSentinelsAreDistinguishableByErrorsAs(t *testing.T) {
	var target *Error
	ok := errors.As(ErrRuntimeIntegerDivideByZero, &target)
	require.True(t, ok)
	assert.Equal(t, TrapCodeDivisionByZero, target.Code)
}

func TestFatalIsNotResumable(t *testing.T) {
	err := Fatal("integration bug: %s", "bad state")
	assert.False(t, err.Resumable)
	assert.Contains(t, err.Error(), "integration bug: bad state")
}
