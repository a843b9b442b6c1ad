package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, min uint32, max *uint32) *MemoryInstance {
	t.Helper()
	m, err := NewMemoryInstance(&MemoryType{Min: min, Max: max})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	require.True(t, m.WriteUint32Le(0, 0xdeadbeef))
	v, ok := m.ReadUint32Le(0)
	require.True(t, ok)
	assert.Equal(t, uint32(0xdeadbeef), v)

	require.True(t, m.WriteUint64Le(8, 0x0102030405060708))
	v64, ok := m.ReadUint64Le(8)
	require.True(t, ok)
	assert.Equal(t, uint64(0x0102030405060708), v64)
}

func TestMemoryFloatRoundTripPreservesNaNPayload(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	// A NaN with a specific, non-canonical payload: plain float64(NaN)
	// conversions must not normalize this, since Wasm requires bit-exact
	// reinterpretation through memory.
	bits := uint64(0x7ff8000000000001)
	nan := math.Float64frombits(bits)

	require.True(t, m.WriteFloat64Le(0, nan))
	got, ok := m.ReadFloat64Le(0)
	require.True(t, ok)
	assert.Equal(t, bits, math.Float64bits(got))
}

func TestMemoryOutOfBoundsAccessFails(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	_, ok := m.ReadUint32Le(MemoryPageSize - 3)
	assert.False(t, ok)

	ok = m.WriteByte(MemoryPageSize, 1)
	assert.False(t, ok)
}

func TestMemoryGrowExtendsLiveWindowWithoutRealloc(t *testing.T) {
	max := uint32(4)
	m := newTestMemory(t, 1, &max)

	prev, ok := m.Grow(2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), prev)
	assert.Equal(t, uint32(3), m.PageSize())

	// Now in bounds after growth.
	assert.True(t, m.WriteByte(2*MemoryPageSize, 0xff))
}

func TestMemoryGrowBeyondMaxFails(t *testing.T) {
	max := uint32(1)
	m := newTestMemory(t, 1, &max)

	_, ok := m.Grow(1)
	assert.False(t, ok)
	assert.Equal(t, uint32(1), m.PageSize())
}

func TestMemoryZeroLengthReadAtBoundaryIsInBounds(t *testing.T) {
	m := newTestMemory(t, 1, nil)
	_, ok := m.Read(MemoryPageSize, 0)
	assert.True(t, ok)
}
