package api

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeI32RoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, math.MinInt32, math.MaxInt32} {
		assert.Equal(t, v, int32(uint32(EncodeI32(v))))
	}
}

func TestEncodeDecodeF32PreservesNaNPayload(t *testing.T) {
	bits := uint32(0x7fc00001)
	nan := math.Float32frombits(bits)
	encoded := EncodeF32(nan)
	decoded := DecodeF32(encoded)
	assert.Equal(t, bits, math.Float32bits(decoded))
}

func TestEncodeDecodeF64PreservesNaNPayload(t *testing.T) {
	bits := uint64(0x7ff8000000000001)
	nan := math.Float64frombits(bits)
	encoded := EncodeF64(nan)
	decoded := DecodeF64(encoded)
	assert.Equal(t, bits, math.Float64bits(decoded))
}

func TestValueTypeName(t *testing.T) {
	assert.Equal(t, "i32", ValueTypeName(ValueTypeI32))
	assert.Equal(t, "i64", ValueTypeName(ValueTypeI64))
	assert.Equal(t, "f32", ValueTypeName(ValueTypeF32))
	assert.Equal(t, "f64", ValueTypeName(ValueTypeF64))
	assert.Equal(t, "unknown", ValueTypeName(0xff))
}
