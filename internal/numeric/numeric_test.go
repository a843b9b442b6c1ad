package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWasmCompatMin(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"nan wins over number", math.NaN(), 1, math.NaN()},
		{"nan wins over inf", math.Inf(1), math.NaN(), math.NaN()},
		{"negative inf dominates", math.Inf(-1), 5, math.Inf(-1)},
		{"negative zero below positive zero", math.Copysign(0, -1), 0, math.Copysign(0, -1)},
		{"ordinary", 3, 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WasmCompatMin(tt.x, tt.y)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, math.Signbit(tt.want), math.Signbit(got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWasmCompatMax(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"nan wins over number", math.NaN(), 1, math.NaN()},
		{"positive inf dominates", math.Inf(1), 5, math.Inf(1)},
		{"positive zero above negative zero", 0, math.Copysign(0, -1), 0},
		{"ordinary", 3, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WasmCompatMax(tt.x, tt.y)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, math.Signbit(tt.want), math.Signbit(got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, uint32(0xffffffff), SignExtend32From8(0xff))
	assert.Equal(t, uint32(0x0000007f), SignExtend32From8(0x7f))
	assert.Equal(t, uint32(0xffff8000), SignExtend32From16(0x8000))
	assert.Equal(t, uint64(0xffffffffffffffff), SignExtend64From8(0xff))
	assert.Equal(t, uint64(0xffffffffffff8000), SignExtend64From16(0x8000))
	assert.Equal(t, uint64(0xffffffff80000000), SignExtend64From32(0x80000000))
}

func TestPopcnt(t *testing.T) {
	assert.Equal(t, uint32(8), Popcnt32(0xff))
	assert.Equal(t, uint64(32), Popcnt64(0xffffffff))
}

func TestTruncToInt32S(t *testing.T) {
	v, ok := TruncToInt32S(3.9)
	require.True(t, ok)
	assert.Equal(t, int32(3), v)

	_, ok = TruncToInt32S(math.NaN())
	assert.False(t, ok)

	_, ok = TruncToInt32S(1 << 40)
	assert.False(t, ok)
}

func TestTruncSatToInt32S(t *testing.T) {
	assert.Equal(t, int32(0), TruncSatToInt32S(math.NaN()))
	assert.Equal(t, int32(math.MaxInt32), TruncSatToInt32S(1e20))
	assert.Equal(t, int32(math.MinInt32), TruncSatToInt32S(-1e20))
	assert.Equal(t, int32(3), TruncSatToInt32S(3.9))
}

func TestTruncSatToInt64U(t *testing.T) {
	assert.Equal(t, uint64(0), TruncSatToInt64U(-1))
	assert.Equal(t, uint64(math.MaxUint64), TruncSatToInt64U(1e20))
	assert.Equal(t, uint64(42), TruncSatToInt64U(42.7))
}
