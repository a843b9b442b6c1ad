// Package numeric holds the NaN-preserving float helpers and integer
// conversion primitives shared by the translator and the interpreter. None
// of it depends on the rest of wasmium, so it is safe to vendor or test in
// isolation.
package numeric

import (
	"math"
	"math/bits"
)

// WasmCompatMin mirrors the "min" instruction: math.Min doesn't comply with
// the Wasm spec (it doesn't make NaN win over -Inf), so we special-case it.
//
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax mirrors the "max" instruction, analogous to WasmCompatMin.
//
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatMin32 is the float32 analogue of WasmCompatMin.
func WasmCompatMin32(x, y float32) float32 {
	return float32(WasmCompatMin(float64(x), float64(y)))
}

// WasmCompatMax32 is the float32 analogue of WasmCompatMax.
func WasmCompatMax32(x, y float32) float32 {
	return float32(WasmCompatMax(float64(x), float64(y)))
}

// SignExtend32From8 sign-extends the low 8 bits of v across the rest of a
// 32-bit word, implementing i32.extend8_s.
func SignExtend32From8(v uint32) uint32 { return uint32(int32(int8(v))) }

// SignExtend32From16 implements i32.extend16_s.
func SignExtend32From16(v uint32) uint32 { return uint32(int32(int16(v))) }

// SignExtend64From8 implements i64.extend8_s.
func SignExtend64From8(v uint64) uint64 { return uint64(int64(int8(v))) }

// SignExtend64From16 implements i64.extend16_s.
func SignExtend64From16(v uint64) uint64 { return uint64(int64(int16(v))) }

// SignExtend64From32 implements i64.extend32_s.
func SignExtend64From32(v uint64) uint64 { return uint64(int64(int32(v))) }

// Popcnt32 implements i32.popcnt.
func Popcnt32(v uint32) uint32 { return uint32(bits.OnesCount32(v)) }

// Popcnt64 implements i64.popcnt.
func Popcnt64(v uint64) uint64 { return uint64(bits.OnesCount64(v)) }

// TruncToInt32S implements the trapping i32.trunc_f{32,64}_s. ok is false
// when v is NaN/Inf (InvalidConversionToInt) or out of i32 range
// (IntegerOverflow); the caller distinguishes the two by checking IsNaN/Inf
// first.
func TruncToInt32S(v float64) (result int32, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < math.MinInt32 || t > math.MaxInt32 {
		return 0, false
	}
	return int32(t), true
}

// TruncToInt32U implements the trapping i32.trunc_f{32,64}_u.
func TruncToInt32U(v float64) (result uint32, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < 0 || t > math.MaxUint32 {
		return 0, false
	}
	return uint32(t), true
}

// TruncToInt64S implements the trapping i64.trunc_f{32,64}_s.
func TruncToInt64S(v float64) (result int64, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		// The upper bound uses >= because MaxInt64 is not exactly
		// representable as a float64; the nearest representable value above
		// the true max already overflows.
		if t < math.MinInt64 || t >= 9223372036854775808.0 {
			return 0, false
		}
	}
	return int64(t), true
}

// TruncToInt64U implements the trapping i64.trunc_f{32,64}_u.
func TruncToInt64U(v float64) (result uint64, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < 0 || t >= 18446744073709551616.0 {
		return 0, false
	}
	return uint64(t), true
}

// TruncSatToInt32S implements the non-trapping i32.trunc_sat_f{32,64}_s.
func TruncSatToInt32S(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	switch {
	case t < math.MinInt32:
		return math.MinInt32
	case t > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(t)
	}
}

// TruncSatToInt32U implements the non-trapping i32.trunc_sat_f{32,64}_u.
func TruncSatToInt32U(v float64) uint32 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	t := math.Trunc(v)
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t)
}

// TruncSatToInt64S implements the non-trapping i64.trunc_sat_f{32,64}_s.
func TruncSatToInt64S(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	switch {
	case t < math.MinInt64:
		return math.MinInt64
	case t >= 9223372036854775808.0:
		return math.MaxInt64
	default:
		return int64(t)
	}
}

// TruncSatToInt64U implements the non-trapping i64.trunc_sat_f{32,64}_u.
func TruncSatToInt64U(v float64) uint64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	t := math.Trunc(v)
	if t >= 18446744073709551616.0 {
		return math.MaxUint64
	}
	return uint64(t)
}
