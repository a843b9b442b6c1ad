package interpreter

import (
	"math"
	"math/bits"

	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/numeric"
	"github.com/wasmium/wasmium/internal/wasmruntime"
)

func f32(bits uint64) float32 { return math.Float32frombits(uint32(bits)) }
func f64(bits uint64) float64 { return math.Float64frombits(bits) }
func bitsOf32(v float32) uint64 { return uint64(math.Float32bits(v)) }
func bitsOf64(v float64) uint64 { return math.Float64bits(v) }

func (ce *callEngine) executeCompare(in ir.Instruction) {
	b := ce.pop()
	a := ce.pop()
	var result bool
	switch in.Type {
	case ir.NumTypeI32:
		if in.Signed {
			result = compareSigned(in.Kind, int64(int32(a)), int64(int32(b)))
		} else {
			result = compareUnsigned(in.Kind, a&0xffffffff, b&0xffffffff)
		}
	case ir.NumTypeI64:
		if in.Signed {
			result = compareSigned(in.Kind, int64(a), int64(b))
		} else {
			result = compareUnsigned(in.Kind, a, b)
		}
	case ir.NumTypeF32:
		result = compareFloat(in.Kind, float64(f32(a)), float64(f32(b)))
	case ir.NumTypeF64:
		result = compareFloat(in.Kind, f64(a), f64(b))
	}
	ce.pushBool(result)
}

func compareSigned(k ir.Kind, a, b int64) bool {
	switch k {
	case ir.KindEq:
		return a == b
	case ir.KindNe:
		return a != b
	case ir.KindLt:
		return a < b
	case ir.KindGt:
		return a > b
	case ir.KindLe:
		return a <= b
	case ir.KindGe:
		return a >= b
	}
	return false
}

func compareUnsigned(k ir.Kind, a, b uint64) bool {
	switch k {
	case ir.KindEq:
		return a == b
	case ir.KindNe:
		return a != b
	case ir.KindLt:
		return a < b
	case ir.KindGt:
		return a > b
	case ir.KindLe:
		return a <= b
	case ir.KindGe:
		return a >= b
	}
	return false
}

func compareFloat(k ir.Kind, a, b float64) bool {
	switch k {
	case ir.KindEq:
		return a == b
	case ir.KindNe:
		return a != b
	case ir.KindLt:
		return a < b
	case ir.KindGt:
		return a > b
	case ir.KindLe:
		return a <= b
	case ir.KindGe:
		return a >= b
	}
	return false
}

func (ce *callEngine) executeBinary(in ir.Instruction) {
	b := ce.pop()
	a := ce.pop()
	switch in.Type {
	case ir.NumTypeI32:
		ce.push(uint64(uint32(binaryI32(in.Kind, uint32(a), uint32(b)))))
	case ir.NumTypeI64:
		ce.push(binaryI64(in.Kind, a, b))
	case ir.NumTypeF32:
		ce.push(bitsOf32(binaryF32(in.Kind, f32(a), f32(b))))
	case ir.NumTypeF64:
		ce.push(bitsOf64(binaryF64(in.Kind, f64(a), f64(b))))
	}
}

func binaryI32(k ir.Kind, a, b uint32) uint32 {
	switch k {
	case ir.KindAdd:
		return a + b
	case ir.KindSub:
		return a - b
	case ir.KindMul:
		return a * b
	case ir.KindDivS:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		sa, sb := int32(a), int32(b)
		if sa == math.MinInt32 && sb == -1 {
			trap(wasmruntime.TrapCodeIntegerOverflow)
		}
		return uint32(sa / sb)
	case ir.KindDivU:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		return a / b
	case ir.KindRemS:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		sa, sb := int32(a), int32(b)
		if sa == math.MinInt32 && sb == -1 {
			return 0
		}
		return uint32(sa % sb)
	case ir.KindRemU:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		return a % b
	case ir.KindAnd:
		return a & b
	case ir.KindOr:
		return a | b
	case ir.KindXor:
		return a ^ b
	case ir.KindShl:
		return a << (b & 31)
	case ir.KindShrS:
		return uint32(int32(a) >> (b & 31))
	case ir.KindShrU:
		return a >> (b & 31)
	case ir.KindRotl:
		return bits.RotateLeft32(a, int(b&31))
	case ir.KindRotr:
		return bits.RotateLeft32(a, -int(b&31))
	}
	panic("interpreter: unhandled i32 binary op")
}

func binaryI64(k ir.Kind, a, b uint64) uint64 {
	switch k {
	case ir.KindAdd:
		return a + b
	case ir.KindSub:
		return a - b
	case ir.KindMul:
		return a * b
	case ir.KindDivS:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		sa, sb := int64(a), int64(b)
		if sa == math.MinInt64 && sb == -1 {
			trap(wasmruntime.TrapCodeIntegerOverflow)
		}
		return uint64(sa / sb)
	case ir.KindDivU:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		return a / b
	case ir.KindRemS:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		sa, sb := int64(a), int64(b)
		if sa == math.MinInt64 && sb == -1 {
			return 0
		}
		return uint64(sa % sb)
	case ir.KindRemU:
		if b == 0 {
			trap(wasmruntime.TrapCodeDivisionByZero)
		}
		return a % b
	case ir.KindAnd:
		return a & b
	case ir.KindOr:
		return a | b
	case ir.KindXor:
		return a ^ b
	case ir.KindShl:
		return a << (b & 63)
	case ir.KindShrS:
		return uint64(int64(a) >> (b & 63))
	case ir.KindShrU:
		return a >> (b & 63)
	case ir.KindRotl:
		return bits.RotateLeft64(a, int(b&63))
	case ir.KindRotr:
		return bits.RotateLeft64(a, -int(b&63))
	}
	panic("interpreter: unhandled i64 binary op")
}

func binaryF32(k ir.Kind, a, b float32) float32 {
	switch k {
	case ir.KindAdd:
		return a + b
	case ir.KindSub:
		return a - b
	case ir.KindMul:
		return a * b
	case ir.KindDivS:
		return a / b
	case ir.KindMin:
		return numeric.WasmCompatMin32(a, b)
	case ir.KindMax:
		return numeric.WasmCompatMax32(a, b)
	case ir.KindCopysign:
		return float32(math.Copysign(float64(a), float64(b)))
	}
	panic("interpreter: unhandled f32 binary op")
}

func binaryF64(k ir.Kind, a, b float64) float64 {
	switch k {
	case ir.KindAdd:
		return a + b
	case ir.KindSub:
		return a - b
	case ir.KindMul:
		return a * b
	case ir.KindDivS:
		return a / b
	case ir.KindMin:
		return numeric.WasmCompatMin(a, b)
	case ir.KindMax:
		return numeric.WasmCompatMax(a, b)
	case ir.KindCopysign:
		return math.Copysign(a, b)
	}
	panic("interpreter: unhandled f64 binary op")
}

func (ce *callEngine) executeUnary(in ir.Instruction) {
	a := ce.pop()
	switch in.Type {
	case ir.NumTypeI32:
		ce.push(uint64(unaryI32(in.Kind, uint32(a))))
	case ir.NumTypeI64:
		ce.push(unaryI64(in.Kind, a))
	case ir.NumTypeF32:
		ce.push(bitsOf32(unaryF32(in.Kind, f32(a))))
	case ir.NumTypeF64:
		ce.push(bitsOf64(unaryF64(in.Kind, f64(a))))
	}
}

func unaryI32(k ir.Kind, a uint32) uint32 {
	switch k {
	case ir.KindClz:
		return uint32(bits.LeadingZeros32(a))
	case ir.KindCtz:
		return uint32(bits.TrailingZeros32(a))
	case ir.KindPopcnt:
		return numeric.Popcnt32(a)
	}
	panic("interpreter: unhandled i32 unary op")
}

func unaryI64(k ir.Kind, a uint64) uint64 {
	switch k {
	case ir.KindClz:
		return uint64(bits.LeadingZeros64(a))
	case ir.KindCtz:
		return uint64(bits.TrailingZeros64(a))
	case ir.KindPopcnt:
		return numeric.Popcnt64(a)
	}
	panic("interpreter: unhandled i64 unary op")
}

func unaryF32(k ir.Kind, a float32) float32 {
	switch k {
	case ir.KindAbs:
		return float32(math.Abs(float64(a)))
	case ir.KindNeg:
		return -a
	case ir.KindCeil:
		return float32(math.Ceil(float64(a)))
	case ir.KindFloor:
		return float32(math.Floor(float64(a)))
	case ir.KindTrunc:
		return float32(math.Trunc(float64(a)))
	case ir.KindNearest:
		return float32(math.RoundToEven(float64(a)))
	case ir.KindSqrt:
		return float32(math.Sqrt(float64(a)))
	}
	panic("interpreter: unhandled f32 unary op")
}

func unaryF64(k ir.Kind, a float64) float64 {
	switch k {
	case ir.KindAbs:
		return math.Abs(a)
	case ir.KindNeg:
		return -a
	case ir.KindCeil:
		return math.Ceil(a)
	case ir.KindFloor:
		return math.Floor(a)
	case ir.KindTrunc:
		return math.Trunc(a)
	case ir.KindNearest:
		return math.RoundToEven(a)
	case ir.KindSqrt:
		return math.Sqrt(a)
	}
	panic("interpreter: unhandled f64 unary op")
}
