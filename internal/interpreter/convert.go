package interpreter

import (
	"math"

	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/numeric"
	"github.com/wasmium/wasmium/internal/wasmruntime"
)

// executeConvert dispatches a KindConvert instruction: every cross-type
// numeric conversion (wrap, extend, trunc, trunc_sat, convert, demote,
// promote, reinterpret, sign-extension) goes through here, keyed by
// ir.ConvertOp.
func (ce *callEngine) executeConvert(in ir.Instruction) {
	a := ce.pop()
	switch in.Convert {
	case ir.ConvertI32WrapI64:
		ce.push(uint64(uint32(a)))
	case ir.ConvertI64ExtendI32S:
		ce.push(uint64(int64(int32(a))))
	case ir.ConvertI64ExtendI32U:
		ce.push(uint64(uint32(a)))

	case ir.ConvertI32TruncF32S:
		ce.pushTrunc32S(float64(f32(a)))
	case ir.ConvertI32TruncF32U:
		ce.pushTrunc32U(float64(f32(a)))
	case ir.ConvertI32TruncF64S:
		ce.pushTrunc32S(f64(a))
	case ir.ConvertI32TruncF64U:
		ce.pushTrunc32U(f64(a))
	case ir.ConvertI64TruncF32S:
		ce.pushTrunc64S(float64(f32(a)))
	case ir.ConvertI64TruncF32U:
		ce.pushTrunc64U(float64(f32(a)))
	case ir.ConvertI64TruncF64S:
		ce.pushTrunc64S(f64(a))
	case ir.ConvertI64TruncF64U:
		ce.pushTrunc64U(f64(a))

	case ir.ConvertI32TruncSatF32S:
		ce.push(uint64(uint32(numeric.TruncSatToInt32S(float64(f32(a))))))
	case ir.ConvertI32TruncSatF32U:
		ce.push(uint64(numeric.TruncSatToInt32U(float64(f32(a)))))
	case ir.ConvertI32TruncSatF64S:
		ce.push(uint64(uint32(numeric.TruncSatToInt32S(f64(a)))))
	case ir.ConvertI32TruncSatF64U:
		ce.push(uint64(numeric.TruncSatToInt32U(f64(a))))
	case ir.ConvertI64TruncSatF32S:
		ce.push(uint64(numeric.TruncSatToInt64S(float64(f32(a)))))
	case ir.ConvertI64TruncSatF32U:
		ce.push(numeric.TruncSatToInt64U(float64(f32(a))))
	case ir.ConvertI64TruncSatF64S:
		ce.push(uint64(numeric.TruncSatToInt64S(f64(a))))
	case ir.ConvertI64TruncSatF64U:
		ce.push(numeric.TruncSatToInt64U(f64(a)))

	case ir.ConvertF32ConvertI32S:
		ce.push(bitsOf32(float32(int32(a))))
	case ir.ConvertF32ConvertI32U:
		ce.push(bitsOf32(float32(uint32(a))))
	case ir.ConvertF32ConvertI64S:
		ce.push(bitsOf32(float32(int64(a))))
	case ir.ConvertF32ConvertI64U:
		ce.push(bitsOf32(float32(a)))
	case ir.ConvertF64ConvertI32S:
		ce.push(bitsOf64(float64(int32(a))))
	case ir.ConvertF64ConvertI32U:
		ce.push(bitsOf64(float64(uint32(a))))
	case ir.ConvertF64ConvertI64S:
		ce.push(bitsOf64(float64(int64(a))))
	case ir.ConvertF64ConvertI64U:
		ce.push(bitsOf64(float64(a)))

	case ir.ConvertF32DemoteF64:
		ce.push(bitsOf32(float32(f64(a))))
	case ir.ConvertF64PromoteF32:
		ce.push(bitsOf64(float64(f32(a))))

	case ir.ConvertI32ReinterpretF32:
		ce.push(a & 0xffffffff)
	case ir.ConvertI64ReinterpretF64:
		ce.push(a)
	case ir.ConvertF32ReinterpretI32:
		ce.push(a & 0xffffffff)
	case ir.ConvertF64ReinterpretI64:
		ce.push(a)

	case ir.ConvertI32Extend8S:
		ce.push(uint64(numeric.SignExtend32From8(uint32(a))))
	case ir.ConvertI32Extend16S:
		ce.push(uint64(numeric.SignExtend32From16(uint32(a))))
	case ir.ConvertI64Extend8S:
		ce.push(numeric.SignExtend64From8(a))
	case ir.ConvertI64Extend16S:
		ce.push(numeric.SignExtend64From16(a))
	case ir.ConvertI64Extend32S:
		ce.push(numeric.SignExtend64From32(a))
	}
}

func (ce *callEngine) pushTrunc32S(v float64) {
	r, ok := numeric.TruncToInt32S(v)
	if !ok {
		trapTrunc(v)
	}
	ce.push(uint64(uint32(r)))
}

func (ce *callEngine) pushTrunc32U(v float64) {
	r, ok := numeric.TruncToInt32U(v)
	if !ok {
		trapTrunc(v)
	}
	ce.push(uint64(r))
}

func (ce *callEngine) pushTrunc64S(v float64) {
	r, ok := numeric.TruncToInt64S(v)
	if !ok {
		trapTrunc(v)
	}
	ce.push(uint64(r))
}

func (ce *callEngine) pushTrunc64U(v float64) {
	r, ok := numeric.TruncToInt64U(v)
	if !ok {
		trapTrunc(v)
	}
	ce.push(r)
}

func trapTrunc(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		trap(wasmruntime.TrapCodeInvalidConversionToInt)
	}
	trap(wasmruntime.TrapCodeIntegerOverflow)
}
