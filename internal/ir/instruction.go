// Package ir defines wasmium's internal instruction set: the compact,
// already-resolved form the translator (internal/compiler) emits and the
// interpreter (internal/interpreter) dispatches. Every branch target is a
// flat instruction index plus DropKeep stack-shuffling metadata computed at
// translation time, so the interpreter never has to re-derive control flow.
package ir

import "github.com/wasmium/wasmium/api"

// Kind discriminates the Instruction union.
type Kind byte

const (
	KindUnreachable Kind = iota
	KindBr
	KindBrIfEqz
	KindBrIfNez
	KindBrTable
	KindReturn
	KindLocalGet
	KindLocalSet
	KindLocalTee
	KindDrop
	KindSelect
	KindGlobalGet
	KindGlobalSet
	KindLoad
	KindLoad8
	KindLoad16
	KindLoad32
	KindStore
	KindStore8
	KindStore16
	KindStore32
	KindMemorySize
	KindMemoryGrow
	KindCall
	KindCallIndirect
	KindConst
	KindEqz
	KindEq
	KindNe
	KindLt
	KindGt
	KindLe
	KindGe
	KindAdd
	KindSub
	KindMul
	KindDivS
	KindDivU
	KindRemS
	KindRemU
	KindAnd
	KindOr
	KindXor
	KindShl
	KindShrS
	KindShrU
	KindRotl
	KindRotr
	KindClz
	KindCtz
	KindPopcnt
	KindAbs
	KindNeg
	KindCeil
	KindFloor
	KindTrunc
	KindNearest
	KindSqrt
	KindMin
	KindMax
	KindCopysign
	KindConvert // cross-type numeric conversion; ConvertOp selects the exact pair
)

// NumType is the runtime representation width/kind an arithmetic
// instruction operates over.
type NumType byte

const (
	NumTypeI32 NumType = iota
	NumTypeI64
	NumTypeF32
	NumTypeF64
)

// ConvertOp selects the source/target pair for KindConvert, since the
// spec's "one variant per (type, op)" would otherwise need dozens of Kinds.
type ConvertOp byte

const (
	ConvertI32WrapI64 ConvertOp = iota
	ConvertI64ExtendI32S
	ConvertI64ExtendI32U
	ConvertI32TruncF32S
	ConvertI32TruncF32U
	ConvertI32TruncF64S
	ConvertI32TruncF64U
	ConvertI64TruncF32S
	ConvertI64TruncF32U
	ConvertI64TruncF64S
	ConvertI64TruncF64U
	ConvertI32TruncSatF32S
	ConvertI32TruncSatF32U
	ConvertI32TruncSatF64S
	ConvertI32TruncSatF64U
	ConvertI64TruncSatF32S
	ConvertI64TruncSatF32U
	ConvertI64TruncSatF64S
	ConvertI64TruncSatF64U
	ConvertF32ConvertI32S
	ConvertF32ConvertI32U
	ConvertF32ConvertI64S
	ConvertF32ConvertI64U
	ConvertF64ConvertI32S
	ConvertF64ConvertI32U
	ConvertF64ConvertI64S
	ConvertF64ConvertI64U
	ConvertF32DemoteF64
	ConvertF64PromoteF32
	ConvertI32ReinterpretF32
	ConvertI64ReinterpretF64
	ConvertF32ReinterpretI32
	ConvertF64ReinterpretI64
	ConvertI32Extend8S
	ConvertI32Extend16S
	ConvertI64Extend8S
	ConvertI64Extend16S
	ConvertI64Extend32S
)

// DropKeep is the stack-shuffling metadata attached to every control
// transfer that may leave junk operands on the stack: drop junk operands,
// then keep the arity-many result values on top of them.
//
// Invariant: Keep is 0 or 1 for MVP single-value blocks/functions, and the
// declared result arity for multi-value blocks.
type DropKeep struct {
	Drop int
	Keep int
}

// Target is a resolved branch target: an absolute instruction index plus
// the DropKeep to apply when taking it.
type Target struct {
	InstructionIndex int
	DropKeep         DropKeep
}

// Instruction is one already-lowered step of the internal instruction
// stream. Like the interpreter's runtime stack, this is a tagged union:
// only the fields relevant to Kind are meaningful.
type Instruction struct {
	Kind Kind

	// Control transfer.
	Target  Target
	Targets []Target // KindBrTable: one entry per case, then the default last.

	// LocalGet/Set/Tee, GlobalGet/Set.
	Index uint32

	// Load/Store.
	Offset  uint32
	ValType NumType
	Signed  bool // Load8/16/32 sign- vs zero-extension.

	// Call/CallIndirect.
	FuncIndex  uint32
	TypeIndex  uint32
	TableIndex uint32

	// Const.
	ConstValue uint64

	// Arithmetic/compare/convert.
	Type    NumType
	Convert ConvertOp

	// Return.
	DropKeep DropKeep
}

// ValueTypeToNumType maps an api.ValueType to its NumType.
func ValueTypeToNumType(vt api.ValueType) NumType {
	switch vt {
	case api.ValueTypeI32:
		return NumTypeI32
	case api.ValueTypeI64:
		return NumTypeI64
	case api.ValueTypeF32:
		return NumTypeF32
	default:
		return NumTypeF64
	}
}
