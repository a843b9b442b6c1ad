package compiler

import (
	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

// numOp describes how a single-byte numeric opcode lowers into an
// ir.Instruction: which Kind, which operand width, whether it is unary
// (one pop, one push) or binary (two pops, one push), and whether its
// result is always i32 regardless of operand type (comparisons, eqz).
type numOp struct {
	kind      ir.Kind
	typ       ir.NumType
	binary    bool
	resultI32 bool
	// signed distinguishes the signed/unsigned halves of a comparison whose
	// Kind doesn't otherwise encode it (Lt/Gt/Le/Ge; Div/Rem/Shr already have
	// separate S/U Kinds).
	signed bool
}

// numOpTable maps every comparison/arithmetic opcode to its numOp. Built
// once at package init instead of hand-written per-opcode switch cases,
// since the 1:1 correspondence between Wasm's per-type opcode families and
// ir's type-parameterized Kinds makes a table mechanical to construct and
// much harder to typo than ~120 repeated case arms.
var numOpTable map[binary.Opcode]numOp

func init() {
	numOpTable = map[binary.Opcode]numOp{}
	add := func(op binary.Opcode, kind ir.Kind, typ ir.NumType, isBinary, resultI32 bool) {
		numOpTable[op] = numOp{kind: kind, typ: typ, binary: isBinary, resultI32: resultI32}
	}
	addSigned := func(op binary.Opcode, kind ir.Kind, typ ir.NumType, signed bool) {
		numOpTable[op] = numOp{kind: kind, typ: typ, binary: true, resultI32: true, signed: signed}
	}

	type fam struct {
		eqz, eq, ne, ltS, ltU, gtS, gtU, leS, leU, geS, geU binary.Opcode
	}
	i32fam := fam{binary.OpcodeI32Eqz, binary.OpcodeI32Eq, binary.OpcodeI32Ne, binary.OpcodeI32LtS, binary.OpcodeI32LtU, binary.OpcodeI32GtS, binary.OpcodeI32GtU, binary.OpcodeI32LeS, binary.OpcodeI32LeU, binary.OpcodeI32GeS, binary.OpcodeI32GeU}
	i64fam := fam{binary.OpcodeI64Eqz, binary.OpcodeI64Eq, binary.OpcodeI64Ne, binary.OpcodeI64LtS, binary.OpcodeI64LtU, binary.OpcodeI64GtS, binary.OpcodeI64GtU, binary.OpcodeI64LeS, binary.OpcodeI64LeU, binary.OpcodeI64GeS, binary.OpcodeI64GeU}
	for _, e := range []struct {
		f fam
		t ir.NumType
	}{{i32fam, ir.NumTypeI32}, {i64fam, ir.NumTypeI64}} {
		add(e.f.eqz, ir.KindEqz, e.t, false, true)
		add(e.f.eq, ir.KindEq, e.t, true, true)
		add(e.f.ne, ir.KindNe, e.t, true, true)
		addSigned(e.f.ltS, ir.KindLt, e.t, true)
		addSigned(e.f.ltU, ir.KindLt, e.t, false)
		addSigned(e.f.gtS, ir.KindGt, e.t, true)
		addSigned(e.f.gtU, ir.KindGt, e.t, false)
		addSigned(e.f.leS, ir.KindLe, e.t, true)
		addSigned(e.f.leU, ir.KindLe, e.t, false)
		addSigned(e.f.geS, ir.KindGe, e.t, true)
		addSigned(e.f.geU, ir.KindGe, e.t, false)
	}

	type ffam struct{ eq, ne, lt, gt, le, ge binary.Opcode }
	f32fam := ffam{binary.OpcodeF32Eq, binary.OpcodeF32Ne, binary.OpcodeF32Lt, binary.OpcodeF32Gt, binary.OpcodeF32Le, binary.OpcodeF32Ge}
	f64fam := ffam{binary.OpcodeF64Eq, binary.OpcodeF64Ne, binary.OpcodeF64Lt, binary.OpcodeF64Gt, binary.OpcodeF64Le, binary.OpcodeF64Ge}
	for _, e := range []struct {
		f ffam
		t ir.NumType
	}{{f32fam, ir.NumTypeF32}, {f64fam, ir.NumTypeF64}} {
		add(e.f.eq, ir.KindEq, e.t, true, true)
		add(e.f.ne, ir.KindNe, e.t, true, true)
		add(e.f.lt, ir.KindLt, e.t, true, true)
		add(e.f.gt, ir.KindGt, e.t, true, true)
		add(e.f.le, ir.KindLe, e.t, true, true)
		add(e.f.ge, ir.KindGe, e.t, true, true)
	}

	type ifam struct {
		clz, ctz, popcnt, add, sub, mul, divS, divU, remS, remU, and, or, xor, shl, shrS, shrU, rotl, rotr binary.Opcode
	}
	i32a := ifam{binary.OpcodeI32Clz, binary.OpcodeI32Ctz, binary.OpcodeI32Popcnt, binary.OpcodeI32Add, binary.OpcodeI32Sub, binary.OpcodeI32Mul, binary.OpcodeI32DivS, binary.OpcodeI32DivU, binary.OpcodeI32RemS, binary.OpcodeI32RemU, binary.OpcodeI32And, binary.OpcodeI32Or, binary.OpcodeI32Xor, binary.OpcodeI32Shl, binary.OpcodeI32ShrS, binary.OpcodeI32ShrU, binary.OpcodeI32Rotl, binary.OpcodeI32Rotr}
	i64a := ifam{binary.OpcodeI64Clz, binary.OpcodeI64Ctz, binary.OpcodeI64Popcnt, binary.OpcodeI64Add, binary.OpcodeI64Sub, binary.OpcodeI64Mul, binary.OpcodeI64DivS, binary.OpcodeI64DivU, binary.OpcodeI64RemS, binary.OpcodeI64RemU, binary.OpcodeI64And, binary.OpcodeI64Or, binary.OpcodeI64Xor, binary.OpcodeI64Shl, binary.OpcodeI64ShrS, binary.OpcodeI64ShrU, binary.OpcodeI64Rotl, binary.OpcodeI64Rotr}
	for _, e := range []struct {
		f ifam
		t ir.NumType
	}{{i32a, ir.NumTypeI32}, {i64a, ir.NumTypeI64}} {
		add(e.f.clz, ir.KindClz, e.t, false, false)
		add(e.f.ctz, ir.KindCtz, e.t, false, false)
		add(e.f.popcnt, ir.KindPopcnt, e.t, false, false)
		add(e.f.add, ir.KindAdd, e.t, true, false)
		add(e.f.sub, ir.KindSub, e.t, true, false)
		add(e.f.mul, ir.KindMul, e.t, true, false)
		add(e.f.divS, ir.KindDivS, e.t, true, false)
		add(e.f.divU, ir.KindDivU, e.t, true, false)
		add(e.f.remS, ir.KindRemS, e.t, true, false)
		add(e.f.remU, ir.KindRemU, e.t, true, false)
		add(e.f.and, ir.KindAnd, e.t, true, false)
		add(e.f.or, ir.KindOr, e.t, true, false)
		add(e.f.xor, ir.KindXor, e.t, true, false)
		add(e.f.shl, ir.KindShl, e.t, true, false)
		add(e.f.shrS, ir.KindShrS, e.t, true, false)
		add(e.f.shrU, ir.KindShrU, e.t, true, false)
		add(e.f.rotl, ir.KindRotl, e.t, true, false)
		add(e.f.rotr, ir.KindRotr, e.t, true, false)
	}

	type ffam2 struct {
		abs, neg, ceil, floor, trunc, nearest, sqrt, add, sub, mul, div, min, max, copysign binary.Opcode
	}
	f32a := ffam2{binary.OpcodeF32Abs, binary.OpcodeF32Neg, binary.OpcodeF32Ceil, binary.OpcodeF32Floor, binary.OpcodeF32Trunc, binary.OpcodeF32Nearest, binary.OpcodeF32Sqrt, binary.OpcodeF32Add, binary.OpcodeF32Sub, binary.OpcodeF32Mul, binary.OpcodeF32Div, binary.OpcodeF32Min, binary.OpcodeF32Max, binary.OpcodeF32Copysign}
	f64a := ffam2{binary.OpcodeF64Abs, binary.OpcodeF64Neg, binary.OpcodeF64Ceil, binary.OpcodeF64Floor, binary.OpcodeF64Trunc, binary.OpcodeF64Nearest, binary.OpcodeF64Sqrt, binary.OpcodeF64Add, binary.OpcodeF64Sub, binary.OpcodeF64Mul, binary.OpcodeF64Div, binary.OpcodeF64Min, binary.OpcodeF64Max, binary.OpcodeF64Copysign}
	for _, e := range []struct {
		f ffam2
		t ir.NumType
	}{{f32a, ir.NumTypeF32}, {f64a, ir.NumTypeF64}} {
		add(e.f.abs, ir.KindAbs, e.t, false, false)
		add(e.f.neg, ir.KindNeg, e.t, false, false)
		add(e.f.ceil, ir.KindCeil, e.t, false, false)
		add(e.f.floor, ir.KindFloor, e.t, false, false)
		add(e.f.trunc, ir.KindTrunc, e.t, false, false)
		add(e.f.nearest, ir.KindNearest, e.t, false, false)
		add(e.f.sqrt, ir.KindSqrt, e.t, false, false)
		add(e.f.add, ir.KindAdd, e.t, true, false)
		add(e.f.sub, ir.KindSub, e.t, true, false)
		add(e.f.mul, ir.KindMul, e.t, true, false)
		add(e.f.div, ir.KindDivS, e.t, true, false) // float div has no S/U split; DivS slot reused
		add(e.f.min, ir.KindMin, e.t, true, false)
		add(e.f.max, ir.KindMax, e.t, true, false)
		add(e.f.copysign, ir.KindCopysign, e.t, true, false)
	}
}

// convertOpTable maps the single-byte conversion opcodes (miscConvertOpTable
// holds the 0xFC-prefixed ones) to ir.ConvertOp plus the NumType pair needed to pop the right operand and
// push the right result.
type convInfo struct {
	op      ir.ConvertOp
	from, to ir.NumType
}

var convertOpTable map[binary.Opcode]convInfo
var miscConvertOpTable map[byte]convInfo

func init() {
	convertOpTable = map[binary.Opcode]convInfo{
		binary.OpcodeI32WrapI64:        {ir.ConvertI32WrapI64, ir.NumTypeI64, ir.NumTypeI32},
		binary.OpcodeI64ExtendI32S:     {ir.ConvertI64ExtendI32S, ir.NumTypeI32, ir.NumTypeI64},
		binary.OpcodeI64ExtendI32U:     {ir.ConvertI64ExtendI32U, ir.NumTypeI32, ir.NumTypeI64},
		binary.OpcodeI32TruncF32S:      {ir.ConvertI32TruncF32S, ir.NumTypeF32, ir.NumTypeI32},
		binary.OpcodeI32TruncF32U:      {ir.ConvertI32TruncF32U, ir.NumTypeF32, ir.NumTypeI32},
		binary.OpcodeI32TruncF64S:      {ir.ConvertI32TruncF64S, ir.NumTypeF64, ir.NumTypeI32},
		binary.OpcodeI32TruncF64U:      {ir.ConvertI32TruncF64U, ir.NumTypeF64, ir.NumTypeI32},
		binary.OpcodeI64TruncF32S:      {ir.ConvertI64TruncF32S, ir.NumTypeF32, ir.NumTypeI64},
		binary.OpcodeI64TruncF32U:      {ir.ConvertI64TruncF32U, ir.NumTypeF32, ir.NumTypeI64},
		binary.OpcodeI64TruncF64S:      {ir.ConvertI64TruncF64S, ir.NumTypeF64, ir.NumTypeI64},
		binary.OpcodeI64TruncF64U:      {ir.ConvertI64TruncF64U, ir.NumTypeF64, ir.NumTypeI64},
		binary.OpcodeF32ConvertI32S:    {ir.ConvertF32ConvertI32S, ir.NumTypeI32, ir.NumTypeF32},
		binary.OpcodeF32ConvertI32U:    {ir.ConvertF32ConvertI32U, ir.NumTypeI32, ir.NumTypeF32},
		binary.OpcodeF32ConvertI64S:    {ir.ConvertF32ConvertI64S, ir.NumTypeI64, ir.NumTypeF32},
		binary.OpcodeF32ConvertI64U:    {ir.ConvertF32ConvertI64U, ir.NumTypeI64, ir.NumTypeF32},
		binary.OpcodeF32DemoteF64:      {ir.ConvertF32DemoteF64, ir.NumTypeF64, ir.NumTypeF32},
		binary.OpcodeF64ConvertI32S:    {ir.ConvertF64ConvertI32S, ir.NumTypeI32, ir.NumTypeF64},
		binary.OpcodeF64ConvertI32U:    {ir.ConvertF64ConvertI32U, ir.NumTypeI32, ir.NumTypeF64},
		binary.OpcodeF64ConvertI64S:    {ir.ConvertF64ConvertI64S, ir.NumTypeI64, ir.NumTypeF64},
		binary.OpcodeF64ConvertI64U:    {ir.ConvertF64ConvertI64U, ir.NumTypeI64, ir.NumTypeF64},
		binary.OpcodeF64PromoteF32:     {ir.ConvertF64PromoteF32, ir.NumTypeF32, ir.NumTypeF64},
		binary.OpcodeI32ReinterpretF32: {ir.ConvertI32ReinterpretF32, ir.NumTypeF32, ir.NumTypeI32},
		binary.OpcodeI64ReinterpretF64: {ir.ConvertI64ReinterpretF64, ir.NumTypeF64, ir.NumTypeI64},
		binary.OpcodeF32ReinterpretI32: {ir.ConvertF32ReinterpretI32, ir.NumTypeI32, ir.NumTypeF32},
		binary.OpcodeF64ReinterpretI64: {ir.ConvertF64ReinterpretI64, ir.NumTypeI64, ir.NumTypeF64},
		binary.OpcodeI32Extend8S:       {ir.ConvertI32Extend8S, ir.NumTypeI32, ir.NumTypeI32},
		binary.OpcodeI32Extend16S:      {ir.ConvertI32Extend16S, ir.NumTypeI32, ir.NumTypeI32},
		binary.OpcodeI64Extend8S:       {ir.ConvertI64Extend8S, ir.NumTypeI64, ir.NumTypeI64},
		binary.OpcodeI64Extend16S:      {ir.ConvertI64Extend16S, ir.NumTypeI64, ir.NumTypeI64},
		binary.OpcodeI64Extend32S:      {ir.ConvertI64Extend32S, ir.NumTypeI64, ir.NumTypeI64},
	}
	miscConvertOpTable = map[byte]convInfo{
		binary.MiscOpcodeI32TruncSatF32S: {ir.ConvertI32TruncSatF32S, ir.NumTypeF32, ir.NumTypeI32},
		binary.MiscOpcodeI32TruncSatF32U: {ir.ConvertI32TruncSatF32U, ir.NumTypeF32, ir.NumTypeI32},
		binary.MiscOpcodeI32TruncSatF64S: {ir.ConvertI32TruncSatF64S, ir.NumTypeF64, ir.NumTypeI32},
		binary.MiscOpcodeI32TruncSatF64U: {ir.ConvertI32TruncSatF64U, ir.NumTypeF64, ir.NumTypeI32},
		binary.MiscOpcodeI64TruncSatF32S: {ir.ConvertI64TruncSatF32S, ir.NumTypeF32, ir.NumTypeI64},
		binary.MiscOpcodeI64TruncSatF32U: {ir.ConvertI64TruncSatF32U, ir.NumTypeF32, ir.NumTypeI64},
		binary.MiscOpcodeI64TruncSatF64S: {ir.ConvertI64TruncSatF64S, ir.NumTypeF64, ir.NumTypeI64},
		binary.MiscOpcodeI64TruncSatF64U: {ir.ConvertI64TruncSatF64U, ir.NumTypeF64, ir.NumTypeI64},
	}
}

func numTypeToValueType(t ir.NumType) api.ValueType {
	switch t {
	case ir.NumTypeI32:
		return api.ValueTypeI32
	case ir.NumTypeI64:
		return api.ValueTypeI64
	case ir.NumTypeF32:
		return api.ValueTypeF32
	default:
		return api.ValueTypeF64
	}
}
