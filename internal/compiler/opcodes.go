package compiler

import (
	"fmt"
	"io"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/leb128"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

// functionCompiler holds the mutable translation state for one function
// body: the emitted instruction builder, the compile-time operand stack,
// the nested control frame stack, and the function's locals (params
// followed by declared locals, addressed by a single flat index as Wasm's
// local.get/set/tee do).
type functionCompiler struct {
	m        Module
	features wasm.Features
	b        *ir.Builder
	vs       *valueStack
	frames   *controlFrameStack

	locals    []api.ValueType
	numParams int
}

func (fc *functionCompiler) unreachable() bool { return !fc.frames.top().reachable }

// popOperand pops one value off the shadow stack. Inside unreachable code
// the stack is polymorphic past the enclosing frame's entry height: Wasm
// validation allows arbitrary further pops/pushes there, so popOperand
// manufactures a placeholder type instead of underflowing.
func (fc *functionCompiler) popOperand() api.ValueType {
	top := fc.frames.top()
	if fc.vs.height() <= top.entryHeight && !top.reachable {
		return api.ValueTypeI32
	}
	return fc.vs.pop()
}

func (fc *functionCompiler) pushOperand(t api.ValueType) { fc.vs.push(t) }

// markUnreachable truncates the shadow stack to the current frame's entry
// height and flips it polymorphic: spec'd Wasm validation lets anything
// follow an unconditional control transfer until the next else/end.
func (fc *functionCompiler) markUnreachable() {
	top := fc.frames.top()
	fc.vs.truncate(top.entryHeight)
	top.reachable = false
}

func numType(vt api.ValueType) ir.NumType { return ir.ValueTypeToNumType(vt) }

// readBlockType decodes a Wasm blocktype immediate: empty, a single result
// value type, or (multi-value) a type-section index.
func (fc *functionCompiler) readBlockType(r io.ByteReader) (blockType, error) {
	v, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return blockType{}, err
	}
	switch v {
	case -64: // 0x40, empty
		return blockType{}, nil
	case -1:
		return blockType{Results: []api.ValueType{api.ValueTypeI32}}, nil
	case -2:
		return blockType{Results: []api.ValueType{api.ValueTypeI64}}, nil
	case -3:
		return blockType{Results: []api.ValueType{api.ValueTypeF32}}, nil
	case -4:
		return blockType{Results: []api.ValueType{api.ValueTypeF64}}, nil
	}
	if v < 0 {
		return blockType{}, fmt.Errorf("invalid blocktype %d", v)
	}
	if !fc.features.Enabled(wasm.FeatureMultiValue) {
		return blockType{}, fmt.Errorf("multi-value block type used but feature disabled")
	}
	ft := fc.m.Type(uint32(v))
	return blockType{Params: ft.Params, Results: ft.Results}, nil
}

// branchDropKeep computes the DropKeep for a branch that targets depth
// frames up from the innermost enclosing one.
func (fc *functionCompiler) branchDropKeep(depth uint32) ir.DropKeep {
	frame := fc.frames.nthFromTop(depth)
	arity := frame.resultArity()
	drop := fc.vs.height() - arity - frame.entryHeight
	if drop < 0 {
		drop = 0
	}
	return ir.DropKeep{Drop: drop, Keep: arity}
}

// patchToFrameLabel registers the instruction at instIdx's Target to be
// filled in once depth frames up's label resolves (immediately, if it
// already has — true for every backward branch, since loop headers are
// resolved the moment the loop is entered).
func (fc *functionCompiler) patchToFrameLabel(depth uint32, instIdx int) {
	frame := fc.frames.nthFromTop(depth)
	fc.b.OnLabelResolved(frame.branchLabel(), func(addr int) {
		fc.b.PatchBranchTarget(instIdx, addr)
	})
}

func (fc *functionCompiler) emitBr(depth uint32) {
	dk := fc.branchDropKeep(depth)
	idx := fc.b.PushInst(ir.Instruction{Kind: ir.KindBr, Target: ir.Target{DropKeep: dk}})
	fc.patchToFrameLabel(depth, idx)
}

func (fc *functionCompiler) emitBrIf(depth uint32) {
	dk := fc.branchDropKeep(depth)
	idx := fc.b.PushInst(ir.Instruction{Kind: ir.KindBrIfNez, Target: ir.Target{DropKeep: dk}})
	fc.patchToFrameLabel(depth, idx)
}

func (fc *functionCompiler) emitBrTable(r io.ByteReader) error {
	count, _, err := leb128.ReadUint32(r)
	if err != nil {
		return err
	}
	depths := make([]uint32, count+1)
	for i := range depths {
		d, _, err := leb128.ReadUint32(r)
		if err != nil {
			return err
		}
		depths[i] = d
	}
	fc.popOperand() // selector index
	targets := make([]ir.Target, len(depths))
	for i, d := range depths {
		targets[i] = ir.Target{DropKeep: fc.branchDropKeep(d)}
	}
	idx := fc.b.PushInst(ir.Instruction{Kind: ir.KindBrTable, Targets: targets})
	for i, d := range depths {
		i, d := i, d
		frame := fc.frames.nthFromTop(d)
		fc.b.OnLabelResolved(frame.branchLabel(), func(addr int) {
			fc.b.PatchBranchTableTarget(idx, i, addr)
		})
	}
	return nil
}

// translateOpcode consumes one opcode (plus its immediates) from r and
// emits zero or more instructions. It reports done=true once the function
// body's final "end" (closing the implicit function frame) is visited.
func (fc *functionCompiler) translateOpcode(op byte, r io.ByteReader) (done bool, err error) {
	switch op {
	case binary.OpcodeUnreachable:
		fc.b.PushInst(ir.Instruction{Kind: ir.KindUnreachable})
		fc.markUnreachable()

	case binary.OpcodeNop:
		// No-op: emits nothing.

	case binary.OpcodeBlock:
		bt, err := fc.readBlockType(r)
		if err != nil {
			return false, err
		}
		fc.enterBlock(frameKindBlock, bt)

	case binary.OpcodeLoop:
		bt, err := fc.readBlockType(r)
		if err != nil {
			return false, err
		}
		fc.enterLoop(bt)

	case binary.OpcodeIf:
		bt, err := fc.readBlockType(r)
		if err != nil {
			return false, err
		}
		fc.popOperand() // condition
		fc.enterIf(bt)

	case binary.OpcodeElse:
		if err := fc.onElse(); err != nil {
			return false, err
		}

	case binary.OpcodeEnd:
		isFunctionEnd, err := fc.onEnd()
		if err != nil {
			return false, err
		}
		if isFunctionEnd {
			return true, nil
		}

	case binary.OpcodeBr:
		depth, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.emitBr(depth)
		fc.markUnreachable()

	case binary.OpcodeBrIf:
		depth, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.popOperand() // condition
		fc.emitBrIf(depth)

	case binary.OpcodeBrTable:
		if err := fc.emitBrTable(r); err != nil {
			return false, err
		}
		fc.markUnreachable()

	case binary.OpcodeReturn:
		fc.emitBr(uint32(fc.frames.len() - 1))
		fc.markUnreachable()

	case binary.OpcodeCall:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		sig := fc.m.TypeOfFunction(idx)
		for range sig.Params {
			fc.popOperand()
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindCall, FuncIndex: idx})
		for _, rt := range sig.Results {
			fc.pushOperand(rt)
		}

	case binary.OpcodeCallIndirect:
		typeIdx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		tableIdx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.popOperand() // table index operand
		sig := fc.m.Type(typeIdx)
		for range sig.Params {
			fc.popOperand()
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindCallIndirect, TypeIndex: typeIdx, TableIndex: tableIdx})
		for _, rt := range sig.Results {
			fc.pushOperand(rt)
		}

	case binary.OpcodeDrop:
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindDrop})

	case binary.OpcodeSelect:
		fc.popOperand() // condition
		b := fc.popOperand()
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindSelect})
		fc.pushOperand(b)

	case binary.OpcodeLocalGet:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindLocalGet, Index: idx})
		fc.pushOperand(fc.locals[idx])

	case binary.OpcodeLocalSet:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindLocalSet, Index: idx})

	case binary.OpcodeLocalTee:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		t := fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindLocalTee, Index: idx})
		fc.pushOperand(t)

	case binary.OpcodeGlobalGet:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		gt := fc.m.GlobalType(idx)
		fc.b.PushInst(ir.Instruction{Kind: ir.KindGlobalGet, Index: idx})
		fc.pushOperand(gt.ValType)

	case binary.OpcodeGlobalSet:
		idx, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindGlobalSet, Index: idx})

	case binary.OpcodeMemorySize:
		if _, err := r.ReadByte(); err != nil { // reserved byte
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindMemorySize})
		fc.pushOperand(api.ValueTypeI32)

	case binary.OpcodeMemoryGrow:
		if _, err := r.ReadByte(); err != nil { // reserved byte
			return false, err
		}
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindMemoryGrow})
		fc.pushOperand(api.ValueTypeI32)

	case binary.OpcodeI32Const:
		v, _, err := leb128.ReadInt32(r)
		if err != nil {
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindConst, Type: ir.NumTypeI32, ConstValue: uint64(uint32(v))})
		fc.pushOperand(api.ValueTypeI32)

	case binary.OpcodeI64Const:
		v, _, err := leb128.ReadInt64(r)
		if err != nil {
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindConst, Type: ir.NumTypeI64, ConstValue: uint64(v)})
		fc.pushOperand(api.ValueTypeI64)

	case binary.OpcodeF32Const:
		bits, err := readU32LE(r)
		if err != nil {
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindConst, Type: ir.NumTypeF32, ConstValue: uint64(bits)})
		fc.pushOperand(api.ValueTypeF32)

	case binary.OpcodeF64Const:
		bits, err := readU64LE(r)
		if err != nil {
			return false, err
		}
		fc.b.PushInst(ir.Instruction{Kind: ir.KindConst, Type: ir.NumTypeF64, ConstValue: bits})
		fc.pushOperand(api.ValueTypeF64)

	case binary.OpcodeMiscPrefix:
		sub, _, err := leb128.ReadUint32(r)
		if err != nil {
			return false, err
		}
		info, ok := miscConvertOpTable[byte(sub)]
		if !ok {
			return false, fmt.Errorf("unknown misc opcode %#x", sub)
		}
		if !fc.features.Enabled(wasm.FeatureNonTrappingFloatToIntConversion) {
			return false, fmt.Errorf("saturating truncation used but feature disabled")
		}
		fc.popOperand()
		fc.b.PushInst(ir.Instruction{Kind: ir.KindConvert, Convert: info.op, Type: info.to})
		fc.pushOperand(numTypeToValueType(info.to))

	default:
		if ld, ok := loadOpTable[op]; ok {
			return false, fc.emitLoad(r, ld)
		}
		if st, ok := storeOpTable[op]; ok {
			return false, fc.emitStore(r, st)
		}
		if conv, ok := convertOpTable[op]; ok {
			if isSignExtend(conv.op) && !fc.features.Enabled(wasm.FeatureSignExtensionOps) {
				return false, fmt.Errorf("sign-extension opcode used but feature disabled")
			}
			fc.popOperand()
			fc.b.PushInst(ir.Instruction{Kind: ir.KindConvert, Convert: conv.op, Type: conv.to})
			fc.pushOperand(numTypeToValueType(conv.to))
			return false, nil
		}
		if n, ok := numOpTable[op]; ok {
			fc.emitNumOp(n)
			return false, nil
		}
		return false, fmt.Errorf("unsupported opcode %#x", op)
	}
	return false, nil
}

func isSignExtend(op ir.ConvertOp) bool {
	switch op {
	case ir.ConvertI32Extend8S, ir.ConvertI32Extend16S, ir.ConvertI64Extend8S, ir.ConvertI64Extend16S, ir.ConvertI64Extend32S:
		return true
	}
	return false
}

func (fc *functionCompiler) emitNumOp(n numOp) {
	if n.binary {
		fc.popOperand()
		fc.popOperand()
	} else {
		fc.popOperand()
	}
	fc.b.PushInst(ir.Instruction{Kind: n.kind, Type: n.typ, Signed: n.signed})
	if n.resultI32 {
		fc.pushOperand(api.ValueTypeI32)
	} else {
		fc.pushOperand(numTypeToValueType(n.typ))
	}
}

type memOp struct {
	kind    ir.Kind
	valType ir.NumType
	signed  bool
}

var loadOpTable = map[binary.Opcode]memOp{
	binary.OpcodeI32Load:    {ir.KindLoad, ir.NumTypeI32, false},
	binary.OpcodeI64Load:    {ir.KindLoad, ir.NumTypeI64, false},
	binary.OpcodeF32Load:    {ir.KindLoad, ir.NumTypeF32, false},
	binary.OpcodeF64Load:    {ir.KindLoad, ir.NumTypeF64, false},
	binary.OpcodeI32Load8S:  {ir.KindLoad8, ir.NumTypeI32, true},
	binary.OpcodeI32Load8U:  {ir.KindLoad8, ir.NumTypeI32, false},
	binary.OpcodeI32Load16S: {ir.KindLoad16, ir.NumTypeI32, true},
	binary.OpcodeI32Load16U: {ir.KindLoad16, ir.NumTypeI32, false},
	binary.OpcodeI64Load8S:  {ir.KindLoad8, ir.NumTypeI64, true},
	binary.OpcodeI64Load8U:  {ir.KindLoad8, ir.NumTypeI64, false},
	binary.OpcodeI64Load16S: {ir.KindLoad16, ir.NumTypeI64, true},
	binary.OpcodeI64Load16U: {ir.KindLoad16, ir.NumTypeI64, false},
	binary.OpcodeI64Load32S: {ir.KindLoad32, ir.NumTypeI64, true},
	binary.OpcodeI64Load32U: {ir.KindLoad32, ir.NumTypeI64, false},
}

var storeOpTable = map[binary.Opcode]memOp{
	binary.OpcodeI32Store:   {ir.KindStore, ir.NumTypeI32, false},
	binary.OpcodeI64Store:   {ir.KindStore, ir.NumTypeI64, false},
	binary.OpcodeF32Store:   {ir.KindStore, ir.NumTypeF32, false},
	binary.OpcodeF64Store:   {ir.KindStore, ir.NumTypeF64, false},
	binary.OpcodeI32Store8:  {ir.KindStore8, ir.NumTypeI32, false},
	binary.OpcodeI32Store16: {ir.KindStore16, ir.NumTypeI32, false},
	binary.OpcodeI64Store8:  {ir.KindStore8, ir.NumTypeI64, false},
	binary.OpcodeI64Store16: {ir.KindStore16, ir.NumTypeI64, false},
	binary.OpcodeI64Store32: {ir.KindStore32, ir.NumTypeI64, false},
}

func (fc *functionCompiler) emitLoad(r io.ByteReader, op memOp) error {
	if !fc.m.HasMemory() {
		return fmt.Errorf("memory instruction used without a memory")
	}
	if _, _, err := leb128.ReadUint32(r); err != nil { // align, unused by the interpreter
		return err
	}
	offset, _, err := leb128.ReadUint32(r)
	if err != nil {
		return err
	}
	fc.popOperand() // address
	fc.b.PushInst(ir.Instruction{Kind: op.kind, ValType: op.valType, Signed: op.signed, Offset: offset})
	fc.pushOperand(numTypeToValueType(op.valType))
	return nil
}

func (fc *functionCompiler) emitStore(r io.ByteReader, op memOp) error {
	if !fc.m.HasMemory() {
		return fmt.Errorf("memory instruction used without a memory")
	}
	if _, _, err := leb128.ReadUint32(r); err != nil {
		return err
	}
	offset, _, err := leb128.ReadUint32(r)
	if err != nil {
		return err
	}
	fc.popOperand() // value
	fc.popOperand() // address
	fc.b.PushInst(ir.Instruction{Kind: op.kind, ValType: op.valType, Offset: offset})
	return nil
}

func readU32LE(r io.ByteReader) (uint32, error) {
	var bits uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		bits |= uint32(b) << (8 * i)
	}
	return bits, nil
}

func readU64LE(r io.ByteReader) (uint64, error) {
	var bits uint64
	for i := 0; i < 8; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		bits |= uint64(b) << (8 * i)
	}
	return bits, nil
}
