package interpreter

import (
	"context"

	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/numeric"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasmruntime"
)

func (ce *callEngine) executeLoad(f *frame, in ir.Instruction) {
	addr := uint32(ce.pop())
	offset := addr + in.Offset
	mem := f.instance.Memory

	switch in.Kind {
	case ir.KindLoad:
		switch in.ValType {
		case ir.NumTypeI32:
			v, ok := mem.ReadUint32Le(offset)
			checkOOB(ok)
			ce.push(uint64(v))
		case ir.NumTypeI64:
			v, ok := mem.ReadUint64Le(offset)
			checkOOB(ok)
			ce.push(v)
		case ir.NumTypeF32:
			v, ok := mem.ReadUint32Le(offset)
			checkOOB(ok)
			ce.push(uint64(v))
		case ir.NumTypeF64:
			v, ok := mem.ReadUint64Le(offset)
			checkOOB(ok)
			ce.push(v)
		}
	case ir.KindLoad8:
		v, ok := mem.ReadByte(offset)
		checkOOB(ok)
		ce.push(extendByte(v, in.ValType, in.Signed))
	case ir.KindLoad16:
		v, ok := mem.ReadUint16Le(offset)
		checkOOB(ok)
		ce.push(extendHalf(v, in.ValType, in.Signed))
	case ir.KindLoad32:
		v, ok := mem.ReadUint32Le(offset)
		checkOOB(ok)
		if in.Signed {
			ce.push(uint64(int64(int32(v))))
		} else {
			ce.push(uint64(v))
		}
	}
}

func (ce *callEngine) executeStore(f *frame, in ir.Instruction) {
	v := ce.pop()
	addr := uint32(ce.pop())
	offset := addr + in.Offset
	mem := f.instance.Memory

	switch in.Kind {
	case ir.KindStore:
		switch in.ValType {
		case ir.NumTypeI32, ir.NumTypeF32:
			checkOOB(mem.WriteUint32Le(offset, uint32(v)))
		case ir.NumTypeI64, ir.NumTypeF64:
			checkOOB(mem.WriteUint64Le(offset, v))
		}
	case ir.KindStore8:
		checkOOB(mem.WriteByte(offset, byte(v)))
	case ir.KindStore16:
		checkOOB(mem.WriteUint16Le(offset, uint16(v)))
	case ir.KindStore32:
		checkOOB(mem.WriteUint32Le(offset, uint32(v)))
	}
}

func checkOOB(ok bool) {
	if !ok {
		trap(wasmruntime.TrapCodeMemoryAccessOutOfBounds)
	}
}

func extendByte(v byte, t ir.NumType, signed bool) uint64 {
	if !signed {
		return uint64(v)
	}
	if t == ir.NumTypeI64 {
		return numeric.SignExtend64From8(uint64(v))
	}
	return uint64(numeric.SignExtend32From8(uint32(v)))
}

func extendHalf(v uint16, t ir.NumType, signed bool) uint64 {
	if !signed {
		return uint64(v)
	}
	if t == ir.NumTypeI64 {
		return numeric.SignExtend64From16(uint64(v))
	}
	return uint64(numeric.SignExtend32From16(uint32(v)))
}

func (ce *callEngine) executeCall(ctx context.Context, f *frame, funcIndex uint32) {
	callee := f.instance.Functions[funcIndex]
	ce.callInline(ctx, f, callee)
}

func (ce *callEngine) executeCallIndirect(ctx context.Context, f *frame, in ir.Instruction) {
	elemIdx := uint32(ce.pop())
	table := f.instance.Tables[in.TableIndex]
	if elemIdx >= uint32(len(table.References)) {
		trap(wasmruntime.TrapCodeTableAccessOutOfBounds)
	}
	callee := table.References[elemIdx]
	if callee == nil {
		trap(wasmruntime.TrapCodeElemUninitialized)
	}
	wantType := &f.instance.Types[in.TypeIndex]
	if !callee.Type.EqualsSignature(wantType) {
		trap(wasmruntime.TrapCodeUnexpectedSignature)
	}
	ce.callInline(ctx, f, callee)
}

// callInline invokes callee in place: its arguments are already the top of
// ce.stack (left there by evaluating its operands), exactly where invoke
// expects a callee's params to be.
func (ce *callEngine) callInline(ctx context.Context, caller *frame, callee *wasm.FunctionInstance) {
	numParams := len(callee.Type.Params)
	args := append([]uint64(nil), ce.stack[len(ce.stack)-numParams:]...)
	ce.stack = ce.stack[:len(ce.stack)-numParams]

	results, err := ce.invoke(ctx, caller.instance, callee, args)
	if err != nil {
		panic(err)
	}
	for _, r := range results {
		ce.push(r)
	}
}
