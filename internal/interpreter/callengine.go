package interpreter

import (
	"context"
	"fmt"

	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasmruntime"
)

// defaultCallStackCeiling bounds Wasm recursion depth; exceeding it traps
// with TrapCodeStackOverflow rather than growing the Go stack (and the
// process) without limit. Engine.SetCallStackCeiling can override it.
const defaultCallStackCeiling = 1 << 16

// callEngine drives one logical thread of Wasm execution: a single
// unified stack holding every active frame's locals and operands back to
// back, addressed by each frame's base index. There is one callEngine per
// Call. A host function that calls back into Wasm through an exported
// function goes through Call again and gets a fresh callEngine, whose depth
// count starts at zero; the ceiling does not span such re-entry.
type callEngine struct {
	engine *Engine
	store  *wasm.Store
	stack  []uint64
	depth  int
	ceiling int
}

func newCallEngine(engine *Engine, store *wasm.Store) *callEngine {
	ceiling := engine.callStackCeiling
	if ceiling == 0 {
		ceiling = defaultCallStackCeiling
	}
	return &callEngine{engine: engine, store: store, ceiling: ceiling}
}

// Call is the embedder-facing entry point for invoking an already-resolved
// export: it starts a fresh callEngine (one per logical thread of
// execution) and runs fn to completion or to the trap that aborted it.
func Call(ctx context.Context, engine *Engine, store *wasm.Store, instance *wasm.ModuleInstance, fn *wasm.FunctionInstance, params []uint64) ([]uint64, error) {
	ce := newCallEngine(engine, store)
	return ce.call(ctx, instance, fn, params)
}

// call is the embedder-facing entry point: it invokes fn within instance
// with params already encoded per ValueType, and returns its results
// likewise encoded, or the trap that aborted it.
func (ce *callEngine) call(ctx context.Context, instance *wasm.ModuleInstance, fn *wasm.FunctionInstance, params []uint64) (results []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			// Both trap panics (*wasmruntime.Error) and a host function's
			// returned error re-panicked by callInline satisfy error, so one
			// type switch unwinds either back into a normal return.
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return ce.invoke(ctx, instance, fn, params)
}

// invoke runs fn (host or Wasm) to completion. Wasm functions recurse back
// into invoke for every Call/CallIndirect; host functions run as an
// ordinary Go call, so a host function that calls back into a Wasm export
// goes through Store/Caller rather than this method directly.
func (ce *callEngine) invoke(ctx context.Context, instance *wasm.ModuleInstance, fn *wasm.FunctionInstance, params []uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn.GoFunc != nil {
		caller := wasm.NewCaller(ce.store, instance)
		return fn.GoFunc(ctx, caller, params)
	}

	ce.depth++
	if ce.depth > ce.ceiling {
		ce.depth--
		panic(wasmruntime.New(wasmruntime.TrapCodeStackOverflow))
	}
	defer func() { ce.depth-- }()

	code := ce.engine.code(fn.DefiningModule, int(fn.LocalIndex))
	numLocals := len(fn.Type.Params) + localCount(code, len(fn.Type.Params))

	base := len(ce.stack)
	ce.stack = append(ce.stack, params...)
	for i := len(params); i < numLocals; i++ {
		ce.stack = append(ce.stack, 0)
	}

	// A Wasm function's frame is always bound to the instance that defined
	// it, never to instance (the caller's instance, relevant only for the
	// GoFunc branch above) — otherwise an imported function would resolve
	// its globals, memory and tables against the importing module instead
	// of its own.
	f := &frame{instance: fn.Instance, fn: fn, code: code, base: base, numLocals: numLocals}
	ce.run(ctx, f)

	numResults := len(fn.Type.Results)
	results := append([]uint64(nil), ce.stack[len(ce.stack)-numResults:]...)
	ce.stack = ce.stack[:base]
	return results, nil
}

// frame is the live state of one in-progress Wasm function activation.
type frame struct {
	instance  *wasm.ModuleInstance
	fn        *wasm.FunctionInstance
	code      ir.CodeSlice
	pc        int
	base      int
	numLocals int
}

// run executes f.code from f.pc until it falls off the end (pc reaches
// len(code), which every "return" and outermost "end" is compiled to
// resolve to as well).
func (ce *callEngine) run(ctx context.Context, f *frame) {
	for f.pc < len(f.code) {
		inst := f.code[f.pc]
		ce.execute(ctx, f, inst)
	}
}

func (ce *callEngine) local(f *frame, idx uint32) *uint64 { return &ce.stack[f.base+int(idx)] }

func (ce *callEngine) push(v uint64)  { ce.stack = append(ce.stack, v) }
func (ce *callEngine) pop() uint64 {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}

// applyDropKeep squashes the operand stack above floor down to just the
// top dk.Keep values, discarding dk.Drop values beneath them. Every
// control transfer that can leave dead operands behind (br, br_if,
// br_table, function return) goes through
// this, so it is the single place DropKeep's meaning is interpreted.
func (ce *callEngine) applyDropKeep(floor int, dk ir.DropKeep) {
	top := len(ce.stack)
	keepFrom := top - dk.Keep
	dropFrom := keepFrom - dk.Drop
	if dropFrom < floor {
		dropFrom = floor
	}
	copy(ce.stack[dropFrom:], ce.stack[keepFrom:top])
	ce.stack = ce.stack[:dropFrom+dk.Keep]
}

func localCount(code ir.CodeSlice, numParams int) int {
	// The compiled code does not record how many locals the function
	// declares, so numLocals is derived here from the highest local index
	// referenced, which is always in range for validated input.
	max := numParams - 1
	for _, in := range code {
		if in.Kind == ir.KindLocalGet || in.Kind == ir.KindLocalSet || in.Kind == ir.KindLocalTee {
			if int(in.Index) > max {
				max = int(in.Index)
			}
		}
	}
	return max + 1
}

func trap(code wasmruntime.TrapCode) { panic(wasmruntime.New(code)) }

// execute dispatches a single instruction, advancing f.pc by one or
// redirecting it to a branch target.
func (ce *callEngine) execute(ctx context.Context, f *frame, in ir.Instruction) {
	floor := f.base + f.numLocals
	switch in.Kind {
	case ir.KindUnreachable:
		trap(wasmruntime.TrapCodeUnreachable)

	case ir.KindBr:
		ce.applyDropKeep(floor, in.Target.DropKeep)
		f.pc = in.Target.InstructionIndex
		return

	case ir.KindBrIfEqz, ir.KindBrIfNez:
		cond := ce.pop()
		taken := cond == 0
		if in.Kind == ir.KindBrIfNez {
			taken = cond != 0
		}
		if taken {
			ce.applyDropKeep(floor, in.Target.DropKeep)
			f.pc = in.Target.InstructionIndex
			return
		}

	case ir.KindBrTable:
		idx := uint32(ce.pop())
		if int(idx) >= len(in.Targets)-1 {
			idx = uint32(len(in.Targets) - 1) // last entry is the default
		}
		t := in.Targets[idx]
		ce.applyDropKeep(floor, t.DropKeep)
		f.pc = t.InstructionIndex
		return

	case ir.KindReturn:
		ce.applyDropKeep(floor, in.DropKeep)
		f.pc = len(f.code)
		return

	case ir.KindLocalGet:
		ce.push(*ce.local(f, in.Index))
	case ir.KindLocalSet:
		*ce.local(f, in.Index) = ce.pop()
	case ir.KindLocalTee:
		*ce.local(f, in.Index) = ce.stack[len(ce.stack)-1]

	case ir.KindDrop:
		ce.pop()
	case ir.KindSelect:
		cond := ce.pop()
		b := ce.pop()
		a := ce.pop()
		if cond != 0 {
			ce.push(a)
		} else {
			ce.push(b)
		}

	case ir.KindGlobalGet:
		ce.push(f.instance.Globals[in.Index].Val)
	case ir.KindGlobalSet:
		f.instance.Globals[in.Index].Val = ce.pop()

	case ir.KindConst:
		ce.push(in.ConstValue)

	case ir.KindMemorySize:
		ce.push(uint64(f.instance.Memory.PageSize()))
	case ir.KindMemoryGrow:
		delta := uint32(ce.pop())
		prev, ok := f.instance.Memory.Grow(delta)
		if !ok {
			ce.push(uint64(uint32(0xffffffff)))
		} else {
			ce.push(uint64(prev))
		}

	case ir.KindLoad, ir.KindLoad8, ir.KindLoad16, ir.KindLoad32:
		ce.executeLoad(f, in)
	case ir.KindStore, ir.KindStore8, ir.KindStore16, ir.KindStore32:
		ce.executeStore(f, in)

	case ir.KindCall:
		ce.executeCall(ctx, f, in.FuncIndex)
	case ir.KindCallIndirect:
		ce.executeCallIndirect(ctx, f, in)

	case ir.KindEqz:
		a := ce.pop()
		ce.pushBool(boolToEqz(a, in.Type))
	case ir.KindEq, ir.KindNe, ir.KindLt, ir.KindGt, ir.KindLe, ir.KindGe:
		ce.executeCompare(in)

	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindDivS, ir.KindDivU, ir.KindRemS, ir.KindRemU,
		ir.KindAnd, ir.KindOr, ir.KindXor, ir.KindShl, ir.KindShrS, ir.KindShrU, ir.KindRotl, ir.KindRotr,
		ir.KindMin, ir.KindMax, ir.KindCopysign:
		ce.executeBinary(in)

	case ir.KindClz, ir.KindCtz, ir.KindPopcnt, ir.KindAbs, ir.KindNeg, ir.KindCeil, ir.KindFloor,
		ir.KindTrunc, ir.KindNearest, ir.KindSqrt:
		ce.executeUnary(in)

	case ir.KindConvert:
		ce.executeConvert(in)

	default:
		panic(fmt.Sprintf("interpreter: unhandled instruction kind %d", in.Kind))
	}
	f.pc++
}

func (ce *callEngine) pushBool(v bool) {
	if v {
		ce.push(1)
	} else {
		ce.push(0)
	}
}

func boolToEqz(v uint64, t ir.NumType) bool {
	if t == ir.NumTypeI64 {
		return v == 0
	}
	return uint32(v) == 0
}
