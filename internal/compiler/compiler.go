// Package compiler implements the single-pass function translator: it
// streams a validated Wasm opcode body, simulates the operand stack and
// control frame stack at translation time, and emits wasmium's internal
// instruction set (internal/ir) with every branch already resolved to a
// flat instruction index plus DropKeep metadata.
package compiler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/wasm"
	"go.uber.org/zap"
)

// Module is the read-only view of module resources the translator consults
// to resolve type, global, table and memory indices. It is satisfied by
// *wasm.Module.
type Module interface {
	TypeOfFunction(funcIdx uint32) *wasm.FunctionType
	Type(idx uint32) *wasm.FunctionType
	GlobalType(idx uint32) *wasm.GlobalType
	HasMemory() bool
	HasTable() bool
}

// moduleView adapts a *wasm.Module to the Module interface, resolving
// imported vs. module-defined globals transparently.
type moduleView struct{ m *wasm.Module }

func NewModuleView(m *wasm.Module) Module { return &moduleView{m} }

func (v *moduleView) TypeOfFunction(funcIdx uint32) *wasm.FunctionType { return v.m.TypeOfFunction(funcIdx) }
func (v *moduleView) Type(idx uint32) *wasm.FunctionType               { return &v.m.TypeSection[idx] }
func (v *moduleView) GlobalType(idx uint32) *wasm.GlobalType {
	imported := uint32(0)
	for _, imp := range v.m.ImportSection {
		if imp.Type != api.ExternTypeGlobal {
			continue
		}
		if imported == idx {
			return &imp.Global
		}
		imported++
	}
	return &v.m.GlobalSection[idx-imported].Type
}
func (v *moduleView) HasMemory() bool { return len(v.m.MemorySection) > 0 }
func (v *moduleView) HasTable() bool  { return len(v.m.TableSection) > 0 }

// CompilationError is a module error: an unsupported opcode, an impossible
// stack state, or any other violation of the translator's contract with
// its (pre-validated) input. These abort compilation before any code is
// installed — spec §7's "layer 1".
type CompilationError struct {
	FuncIndex uint32
	Err       error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compiler: function[%d]: %v", e.FuncIndex, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

var logger = zap.NewNop()

// SetLogger installs a structured logger for translation diagnostics, such
// as which functions were recompiled after a cache miss. The default is a
// no-op logger so library consumers never pay for logging they didn't ask
// for.
func SetLogger(l *zap.Logger) { logger = l }

// CompileFunctions translates every function body in m, in function index
// order (module-local, i.e. excluding imports), into finalized ir.CodeSlice
// values.
func CompileFunctions(m *wasm.Module, features wasm.Features) ([]ir.CodeSlice, error) {
	view := NewModuleView(m)
	importedFuncs := uint32(m.ImportedFunctionCount())
	out := make([]ir.CodeSlice, len(m.CodeSection))
	for i, code := range m.CodeSection {
		funcIdx := importedFuncs + uint32(i)
		sig := m.TypeOfFunction(funcIdx)
		slice, err := compileFunction(view, features, sig, code)
		if err != nil {
			return nil, &CompilationError{FuncIndex: funcIdx, Err: err}
		}
		out[i] = slice
		logger.Debug("translated function", zap.Uint32("index", funcIdx), zap.Int("instructions", len(slice)))
	}
	return out, nil
}

// compileFunction runs the translation algorithm of spec §4.3 over a single
// function body.
func compileFunction(m Module, features wasm.Features, sig *wasm.FunctionType, code wasm.Code) (ir.CodeSlice, error) {
	fc := &functionCompiler{
		m:         m,
		features:  features,
		b:         ir.NewBuilder(),
		vs:        newValueStack(),
		locals:    append(append([]api.ValueType{}, sig.Params...), code.LocalTypes...),
		numParams: len(sig.Params),
	}
	fc.frames = newControlFrameStack(blockType{Results: sig.Results})
	fc.frames.function().reachable = true
	// A "return" (or any branch targeting the outermost depth) resolves
	// against this label exactly like a branch out of any other block; it
	// ends up bound to one-past-the-last-instruction, the same PC the
	// dispatch loop already treats as an implicit return on fallthrough.
	fc.frames.function().blockEndLabel = fc.b.NewLabel()
	// Params and declared locals occupy a fixed prefix of the runtime
	// frame's stack slots (see internal/interpreter's frame layout); pushing
	// both onto the shadow stack up front keeps its height in lockstep with
	// that layout, so every later height computation (DropKeep, frame entry
	// heights) is relative to the same zero point the interpreter uses.
	for _, t := range sig.Params {
		fc.vs.push(t)
	}
	for _, t := range code.LocalTypes {
		fc.vs.push(t)
	}
	fc.frames.function().entryHeight = fc.vs.height()

	r := bytes.NewReader(code.Body)
	for {
		op, err := r.ReadByte()
		if err == io.EOF {
			return nil, fmt.Errorf("function body missing final end")
		} else if err != nil {
			return nil, err
		}
		done, err := fc.translateOpcode(op, r)
		if err != nil {
			return nil, fmt.Errorf("opcode %#x: %w", op, err)
		}
		if done {
			break
		}
	}
	return fc.b.Finish()
}
