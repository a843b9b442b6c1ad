package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

// noImports resolves nothing; every test module here is self-contained.
type noImports struct{}

func (noImports) ResolveFunc(string, string) (*wasm.FunctionInstance, bool) { return nil, false }
func (noImports) ResolveGlobal(string, string) (*wasm.GlobalInstance, bool) { return nil, false }
func (noImports) ResolveMemory(string, string) (*wasm.MemoryInstance, bool) { return nil, false }
func (noImports) ResolveTable(string, string) (*wasm.TableInstance, bool)   { return nil, false }

func instantiateAndRun(t *testing.T, m *wasm.Module, engine *Engine, fnName string, params ...uint64) ([]uint64, error) {
	t.Helper()
	require.NoError(t, engine.CompileModule(m, wasm.DefaultFeatures))
	store := wasm.NewStore()
	inst, err := Instantiate(context.Background(), engine, store, m, "main", noImports{})
	require.NoError(t, err)
	fn, ok := inst.ExportedFunction(fnName)
	require.True(t, ok)
	return Call(context.Background(), engine, store, inst, fn, params)
}

// An unbounded self-recursive call must trap with a stack overflow rather
// than exhausting the Go goroutine stack.
func TestCallEngineStackOverflowTraps(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeCall, 0x00,
		binary.OpcodeEnd,
	}
	m := &wasm.Module{
		TypeSection:     []wasm.FunctionType{{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}},
		FunctionSection: []uint32{0},
		CodeSection:     []wasm.Code{{Body: body}},
		ExportSection:   []wasm.Export{{Name: "loop", Type: api.ExternTypeFunc, Index: 0}},
	}
	engine := NewEngine(nil)
	engine.SetCallStackCeiling(64)

	_, err := instantiateAndRun(t, m, engine, "loop", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack")
}

// Loading past the end of linear memory must trap rather than panic or
// silently read garbage.
func TestCallEngineMemoryOutOfBoundsTraps(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeI32Load, 0x02, 0x00,
		binary.OpcodeEnd,
	}
	max := uint32(1)
	m := &wasm.Module{
		TypeSection:     []wasm.FunctionType{{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}},
		FunctionSection: []uint32{0},
		MemorySection:   []wasm.MemoryType{{Min: 1, Max: &max}},
		CodeSection:     []wasm.Code{{Body: body}},
		ExportSection:   []wasm.Export{{Name: "load", Type: api.ExternTypeFunc, Index: 0}},
	}
	engine := NewEngine(nil)

	_, err := instantiateAndRun(t, m, engine, "load", uint64(wasm.MemoryPageSize))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")
}

// A call_indirect through a table slot whose function signature does not
// match the call site's expected type must trap, not silently misinterpret
// the stack.
func TestCallEngineCallIndirectSignatureMismatchTraps(t *testing.T) {
	// type 0: () -> i32, type 1: (i32) -> i32
	// table[0] holds function 0, whose real type is 0.
	// caller invokes call_indirect expecting type 1 against table index 0.
	calleeBody := []byte{binary.OpcodeI32Const, 0x07, binary.OpcodeEnd}
	callerBody := []byte{
		binary.OpcodeI32Const, 0x05, // argument, irrelevant to the mismatch
		binary.OpcodeI32Const, 0x00, // table index
		binary.OpcodeCallIndirect, 0x01, 0x00, // expects type 1, table 0
		binary.OpcodeEnd,
	}
	maxTable := uint32(1)
	m := &wasm.Module{
		TypeSection: []wasm.FunctionType{
			{Results: []api.ValueType{api.ValueTypeI32}},
			{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}},
		},
		FunctionSection: []uint32{0, 1},
		TableSection:    []wasm.TableType{{Min: 1, Max: &maxTable}},
		ElementSection:  []wasm.ElementSegment{{TableIndex: 0, Offset: 0, FuncIndexes: []uint32{0}}},
		CodeSection: []wasm.Code{
			{Body: calleeBody},
			{Body: callerBody},
		},
		ExportSection: []wasm.Export{{Name: "caller", Type: api.ExternTypeFunc, Index: 1}},
	}
	engine := NewEngine(nil)

	_, err := instantiateAndRun(t, m, engine, "caller")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")
}
