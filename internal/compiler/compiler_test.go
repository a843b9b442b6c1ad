package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

func addModule(t *testing.T) *wasm.Module {
	t.Helper()
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeLocalGet, 0x01,
		binary.OpcodeI32Add,
		binary.OpcodeEnd,
	}
	return &wasm.Module{
		TypeSection: []wasm.FunctionType{{
			Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			Results: []api.ValueType{api.ValueTypeI32},
		}},
		FunctionSection: []uint32{0},
		CodeSection:     []wasm.Code{{Body: body}},
	}
}

func TestCompileFunctionsAdd(t *testing.T) {
	m := addModule(t)
	codes, err := CompileFunctions(m, wasm.DefaultFeatures)
	require.NoError(t, err)
	require.Len(t, codes, 1)

	code := codes[0]
	var kinds []ir.Kind
	for _, in := range code {
		kinds = append(kinds, in.Kind)
	}
	assert.Equal(t, []ir.Kind{ir.KindLocalGet, ir.KindLocalGet, ir.KindAdd}, kinds)
	assert.Equal(t, ir.NumTypeI32, code[2].Type)
}

// An unconditional branch out of a block must drop any operands the block
// pushed before the branch down to the block's declared result arity.
func TestCompileFunctionsBranchComputesDropKeep(t *testing.T) {
	// (i32.const 1) (block (result i32) (i32.const 2) (br 0)) (drop)
	body := []byte{
		binary.OpcodeI32Const, 0x01,
		binary.OpcodeBlock, api.ValueTypeI32,
		binary.OpcodeI32Const, 0x02,
		binary.OpcodeBr, 0x00,
		binary.OpcodeEnd,
		binary.OpcodeDrop,
		binary.OpcodeEnd,
	}
	m := &wasm.Module{
		TypeSection:     []wasm.FunctionType{{}},
		FunctionSection: []uint32{0},
		CodeSection:     []wasm.Code{{Body: body}},
	}
	codes, err := CompileFunctions(m, wasm.DefaultFeatures)
	require.NoError(t, err)
	code := codes[0]

	var brIdx = -1
	for i, in := range code {
		if in.Kind == ir.KindBr {
			brIdx = i
		}
	}
	require.GreaterOrEqual(t, brIdx, 0)
	// Nothing sits between the block's entry height and its single i32
	// result at the point of the br, so there is nothing to drop: the
	// outer i32.const 1 is beneath entryHeight, not above it.
	assert.Equal(t, ir.DropKeep{Drop: 0, Keep: 1}, code[brIdx].Target.DropKeep)
}

func TestCompileFunctionsRejectsTruncatedBody(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []wasm.FunctionType{{}},
		FunctionSection: []uint32{0},
		CodeSection:     []wasm.Code{{Body: []byte{binary.OpcodeNop}}}, // missing end
	}
	_, err := CompileFunctions(m, wasm.DefaultFeatures)
	assert.Error(t, err)
}
