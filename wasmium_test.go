package wasmium

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/leb128"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

// The helpers below hand-assemble minimal WebAssembly binaries so the
// end-to-end tests exercise the real decode -> compile -> instantiate ->
// call pipeline without needing an external wat2wasm toolchain.

type typeSig struct {
	params, results []byte
}

type funcDef struct {
	typeIdx uint32
	body    []byte
}

type exportDef struct {
	name  string
	kind  byte
	index uint32
}

type importDef struct {
	module, name string
	typeIdx      uint32
}

type dataSeg struct {
	offset uint32
	init   []byte
}

type globalDef struct {
	valType byte
	mutable bool
	init    int32
}

func buildModule(t *testing.T, types []typeSig, imports []importDef, funcs []funcDef, exports []exportDef, memMinPages *uint32, data []dataSeg) []byte {
	return buildModuleWithGlobals(t, types, imports, funcs, nil, exports, memMinPages, data)
}

func buildModuleWithGlobals(t *testing.T, types []typeSig, imports []importDef, funcs []funcDef, globals []globalDef, exports []exportDef, memMinPages *uint32, data []dataSeg) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(types) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(types))))
		for _, ty := range types {
			p.WriteByte(0x60)
			p.Write(leb128.EncodeUint32(uint32(len(ty.params))))
			p.Write(ty.params)
			p.Write(leb128.EncodeUint32(uint32(len(ty.results))))
			p.Write(ty.results)
		}
		writeSection(&buf, 1, p.Bytes())
	}

	if len(imports) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(imports))))
		for _, im := range imports {
			writeName(&p, im.module)
			writeName(&p, im.name)
			p.WriteByte(api.ExternTypeFunc)
			p.Write(leb128.EncodeUint32(im.typeIdx))
		}
		writeSection(&buf, 2, p.Bytes())
	}

	if len(funcs) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(funcs))))
		for _, fn := range funcs {
			p.Write(leb128.EncodeUint32(fn.typeIdx))
		}
		writeSection(&buf, 3, p.Bytes())
	}

	if len(globals) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(globals))))
		for _, g := range globals {
			p.WriteByte(g.valType)
			if g.mutable {
				p.WriteByte(0x01)
			} else {
				p.WriteByte(0x00)
			}
			p.WriteByte(binary.OpcodeI32Const)
			p.Write(leb128.EncodeInt32(g.init))
			p.WriteByte(binary.OpcodeEnd)
		}
		writeSection(&buf, 6, p.Bytes())
	}

	if memMinPages != nil {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(1))
		p.WriteByte(0x00) // no max
		p.Write(leb128.EncodeUint32(*memMinPages))
		writeSection(&buf, 5, p.Bytes())
	}

	if len(exports) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(exports))))
		for _, e := range exports {
			writeName(&p, e.name)
			p.WriteByte(e.kind)
			p.Write(leb128.EncodeUint32(e.index))
		}
		writeSection(&buf, 7, p.Bytes())
	}

	if len(funcs) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(funcs))))
		for _, fn := range funcs {
			var body bytes.Buffer
			body.Write(leb128.EncodeUint32(0)) // no local groups
			body.Write(fn.body)
			p.Write(leb128.EncodeUint32(uint32(body.Len())))
			p.Write(body.Bytes())
		}
		writeSection(&buf, 10, p.Bytes())
	}

	if len(data) > 0 {
		var p bytes.Buffer
		p.Write(leb128.EncodeUint32(uint32(len(data))))
		for _, d := range data {
			p.Write(leb128.EncodeUint32(0)) // memory index 0
			p.WriteByte(binary.OpcodeI32Const)
			p.Write(leb128.EncodeInt32(int32(d.offset)))
			p.WriteByte(binary.OpcodeEnd)
			p.Write(leb128.EncodeUint32(uint32(len(d.init))))
			p.Write(d.init)
		}
		writeSection(&buf, 11, p.Bytes())
	}

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, id byte, payload []byte) {
	buf.WriteByte(id)
	buf.Write(leb128.EncodeUint32(uint32(len(payload))))
	buf.Write(payload)
}

func writeName(buf *bytes.Buffer, s string) {
	buf.Write(leb128.EncodeUint32(uint32(len(s))))
	buf.WriteString(s)
}

func TestEndToEndAdd(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeLocalGet, 0x01,
		binary.OpcodeI32Add,
		binary.OpcodeEnd,
	}
	wasmBytes := buildModule(t,
		[]typeSig{{params: []byte{api.ValueTypeI32, api.ValueTypeI32}, results: []byte{api.ValueTypeI32}}},
		nil,
		[]funcDef{{typeIdx: 0, body: body}},
		[]exportDef{{name: "add", kind: api.ExternTypeFunc, index: 0}},
		nil, nil,
	)

	m, err := DecodeModule(wasmBytes)
	require.NoError(t, err)
	assert.Equal(t, []string{"add"}, m.ExportedFunctionNames())

	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(m))

	store := NewStore(engine)
	linker := NewLinker(store)
	inst, err := linker.Instantiate(context.Background(), "main", m)
	require.NoError(t, err)

	fn, ok := inst.ExportedFunction("add")
	require.True(t, ok)
	results, err := fn.Call(context.Background(), api.EncodeI32(1), api.EncodeI32(2))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(3), int32(uint32(results[0])))
}

// factorial(n) = n == 0 ? 1 : n * factorial(n-1), recursing through
// call_indirect-free direct self-recursion (function index 0 calling itself).
func TestEndToEndRecursiveFactorial(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeI32Eqz,
		binary.OpcodeIf, 0x7f, // if (result i32)
		binary.OpcodeI32Const, 0x01,
		binary.OpcodeElse,
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeI32Const, 0x01,
		binary.OpcodeI32Sub,
		binary.OpcodeCall, 0x00,
		binary.OpcodeI32Mul,
		binary.OpcodeEnd,
		binary.OpcodeEnd,
	}
	wasmBytes := buildModule(t,
		[]typeSig{{params: []byte{api.ValueTypeI32}, results: []byte{api.ValueTypeI32}}},
		nil,
		[]funcDef{{typeIdx: 0, body: body}},
		[]exportDef{{name: "factorial", kind: api.ExternTypeFunc, index: 0}},
		nil, nil,
	)

	m, err := DecodeModule(wasmBytes)
	require.NoError(t, err)

	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(m))
	store := NewStore(engine)
	linker := NewLinker(store)
	inst, err := linker.Instantiate(context.Background(), "main", m)
	require.NoError(t, err)

	fn, ok := inst.ExportedFunction("factorial")
	require.True(t, ok)
	results, err := fn.Call(context.Background(), api.EncodeI32(5))
	require.NoError(t, err)
	assert.Equal(t, int32(120), int32(uint32(results[0])))
}

// sumBytes sums a data segment's bytes by looping with a manual counter,
// exercising memory reads, locals and backward branches together.
func TestEndToEndMemorySumBytes(t *testing.T) {
	// locals: 0 = i (param, byte count), 1 = acc, 2 = idx
	// acc = 0; idx = 0
	// loop:
	//   if idx >= i break
	//   acc += load8_u(idx)
	//   idx += 1
	//   br loop
	// return acc
	body := []byte{
		// acc (local 1) and idx (local 2) start at 0: the caller passes 0 for both.
		binary.OpcodeBlock, 0x40,
		binary.OpcodeLoop, 0x40,
		binary.OpcodeLocalGet, 0x02,
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeI32GeU,
		binary.OpcodeBrIf, 0x01, // break out of block if idx >= n
		binary.OpcodeLocalGet, 0x01,
		binary.OpcodeLocalGet, 0x02,
		binary.OpcodeI32Load8U, 0x00, 0x00, // align=0, offset=0
		binary.OpcodeI32Add,
		binary.OpcodeLocalSet, 0x01,
		binary.OpcodeLocalGet, 0x02,
		binary.OpcodeI32Const, 0x01,
		binary.OpcodeI32Add,
		binary.OpcodeLocalSet, 0x02,
		binary.OpcodeBr, 0x00,
		binary.OpcodeEnd, // end loop
		binary.OpcodeEnd, // end block
		binary.OpcodeLocalGet, 0x01,
		binary.OpcodeEnd, // end function
	}
	// The function takes n plus two extra i32 params standing in for the
	// locals acc and idx, since buildModule's bodies carry no local-group
	// encoding; the caller passes 0 for both.
	wasmBytes := buildModule(t,
		[]typeSig{{params: []byte{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, results: []byte{api.ValueTypeI32}}},
		nil,
		[]funcDef{{typeIdx: 0, body: body}},
		[]exportDef{{name: "sum", kind: api.ExternTypeFunc, index: 0}},
		refPages(1), []dataSeg{{offset: 0, init: []byte{1, 2, 3, 4, 5}}},
	)

	m, err := DecodeModule(wasmBytes)
	require.NoError(t, err)

	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(m))
	store := NewStore(engine)
	linker := NewLinker(store)
	inst, err := linker.Instantiate(context.Background(), "main", m)
	require.NoError(t, err)

	fn, ok := inst.ExportedFunction("sum")
	require.True(t, ok)
	results, err := fn.Call(context.Background(), api.EncodeI32(5), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(15), int32(uint32(results[0])))

	mem := inst.Memory()
	require.NotNil(t, mem)
	b, ok := mem.Read(0, 5)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b)
}

func refPages(n uint32) *uint32 { return &n }

// A host function imported as env.double, called from a Wasm export.
func TestEndToEndHostCall(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeCall, 0x00, // function index 0 is the import
		binary.OpcodeEnd,
	}
	wasmBytes := buildModule(t,
		[]typeSig{{params: []byte{api.ValueTypeI32}, results: []byte{api.ValueTypeI32}}},
		[]importDef{{module: "env", name: "double", typeIdx: 0}},
		[]funcDef{{typeIdx: 0, body: body}},
		[]exportDef{{name: "call_double", kind: api.ExternTypeFunc, index: 1}},
		nil, nil,
	)

	m, err := DecodeModule(wasmBytes)
	require.NoError(t, err)

	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(m))
	store := NewStore(engine)
	linker := NewLinker(store)
	require.NoError(t, linker.DefineFunc("env", "double", func(n int32) int32 { return n * 2 }))

	inst, err := linker.Instantiate(context.Background(), "main", m)
	require.NoError(t, err)

	fn, ok := inst.ExportedFunction("call_double")
	require.True(t, ok)
	results, err := fn.Call(context.Background(), api.EncodeI32(21))
	require.NoError(t, err)
	assert.Equal(t, int32(42), int32(uint32(results[0])))
}

// A Wasm function imported cross-module must read its own defining
// instance's globals, not the importing instance's: module a's "get"
// export reads a's global (100); module b has its own global 0 set to a
// different value (200) and imports a.get, so calling it through b must
// still see a's 100, never b's 200.
func TestEndToEndCrossInstanceFunctionImportUsesOwnModuleGlobals(t *testing.T) {
	getBody := []byte{
		binary.OpcodeGlobalGet, 0x00,
		binary.OpcodeEnd,
	}
	aBytes := buildModuleWithGlobals(t,
		[]typeSig{{results: []byte{api.ValueTypeI32}}},
		nil,
		[]funcDef{{typeIdx: 0, body: getBody}},
		[]globalDef{{valType: api.ValueTypeI32, mutable: true, init: 100}},
		[]exportDef{{name: "get", kind: api.ExternTypeFunc, index: 0}},
		nil, nil,
	)

	callGetBody := []byte{
		binary.OpcodeCall, 0x00, // function index 0 is the import
		binary.OpcodeEnd,
	}
	bBytes := buildModuleWithGlobals(t,
		[]typeSig{{results: []byte{api.ValueTypeI32}}},
		[]importDef{{module: "a", name: "get", typeIdx: 0}},
		[]funcDef{{typeIdx: 0, body: callGetBody}},
		[]globalDef{{valType: api.ValueTypeI32, mutable: true, init: 200}},
		[]exportDef{{name: "call_get", kind: api.ExternTypeFunc, index: 1}},
		nil, nil,
	)

	aModule, err := DecodeModule(aBytes)
	require.NoError(t, err)
	bModule, err := DecodeModule(bBytes)
	require.NoError(t, err)

	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(aModule))
	require.NoError(t, engine.CompileModule(bModule))

	store := NewStore(engine)
	linker := NewLinker(store)

	_, err = linker.Instantiate(context.Background(), "a", aModule)
	require.NoError(t, err)

	bInst, err := linker.Instantiate(context.Background(), "b", bModule)
	require.NoError(t, err)

	fn, ok := bInst.ExportedFunction("call_get")
	require.True(t, ok)
	results, err := fn.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(100), int32(uint32(results[0])))
}

func TestEndToEndTrapDivideByZero(t *testing.T) {
	body := []byte{
		binary.OpcodeLocalGet, 0x00,
		binary.OpcodeLocalGet, 0x01,
		binary.OpcodeI32DivS,
		binary.OpcodeEnd,
	}
	wasmBytes := buildModule(t,
		[]typeSig{{params: []byte{api.ValueTypeI32, api.ValueTypeI32}, results: []byte{api.ValueTypeI32}}},
		nil,
		[]funcDef{{typeIdx: 0, body: body}},
		[]exportDef{{name: "div", kind: api.ExternTypeFunc, index: 0}},
		nil, nil,
	)

	m, err := DecodeModule(wasmBytes)
	require.NoError(t, err)
	engine := NewEngine(nil)
	require.NoError(t, engine.CompileModule(m))
	store := NewStore(engine)
	linker := NewLinker(store)
	inst, err := linker.Instantiate(context.Background(), "main", m)
	require.NoError(t, err)

	fn, ok := inst.ExportedFunction("div")
	require.True(t, ok)
	_, err = fn.Call(context.Background(), api.EncodeI32(10), api.EncodeI32(0))
	assert.Error(t, err)
}
