package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/leb128"
)

func section(id sectionID, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(id)
	buf.Write(leb128.EncodeUint32(uint32(len(payload))))
	buf.Write(payload)
	return buf.Bytes()
}

// buildAddModule hand-assembles the binary for a module exporting a single
// function "add" of type (i32, i32) -> i32, computing local.get 0 +
// local.get 1.
func buildAddModule(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(wasmMagic[:])
	buf.Write([]byte{byte(wasmVersion), 0, 0, 0})

	// Type section: one functype, (i32 i32) -> i32.
	var typePayload bytes.Buffer
	typePayload.Write(leb128.EncodeUint32(1)) // 1 type
	typePayload.WriteByte(0x60)               // func form
	typePayload.Write(leb128.EncodeUint32(2)) // 2 params
	typePayload.WriteByte(api.ValueTypeI32)
	typePayload.WriteByte(api.ValueTypeI32)
	typePayload.Write(leb128.EncodeUint32(1)) // 1 result
	typePayload.WriteByte(api.ValueTypeI32)
	buf.Write(section(sectionIDType, typePayload.Bytes()))

	// Function section: one function, type index 0.
	var funcPayload bytes.Buffer
	funcPayload.Write(leb128.EncodeUint32(1))
	funcPayload.Write(leb128.EncodeUint32(0))
	buf.Write(section(sectionIDFunction, funcPayload.Bytes()))

	// Export section: export function 0 as "add".
	var exportPayload bytes.Buffer
	exportPayload.Write(leb128.EncodeUint32(1))
	exportPayload.Write(leb128.EncodeUint32(uint32(len("add"))))
	exportPayload.WriteString("add")
	exportPayload.WriteByte(api.ExternTypeFunc)
	exportPayload.Write(leb128.EncodeUint32(0))
	buf.Write(section(sectionIDExport, exportPayload.Bytes()))

	// Code section: one body, no locals, local.get 0; local.get 1; i32.add; end.
	var body bytes.Buffer
	body.Write(leb128.EncodeUint32(0)) // 0 local groups
	body.WriteByte(OpcodeLocalGet)
	body.Write(leb128.EncodeUint32(0))
	body.WriteByte(OpcodeLocalGet)
	body.Write(leb128.EncodeUint32(1))
	body.WriteByte(OpcodeI32Add)
	body.WriteByte(OpcodeEnd)

	var codePayload bytes.Buffer
	codePayload.Write(leb128.EncodeUint32(1))
	codePayload.Write(leb128.EncodeUint32(uint32(body.Len())))
	codePayload.Write(body.Bytes())
	buf.Write(section(sectionIDCode, codePayload.Bytes()))

	return buf.Bytes()
}

func TestDecodeModuleAdd(t *testing.T) {
	wasmBytes := buildAddModule(t)

	m, err := DecodeModule(bytes.NewReader(wasmBytes))
	require.NoError(t, err)

	require.Len(t, m.TypeSection, 1)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, m.TypeSection[0].Params)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, m.TypeSection[0].Results)

	require.Len(t, m.FunctionSection, 1)
	assert.Equal(t, uint32(0), m.FunctionSection[0])

	require.Len(t, m.ExportSection, 1)
	assert.Equal(t, "add", m.ExportSection[0].Name)
	assert.Equal(t, api.ExternTypeFunc, m.ExportSection[0].Type)

	require.Len(t, m.CodeSection, 1)
	assert.Equal(t, []byte{OpcodeLocalGet, 0x00, OpcodeLocalGet, 0x01, OpcodeI32Add, OpcodeEnd}, m.CodeSection[0].Body)
}

func TestDecodeModuleRejectsBadMagic(t *testing.T) {
	_, err := DecodeModule(bytes.NewReader([]byte{0, 1, 2, 3}))
	assert.Error(t, err)
}

func TestDecodeModuleRejectsMismatchedFunctionAndCodeCounts(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(wasmMagic[:])
	buf.Write([]byte{1, 0, 0, 0})

	var funcPayload bytes.Buffer
	funcPayload.Write(leb128.EncodeUint32(1))
	funcPayload.Write(leb128.EncodeUint32(0))
	buf.Write(section(sectionIDFunction, funcPayload.Bytes()))
	// No code section at all: counts must match (1 declared, 0 present).

	_, err := DecodeModule(bytes.NewReader(buf.Bytes()))
	assert.Error(t, err)
}
