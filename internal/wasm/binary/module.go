package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/leb128"
	"github.com/wasmium/wasmium/internal/wasm"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion = uint32(1)

type sectionID = byte

const (
	sectionIDCustom sectionID = iota
	sectionIDType
	sectionIDImport
	sectionIDFunction
	sectionIDTable
	sectionIDMemory
	sectionIDGlobal
	sectionIDExport
	sectionIDStart
	sectionIDElement
	sectionIDCode
	sectionIDData
)

// DecodeModule parses the WebAssembly 1.0 binary format (plus sign-ext,
// non-trapping conversions, and multi-value, all of which only affect
// opcode and blocktype encodings already accounted for by the translator)
// into a *wasm.Module. It does not perform full type-soundness validation:
// that is the external collaborator's job per this engine's scope. It does
// check the framing (magic, version, section payload sizes, LEB128) and
// that the function and code sections agree in count; section order and
// index ranges are not checked.
func DecodeModule(r io.Reader) (*wasm.Module, error) {
	d := &decoder{r: bufioReader(r)}
	return d.decodeModule()
}

// bufioReader adapts r to the byteReader interface our LEB128 helpers need
// without pulling in bufio's larger surface where a plain wrapper suffices.
func bufioReader(r io.Reader) *reader {
	return &reader{r: r}
}

// reader is a minimal io.ByteReader adapter that counts the bytes consumed
// through it; decodeCodeSection uses the count to find where a body's
// instructions start. Truncation surfaces as an io.ReadFull error.
type reader struct {
	r    io.Reader
	read uint64
}

func (rd *reader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(rd.r, b[:]); err != nil {
		return 0, err
	}
	rd.read++
	return b[0], nil
}

func (rd *reader) readBytes(n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, err
	}
	rd.read += n
	return buf, nil
}

func (rd *reader) readU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(rd.r, buf[:]); err != nil {
		return 0, err
	}
	rd.read += 4
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (rd *reader) readVaruint32() (uint32, error) {
	v, _, err := leb128.ReadUint32(rd)
	return v, err
}

func (rd *reader) readVarint32() (int32, error) {
	v, _, err := leb128.ReadInt32(rd)
	return v, err
}

func (rd *reader) readName() (string, error) {
	n, err := rd.readVaruint32()
	if err != nil {
		return "", err
	}
	b, err := rd.readBytes(uint64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type decoder struct {
	r *reader
}

func (d *decoder) decodeModule() (*wasm.Module, error) {
	var magic [4]byte
	if err := readFull(d.r.r, magic[:]); err != nil {
		return nil, fmt.Errorf("binary: reading magic: %w", err)
	}
	if magic != wasmMagic {
		return nil, fmt.Errorf("binary: invalid magic %x", magic)
	}
	version, err := d.r.readU32()
	if err != nil {
		return nil, fmt.Errorf("binary: reading version: %w", err)
	}
	if version != wasmVersion {
		return nil, fmt.Errorf("binary: unsupported version %d", version)
	}

	m := &wasm.Module{}
	var sawCode, sawFunction bool
	for {
		id, err := d.r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		size, err := d.r.readVaruint32()
		if err != nil {
			return nil, fmt.Errorf("binary: section %d size: %w", id, err)
		}
		payload, err := d.r.readBytes(uint64(size))
		if err != nil {
			return nil, fmt.Errorf("binary: section %d payload: %w", id, err)
		}
		sd := &decoder{r: &reader{r: bytes.NewReader(payload)}}
		switch id {
		case sectionIDCustom:
			// Names and other custom sections are ignored: debug names are
			// best-effort and never required for correctness.
		case sectionIDType:
			if m.TypeSection, err = sd.decodeTypeSection(); err != nil {
				return nil, err
			}
		case sectionIDImport:
			if m.ImportSection, err = sd.decodeImportSection(); err != nil {
				return nil, err
			}
		case sectionIDFunction:
			sawFunction = true
			if m.FunctionSection, err = sd.decodeFunctionSection(); err != nil {
				return nil, err
			}
		case sectionIDTable:
			if m.TableSection, err = sd.decodeTableSection(); err != nil {
				return nil, err
			}
		case sectionIDMemory:
			if m.MemorySection, err = sd.decodeMemorySection(); err != nil {
				return nil, err
			}
		case sectionIDGlobal:
			if m.GlobalSection, err = sd.decodeGlobalSection(); err != nil {
				return nil, err
			}
		case sectionIDExport:
			if m.ExportSection, err = sd.decodeExportSection(); err != nil {
				return nil, err
			}
		case sectionIDStart:
			idx, err := sd.r.readVaruint32()
			if err != nil {
				return nil, err
			}
			m.StartSection = &idx
		case sectionIDElement:
			if m.ElementSection, err = sd.decodeElementSection(); err != nil {
				return nil, err
			}
		case sectionIDCode:
			sawCode = true
			if m.CodeSection, err = sd.decodeCodeSection(); err != nil {
				return nil, err
			}
		case sectionIDData:
			if m.DataSection, err = sd.decodeDataSection(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("binary: unknown section id %d", id)
		}
	}
	if sawFunction != sawCode {
		return nil, fmt.Errorf("binary: function and code section counts must match")
	}
	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("binary: function section declares %d functions, code section has %d",
			len(m.FunctionSection), len(m.CodeSection))
	}
	return m, nil
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	return err
}

func (d *decoder) decodeValueType() (api.ValueType, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
		return b, nil
	default:
		return 0, fmt.Errorf("binary: invalid value type %#x", b)
	}
}

func (d *decoder) decodeTypeSection() ([]wasm.FunctionType, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	types := make([]wasm.FunctionType, count)
	for i := range types {
		form, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("binary: expected func type form 0x60, got %#x", form)
		}
		nParams, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		params := make([]api.ValueType, nParams)
		for j := range params {
			if params[j], err = d.decodeValueType(); err != nil {
				return nil, err
			}
		}
		nResults, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		results := make([]api.ValueType, nResults)
		for j := range results {
			if results[j], err = d.decodeValueType(); err != nil {
				return nil, err
			}
		}
		types[i] = wasm.FunctionType{Params: params, Results: results}
	}
	return types, nil
}

func (d *decoder) decodeLimits() (min uint32, max *uint32, err error) {
	flag, err := d.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	if min, err = d.r.readVaruint32(); err != nil {
		return 0, nil, err
	}
	if flag == 1 {
		m, err := d.r.readVaruint32()
		if err != nil {
			return 0, nil, err
		}
		max = &m
	}
	return min, max, nil
}

func (d *decoder) decodeImportSection() ([]wasm.Import, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	imports := make([]wasm.Import, count)
	for i := range imports {
		mod, err := d.r.readName()
		if err != nil {
			return nil, err
		}
		name, err := d.r.readName()
		if err != nil {
			return nil, err
		}
		kind, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		imp := wasm.Import{Type: kind, Module: mod, Name: name}
		switch kind {
		case api.ExternTypeFunc:
			if imp.FuncType, err = d.r.readVaruint32(); err != nil {
				return nil, err
			}
		case api.ExternTypeTable:
			if _, err := d.r.ReadByte(); err != nil { // elemtype, always funcref
				return nil, err
			}
			min, max, err := d.decodeLimits()
			if err != nil {
				return nil, err
			}
			imp.Table = wasm.TableType{Min: min, Max: max}
		case api.ExternTypeMemory:
			min, max, err := d.decodeLimits()
			if err != nil {
				return nil, err
			}
			imp.Memory = wasm.MemoryType{Min: min, Max: max}
		case api.ExternTypeGlobal:
			vt, err := d.decodeValueType()
			if err != nil {
				return nil, err
			}
			mutByte, err := d.r.ReadByte()
			if err != nil {
				return nil, err
			}
			imp.Global = wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}
		default:
			return nil, fmt.Errorf("binary: invalid import kind %#x", kind)
		}
		imports[i] = imp
	}
	return imports, nil
}

func (d *decoder) decodeFunctionSection() ([]uint32, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		if out[i], err = d.r.readVaruint32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) decodeTableSection() ([]wasm.TableType, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.TableType, count)
	for i := range out {
		if _, err := d.r.ReadByte(); err != nil { // elemtype
			return nil, err
		}
		min, max, err := d.decodeLimits()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.TableType{Min: min, Max: max}
	}
	return out, nil
}

func (d *decoder) decodeMemorySection() ([]wasm.MemoryType, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.MemoryType, count)
	for i := range out {
		min, max, err := d.decodeLimits()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.MemoryType{Min: min, Max: max}
	}
	return out, nil
}

// decodeConstExprI32 decodes a constant expression restricted to the forms
// MVP initializers allow: i32.const or global.get, terminated by "end".
func (d *decoder) decodeConstExprI32() (value uint32, isGlobal bool, globalIdx uint32, err error) {
	op, err := d.r.ReadByte()
	if err != nil {
		return 0, false, 0, err
	}
	switch op {
	case OpcodeI32Const:
		v, err := d.r.readVarint32()
		if err != nil {
			return 0, false, 0, err
		}
		value = uint32(v)
	case OpcodeGlobalGet:
		idx, err := d.r.readVaruint32()
		if err != nil {
			return 0, false, 0, err
		}
		isGlobal, globalIdx = true, idx
	default:
		return 0, false, 0, fmt.Errorf("binary: unsupported const expr opcode %#x", op)
	}
	end, err := d.r.ReadByte()
	if err != nil {
		return 0, false, 0, err
	}
	if end != OpcodeEnd {
		return 0, false, 0, fmt.Errorf("binary: const expr missing end")
	}
	return value, isGlobal, globalIdx, nil
}

func (d *decoder) decodeGlobalSection() ([]wasm.GlobalInit, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.GlobalInit, count)
	for i := range out {
		vt, err := d.decodeValueType()
		if err != nil {
			return nil, err
		}
		mutByte, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		gt := wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}
		value, isGlobal, globalIdx, err := d.decodeConstExprI32()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.GlobalInit{
			Type: gt, Value: uint64(value),
			IsImportedGlobal: isGlobal, ImportedGlobalIndex: globalIdx,
		}
	}
	return out, nil
}

func (d *decoder) decodeExportSection() ([]wasm.Export, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Export, count)
	for i := range out {
		name, err := d.r.readName()
		if err != nil {
			return nil, err
		}
		kind, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		idx, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.Export{Type: kind, Name: name, Index: idx}
	}
	return out, nil
}

func (d *decoder) decodeElementSection() ([]wasm.ElementSegment, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ElementSegment, count)
	for i := range out {
		tableIdx, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		offset, _, _, err := d.decodeConstExprI32()
		if err != nil {
			return nil, err
		}
		n, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		idxs := make([]uint32, n)
		for j := range idxs {
			if idxs[j], err = d.r.readVaruint32(); err != nil {
				return nil, err
			}
		}
		out[i] = wasm.ElementSegment{TableIndex: tableIdx, Offset: offset, FuncIndexes: idxs}
	}
	return out, nil
}

func (d *decoder) decodeCodeSection() ([]wasm.Code, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Code, count)
	for i := range out {
		bodySize, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		body, err := d.r.readBytes(uint64(bodySize))
		if err != nil {
			return nil, err
		}
		br := &reader{r: bytes.NewReader(body)}
		localGroups, err := br.readVaruint32()
		if err != nil {
			return nil, err
		}
		var locals []api.ValueType
		for g := uint32(0); g < localGroups; g++ {
			n, err := br.readVaruint32()
			if err != nil {
				return nil, err
			}
			bd := &decoder{r: br}
			vt, err := bd.decodeValueType()
			if err != nil {
				return nil, err
			}
			for k := uint32(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		rest := body[br.read:]
		out[i] = wasm.Code{LocalTypes: locals, Body: rest}
	}
	return out, nil
}

func (d *decoder) decodeDataSection() ([]wasm.DataSegment, error) {
	count, err := d.r.readVaruint32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.DataSegment, count)
	for i := range out {
		memIdx, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		if memIdx != 0 {
			return nil, fmt.Errorf("binary: multiple memories not supported")
		}
		offset, _, _, err := d.decodeConstExprI32()
		if err != nil {
			return nil, err
		}
		n, err := d.r.readVaruint32()
		if err != nil {
			return nil, err
		}
		init, err := d.r.readBytes(uint64(n))
		if err != nil {
			return nil, err
		}
		out[i] = wasm.DataSegment{Offset: offset, Init: init}
	}
	return out, nil
}

