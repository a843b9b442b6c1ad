// Package api includes the constants and interfaces shared by end users and
// internal implementations of wasmium.
package api

import (
	"context"
	"fmt"
	"math"
)

// ValueType describes a numeric type used in WebAssembly 1.0. Function
// parameters, results, locals and globals are all declared with one of
// these four.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the text format name of t, or "unknown" if t is not
// one of the ValueType constants.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// ExternType classifies an import or export.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// EncodeI32 encodes input as a ValueTypeI32-shaped uint64.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes input as a ValueTypeI64-shaped uint64.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes input as a ValueTypeF32-shaped uint64, preserving the
// exact bit pattern including any NaN payload.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 is the inverse of EncodeF32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes input as a ValueTypeF64-shaped uint64, preserving the
// exact bit pattern including any NaN payload.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 is the inverse of EncodeF64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// Closer closes a resource.
type Closer interface {
	// Close closes the resource. When ctx is nil, it defaults to
	// context.Background.
	Close(ctx context.Context) error
}

// Global is a WebAssembly global exported from an instantiated module.
type Global interface {
	fmt.Stringer

	// Type describes the numeric type of the global.
	Type() ValueType

	// Get returns the current value of this global.
	Get() uint64
}

// MutableGlobal is a Global whose value can be updated at runtime.
type MutableGlobal interface {
	Global

	// Set updates the value of this global.
	Set(v uint64)
}

// Memory allows restricted access to a module's linear memory.
//
// All multi-byte values are little-endian, per the WebAssembly spec.
type Memory interface {
	// Size returns the size in bytes currently available.
	Size() uint32

	// Grow increases memory by deltaPages (65536 bytes each). It returns the
	// previous size in pages, or false if the delta would exceed the
	// configured maximum.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte at offset, or false if out of range.
	ReadByte(offset uint32) (byte, bool)

	// ReadUint16Le reads a little-endian uint16 at offset.
	ReadUint16Le(offset uint32) (uint16, bool)

	// ReadUint32Le reads a little-endian uint32 at offset.
	ReadUint32Le(offset uint32) (uint32, bool)

	// ReadUint64Le reads a little-endian uint64 at offset.
	ReadUint64Le(offset uint32) (uint64, bool)

	// ReadFloat32Le reads a 32-bit IEEE-754 little-endian float at offset.
	ReadFloat32Le(offset uint32) (float32, bool)

	// ReadFloat64Le reads a 64-bit IEEE-754 little-endian float at offset.
	ReadFloat64Le(offset uint32) (float64, bool)

	// Read returns a write-through view of byteCount bytes at offset, or
	// false if out of range.
	Read(offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at offset.
	WriteByte(offset uint32, v byte) bool

	// WriteUint16Le writes a little-endian uint16 at offset.
	WriteUint16Le(offset uint32, v uint16) bool

	// WriteUint32Le writes a little-endian uint32 at offset.
	WriteUint32Le(offset uint32, v uint32) bool

	// WriteUint64Le writes a little-endian uint64 at offset.
	WriteUint64Le(offset uint32, v uint64) bool

	// WriteFloat32Le writes a 32-bit IEEE-754 little-endian float at offset.
	WriteFloat32Le(offset uint32, v float32) bool

	// WriteFloat64Le writes a 64-bit IEEE-754 little-endian float at offset.
	WriteFloat64Le(offset uint32, v float64) bool

	// Write writes v at offset.
	Write(offset uint32, v []byte) bool
}

// Function is a WebAssembly function exported from an instantiated module.
type Function interface {
	// ParamTypes are the value types this function accepts, in order.
	ParamTypes() []ValueType

	// ResultTypes are the value types this function returns, in order.
	ResultTypes() []ValueType

	// Call invokes the function. params and the returned results are encoded
	// per ValueType: see EncodeI32 et al.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}
