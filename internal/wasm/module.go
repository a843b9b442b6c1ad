// Package wasm holds the typed module model consumed by the translator:
// the structures a conforming parser/validator would hand us, plus the
// runtime instances (globals, tables, memories, functions) a store
// allocates at instantiation. Binary decoding lives in the binary
// subpackage; validation of opcode-level type soundness is assumed to have
// already happened by the time a Module reaches internal/compiler.
package wasm

import "github.com/wasmium/wasmium/api"

// Features is a bitset of post-MVP proposals this build accepts.
type Features uint32

const (
	FeatureMultiValue Features = 1 << iota
	FeatureSignExtensionOps
	FeatureNonTrappingFloatToIntConversion
)

// Enabled reports whether every bit in want is set in f.
func (f Features) Enabled(want Features) bool { return f&want == want }

// DefaultFeatures matches the feature set this spec's scope names as
// in-bounds: MVP plus multi-value plus sign-extension plus saturating
// conversions.
const DefaultFeatures = FeatureMultiValue | FeatureSignExtensionOps | FeatureNonTrappingFloatToIntConversion

// FunctionType is a function signature: ordered parameter and result value
// types. Two FunctionTypes with the same Params/Results are
// interchangeable for call_indirect signature checks.
type FunctionType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// EqualsSignature reports whether ft has the same params and results as o.
func (ft *FunctionType) EqualsSignature(o *FunctionType) bool {
	if len(ft.Params) != len(o.Params) || len(ft.Results) != len(o.Results) {
		return false
	}
	for i, p := range ft.Params {
		if p != o.Params[i] {
			return false
		}
	}
	for i, r := range ft.Results {
		if r != o.Results[i] {
			return false
		}
	}
	return true
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType api.ValueType
	Mutable bool
}

// TableType describes a table's element limits. wasmium only supports
// funcref tables (reference-types beyond funcref are out of scope).
type TableType struct {
	Min uint32
	Max *uint32
}

// MemoryType describes a linear memory's page limits (1 page = 65536
// bytes).
type MemoryType struct {
	Min uint32
	Max *uint32
}

// Import is an entry in the import section. Exactly one of FuncType,
// Table, Memory, Global is meaningful, selected by Type.
type Import struct {
	Type       api.ExternType
	Module     string
	Name       string
	FuncType   uint32
	Table      TableType
	Memory     MemoryType
	Global     GlobalType
}

// Export is an entry in the export section.
type Export struct {
	Type  api.ExternType
	Name  string
	Index uint32
}

// Code is an undecoded function body: its local declarations, expanded
// one entry per local, plus the raw Wasm opcode stream, exactly as the spec's
// "Translator input" (§6) describes it.
type Code struct {
	// LocalTypes is locals only, already expanded (no params): one entry per
	// local, in declaration order.
	LocalTypes []api.ValueType
	// Body is the raw, validated opcode stream after the locals
	// declarations, up to and including the function's final "end".
	Body []byte
}

// GlobalInit is a global's initializer: either a constant or a reference to
// an imported global (the only two forms MVP const-exprs allow).
type GlobalInit struct {
	Type       GlobalType
	Value      uint64
	ImportedGlobalIndex uint32
	IsImportedGlobal    bool
}

// ElementSegment initializes a range of a table with function indices,
// resolved as an active segment (the only kind MVP supports).
type ElementSegment struct {
	TableIndex uint32
	// Offset is the constant i32 offset expression's resolved value.
	Offset     uint32
	FuncIndexes []uint32
}

// DataSegment initializes a range of linear memory 0 with literal bytes.
type DataSegment struct {
	// Offset is the constant i32 offset expression's resolved value.
	Offset uint32
	Init   []byte
}

// Module is the complete typed model of a parsed, validated Wasm binary:
// the input to Engine.CompileModule and, ultimately, to the translator.
type Module struct {
	TypeSection   []FunctionType
	ImportSection []Import
	// FunctionSection maps a module-local function index (past the
	// imports) to an index into TypeSection.
	FunctionSection []uint32
	TableSection    []TableType
	MemorySection   []MemoryType
	GlobalSection   []GlobalInit
	ExportSection   []Export
	// StartSection is the module-local index of the start function, or nil.
	StartSection *uint32
	ElementSection []ElementSegment
	CodeSection    []Code
	DataSection    []DataSegment

	// Names are best-effort debug names for module-local functions, empty
	// string where unknown. Never required for correctness.
	Names []string

	// ID identifies this module for the engine's code cache; two Modules
	// decoded from the same bytes share an ID so recompilation is skipped.
	ID ModuleID
}

// ModuleID is an opaque cache key for a decoded module, typically a content
// hash of its binary form.
type ModuleID string

// ImportedFunctionCount counts Import entries of ExternTypeFunc.
func (m *Module) ImportedFunctionCount() int {
	n := 0
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeFunc {
			n++
		}
	}
	return n
}

// ImportedGlobalCount counts Import entries of ExternTypeGlobal.
func (m *Module) ImportedGlobalCount() int {
	n := 0
	for _, i := range m.ImportSection {
		if i.Type == api.ExternTypeGlobal {
			n++
		}
	}
	return n
}

// TypeOfFunction resolves the FunctionType of the funcIdx-th function in
// the module-wide function index space (imports first, then
// FunctionSection in order).
func (m *Module) TypeOfFunction(funcIdx uint32) *FunctionType {
	importedFuncCount := uint32(0)
	for _, imp := range m.ImportSection {
		if imp.Type != api.ExternTypeFunc {
			continue
		}
		if importedFuncCount == funcIdx {
			return &m.TypeSection[imp.FuncType]
		}
		importedFuncCount++
	}
	localIdx := funcIdx - importedFuncCount
	return &m.TypeSection[m.FunctionSection[localIdx]]
}
