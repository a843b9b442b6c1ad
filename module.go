package wasmium

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/wasm"
	"github.com/wasmium/wasmium/internal/wasm/binary"
)

// Module is a decoded WebAssembly binary, not yet instantiated. It carries
// no runtime state of its own; Engine.CompileModule translates it, and
// Linker.Instantiate allocates the globals, tables, memory and functions
// that make up a live Instance.
type Module struct {
	m *wasm.Module
}

// DecodeModule parses a WebAssembly 1.0 binary (plus the features this
// build always accepts: multi-value, sign-extension and saturating
// conversions) into a Module. The module's ID, used by Engine's code
// cache, is derived from a content hash of wasmBytes: decoding and
// instantiating the same bytes twice never re-translates.
func DecodeModule(wasmBytes []byte) (*Module, error) {
	m, err := binary.DecodeModule(bytes.NewReader(wasmBytes))
	if err != nil {
		return nil, fmt.Errorf("wasmium: decoding module: %w", err)
	}
	sum := sha256.Sum256(wasmBytes)
	m.ID = wasm.ModuleID(sum[:])
	return &Module{m: m}, nil
}

// ExportedFunctionNames returns the module's exported function names, in
// export-section order.
func (m *Module) ExportedFunctionNames() []string {
	var names []string
	for _, e := range m.m.ExportSection {
		if e.Type == api.ExternTypeFunc {
			names = append(names, e.Name)
		}
	}
	return names
}
