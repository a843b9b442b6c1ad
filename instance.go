package wasmium

import (
	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/wasm"
)

// Instance is a module bound to a Store: its own globals, tables, memory
// and functions, reachable by export name.
type Instance struct {
	store *Store
	inner *wasm.ModuleInstance
}

// ExportedFunction looks up name among the instance's exports, returning a
// callable Func, or false if there is no such function export.
func (i *Instance) ExportedFunction(name string) (*Func, bool) {
	fn, ok := i.inner.ExportedFunction(name)
	if !ok {
		return nil, false
	}
	return &Func{store: i.store, instance: i.inner, fn: fn}, true
}

// Memory returns the instance's linear memory, whether or not it is
// exported, or nil if it has none.
func (i *Instance) Memory() api.Memory {
	if i.inner.Memory == nil {
		return nil
	}
	return i.inner.Memory
}
