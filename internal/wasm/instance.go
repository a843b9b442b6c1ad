package wasm

import (
	"context"

	"github.com/wasmium/wasmium/api"
)

// FunctionInstance is a function ready to run: either backed by translated
// code (GoFunc == nil) or by a host closure (GoFunc != nil).
type FunctionInstance struct {
	Type       *FunctionType
	ModuleName string
	Name       string
	// Idx is this function's index in its defining module's function index
	// space (imports first).
	Idx uint32
	// GoFunc is set for host-registered functions; it is invoked directly by
	// the interpreter's host call bridge instead of being translated.
	GoFunc HostFunc
	// DefiningModule and LocalIndex locate this function's translated code
	// in the engine's code heap; meaningless when GoFunc is set.
	DefiningModule ModuleID
	LocalIndex     uint32
	// Instance is the ModuleInstance this function was defined in, set once
	// at instantiation time. A frame running this function is always bound
	// to Instance, never to whatever instance happens to be calling it —
	// an imported function's globals, memory and tables belong to the
	// module that defined it, not to the module that imports it. Nil for
	// host functions, which have no defining instance of their own.
	Instance *ModuleInstance
}

// HostFunc is the Go-native ABI a host function is called through: operands
// already encoded per ValueType, in order, with results likewise encoded.
type HostFunc func(ctx context.Context, caller Caller, params []uint64) ([]uint64, error)

// Caller is the short-lived, typed view a host function receives of the
// store and the Wasm frame that invoked it. It must not be retained past
// the call: every field is only valid while the originating HostFunc is on
// the Go call stack.
type Caller struct {
	Instance *ModuleInstance
	store    *Store
}

// NewCaller constructs a Caller bound to store and, if the call originated
// from a Wasm frame, the calling instance.
func NewCaller(store *Store, instance *ModuleInstance) Caller {
	return Caller{Instance: instance, store: store}
}

// Memory returns the calling instance's linear memory, whether or not it is
// exported, or nil if there isn't one. Host functions that need memory access should use
// this rather than stashing a Memory from module setup, since the caller's
// memory can differ per call site when a function is imported by several
// modules.
func (c Caller) Memory() *MemoryInstance {
	if c.Instance == nil {
		return nil
	}
	return c.Instance.Memory
}

// Store returns the store this call is running against.
func (c Caller) Store() *Store { return c.store }

// GlobalInstance is a live global: Val holds the current value, encoded per
// Type.ValType.
type GlobalInstance struct {
	Type *GlobalType
	Val  uint64
}

// TableInstance is a live table of function references. A nil entry is an
// uninitialized element (traps ElemUninitialized on call_indirect).
type TableInstance struct {
	Type       *TableType
	References []*FunctionInstance
}

// ModuleInstance is a module bound to a Store: its own globals, tables,
// memory and function instances, reachable by module-local index.
type ModuleInstance struct {
	Name      string
	Functions []*FunctionInstance
	Globals   []*GlobalInstance
	Tables    []*TableInstance
	Memory    *MemoryInstance
	Exports   map[string]Export
	Types     []FunctionType
}

// ExportedFunction looks up name among this instance's exports.
func (m *ModuleInstance) ExportedFunction(name string) (*FunctionInstance, bool) {
	e, ok := m.Exports[name]
	if !ok || e.Type != api.ExternTypeFunc {
		return nil, false
	}
	return m.Functions[e.Index], true
}

// ExportedGlobal looks up name among this instance's exports.
func (m *ModuleInstance) ExportedGlobal(name string) (*GlobalInstance, bool) {
	e, ok := m.Exports[name]
	if !ok || e.Type != api.ExternTypeGlobal {
		return nil, false
	}
	return m.Globals[e.Index], true
}
