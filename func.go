package wasmium

import (
	"context"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/interpreter"
	"github.com/wasmium/wasmium/internal/wasm"
)

// Func is a callable export, implementing api.Function.
type Func struct {
	store    *Store
	instance *wasm.ModuleInstance
	fn       *wasm.FunctionInstance
}

var _ api.Function = (*Func)(nil)

// ParamTypes implements api.Function.
func (f *Func) ParamTypes() []api.ValueType { return f.fn.Type.Params }

// ResultTypes implements api.Function.
func (f *Func) ResultTypes() []api.ValueType { return f.fn.Type.Results }

// Call implements api.Function.
func (f *Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return interpreter.Call(ctx, f.store.engine.inner, f.store.inner, f.instance, f.fn, params)
}
