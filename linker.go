package wasmium

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/interpreter"
	"github.com/wasmium/wasmium/internal/wasm"
)

// Linker resolves a module's imports against host functions and other
// instances' exports, then instantiates it. It implements
// interpreter.ImportProvider directly: Instantiate hands itself to the
// interpreter as the import resolver.
type Linker struct {
	store *Store

	funcs    map[string]map[string]*wasm.FunctionInstance
	globals  map[string]map[string]*wasm.GlobalInstance
	memories map[string]map[string]*wasm.MemoryInstance
	tables   map[string]map[string]*wasm.TableInstance
}

// NewLinker returns a Linker that instantiates modules into store.
func NewLinker(store *Store) *Linker {
	return &Linker{
		store:    store,
		funcs:    map[string]map[string]*wasm.FunctionInstance{},
		globals:  map[string]map[string]*wasm.GlobalInstance{},
		memories: map[string]map[string]*wasm.MemoryInstance{},
		tables:   map[string]map[string]*wasm.TableInstance{},
	}
}

// DefineFunc registers fn as moduleName.name, callable from any module
// instantiated through l that imports it.
//
// fn must be a Go func. Its first parameter may optionally be
// context.Context or wasm.Caller; every remaining parameter and result must be one of
// uint32, int32, uint64, int64, float32, float64; its last result may
// optionally be error. Anything else is rejected at definition time rather
// than surfacing as an obscure trap later.
func (l *Linker) DefineFunc(moduleName, name string, fn interface{}) error {
	hostFn, sig, err := reflectHostFunc(fn)
	if err != nil {
		return fmt.Errorf("wasmium: defining %s.%s: %w", moduleName, name, err)
	}
	if l.funcs[moduleName] == nil {
		l.funcs[moduleName] = map[string]*wasm.FunctionInstance{}
	}
	l.funcs[moduleName][name] = &wasm.FunctionInstance{
		Type:       sig,
		ModuleName: moduleName,
		Name:       name,
		GoFunc:     hostFn,
	}
	return nil
}

// ResolveFunc implements interpreter.ImportProvider.
func (l *Linker) ResolveFunc(module, name string) (*wasm.FunctionInstance, bool) {
	if f, ok := l.funcs[module][name]; ok {
		return f, true
	}
	if inst, ok := l.store.inner.Module(module); ok {
		return inst.ExportedFunction(name)
	}
	return nil, false
}

// ResolveGlobal implements interpreter.ImportProvider.
func (l *Linker) ResolveGlobal(module, name string) (*wasm.GlobalInstance, bool) {
	if g, ok := l.globals[module][name]; ok {
		return g, true
	}
	if inst, ok := l.store.inner.Module(module); ok {
		return inst.ExportedGlobal(name)
	}
	return nil, false
}

// ResolveMemory implements interpreter.ImportProvider.
func (l *Linker) ResolveMemory(module, name string) (*wasm.MemoryInstance, bool) {
	if m, ok := l.memories[module][name]; ok {
		return m, true
	}
	if inst, ok := l.store.inner.Module(module); ok && name == "memory" {
		return inst.Memory, inst.Memory != nil
	}
	return nil, false
}

// ResolveTable implements interpreter.ImportProvider.
func (l *Linker) ResolveTable(module, name string) (*wasm.TableInstance, bool) {
	t, ok := l.tables[module][name]
	return t, ok
}

// Instantiate compiles m if needed, allocates its runtime state, runs its
// start function if declared, registers the result in l's store under
// name, and returns it.
func (l *Linker) Instantiate(ctx context.Context, name string, m *Module) (*Instance, error) {
	if err := l.store.engine.CompileModule(m); err != nil {
		return nil, err
	}
	inst, err := interpreter.Instantiate(ctx, l.store.engine.inner, l.store.inner, m.m, name, l)
	if err != nil {
		return nil, fmt.Errorf("wasmium: instantiating %s: %w", name, err)
	}
	l.store.inner.Register(name, inst)
	return &Instance{store: l.store, inner: inst}, nil
}

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	callerType  = reflect.TypeOf(wasm.Caller{})
)

// reflectHostFunc adapts an arbitrary Go func to the interpreter's HostFunc
// ABI, deriving its wasm.FunctionType from its Go signature.
func reflectHostFunc(fn interface{}) (wasm.HostFunc, *wasm.FunctionType, error) {
	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	if rt.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("not a func: %T", fn)
	}

	in := 0
	passContext := false
	passCaller := false
	if rt.NumIn() > 0 && rt.In(0) == contextType {
		passContext = true
		in = 1
	} else if rt.NumIn() > 0 && rt.In(in) == callerType {
		passCaller = true
		in = 1
	}

	var params []api.ValueType
	for ; in < rt.NumIn(); in++ {
		vt, err := reflectValueType(rt.In(in))
		if err != nil {
			return nil, nil, err
		}
		params = append(params, vt)
	}

	numResults := rt.NumOut()
	returnsError := numResults > 0 && rt.Out(numResults-1) == errorType
	if returnsError {
		numResults--
	}
	var results []api.ValueType
	for i := 0; i < numResults; i++ {
		vt, err := reflectValueType(rt.Out(i))
		if err != nil {
			return nil, nil, err
		}
		results = append(results, vt)
	}

	sig := &wasm.FunctionType{Params: params, Results: results}

	hostFn := func(ctx context.Context, caller wasm.Caller, stack []uint64) ([]uint64, error) {
		args := make([]reflect.Value, rt.NumIn())
		i := 0
		if passContext {
			args[0] = reflect.ValueOf(ctx)
			i = 1
		} else if passCaller {
			args[0] = reflect.ValueOf(caller)
			i = 1
		}
		for j, vt := range params {
			args[i+j] = decodeReflectArg(rt.In(i+j), vt, stack[j])
		}

		out := rv.Call(args)
		if returnsError {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return nil, err
			}
			out = out[:len(out)-1]
		}
		encoded := make([]uint64, len(out))
		for i, o := range out {
			encoded[i] = encodeReflectResult(results[i], o)
		}
		return encoded, nil
	}

	return hostFn, sig, nil
}

func reflectValueType(t reflect.Type) (api.ValueType, error) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return api.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return api.ValueTypeI64, nil
	case reflect.Float32:
		return api.ValueTypeF32, nil
	case reflect.Float64:
		return api.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unsupported host function type %s", t)
	}
}

func decodeReflectArg(t reflect.Type, vt api.ValueType, raw uint64) reflect.Value {
	switch vt {
	case api.ValueTypeI32:
		if t.Kind() == reflect.Int32 {
			return reflect.ValueOf(int32(uint32(raw))).Convert(t)
		}
		return reflect.ValueOf(uint32(raw)).Convert(t)
	case api.ValueTypeI64:
		if t.Kind() == reflect.Int64 {
			return reflect.ValueOf(int64(raw)).Convert(t)
		}
		return reflect.ValueOf(raw).Convert(t)
	case api.ValueTypeF32:
		return reflect.ValueOf(api.DecodeF32(raw)).Convert(t)
	default: // api.ValueTypeF64
		return reflect.ValueOf(api.DecodeF64(raw)).Convert(t)
	}
}

func encodeReflectResult(vt api.ValueType, v reflect.Value) uint64 {
	switch vt {
	case api.ValueTypeI32:
		if v.Kind() == reflect.Int32 {
			return api.EncodeI32(int32(v.Int()))
		}
		return uint64(uint32(v.Uint()))
	case api.ValueTypeI64:
		if v.Kind() == reflect.Int64 {
			return api.EncodeI64(v.Int())
		}
		return v.Uint()
	case api.ValueTypeF32:
		return api.EncodeF32(float32(v.Float()))
	default: // api.ValueTypeF64
		return api.EncodeF64(v.Float())
	}
}
