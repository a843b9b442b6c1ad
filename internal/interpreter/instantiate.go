package interpreter

import (
	"context"
	"fmt"

	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/wasm"
)

// ImportProvider resolves one import by (module, name). A Linker (the root
// package's embedder-facing type) is the typical implementation; tests
// often use a small map-backed stand-in instead.
type ImportProvider interface {
	ResolveFunc(module, name string) (*wasm.FunctionInstance, bool)
	ResolveGlobal(module, name string) (*wasm.GlobalInstance, bool)
	ResolveMemory(module, name string) (*wasm.MemoryInstance, bool)
	ResolveTable(module, name string) (*wasm.TableInstance, bool)
}

// Instantiate allocates a ModuleInstance for m: it resolves every import
// against imports, allocates module-defined globals/tables/memory, applies
// element and data segment initializers, and runs the start function if
// one is declared. m must already be compiled (see Engine.CompileModule).
func Instantiate(ctx context.Context, engine *Engine, store *wasm.Store, m *wasm.Module, name string, imports ImportProvider) (*wasm.ModuleInstance, error) {
	inst := &wasm.ModuleInstance{
		Name:    name,
		Exports: map[string]wasm.Export{},
		Types:   m.TypeSection,
	}

	for _, imp := range m.ImportSection {
		switch imp.Type {
		case api.ExternTypeFunc:
			f, ok := imports.ResolveFunc(imp.Module, imp.Name)
			if !ok {
				return nil, fmt.Errorf("interpreter: unresolved function import %s.%s", imp.Module, imp.Name)
			}
			inst.Functions = append(inst.Functions, f)
		case api.ExternTypeGlobal:
			g, ok := imports.ResolveGlobal(imp.Module, imp.Name)
			if !ok {
				return nil, fmt.Errorf("interpreter: unresolved global import %s.%s", imp.Module, imp.Name)
			}
			inst.Globals = append(inst.Globals, g)
		case api.ExternTypeMemory:
			mem, ok := imports.ResolveMemory(imp.Module, imp.Name)
			if !ok {
				return nil, fmt.Errorf("interpreter: unresolved memory import %s.%s", imp.Module, imp.Name)
			}
			inst.Memory = mem
		case api.ExternTypeTable:
			t, ok := imports.ResolveTable(imp.Module, imp.Name)
			if !ok {
				return nil, fmt.Errorf("interpreter: unresolved table import %s.%s", imp.Module, imp.Name)
			}
			inst.Tables = append(inst.Tables, t)
		}
	}

	for _, g := range m.GlobalSection {
		val := g.Value
		if g.IsImportedGlobal {
			val = inst.Globals[g.ImportedGlobalIndex].Val
		}
		gt := g.Type
		inst.Globals = append(inst.Globals, &wasm.GlobalInstance{Type: &gt, Val: val})
	}

	for _, tt := range m.TableSection {
		tt := tt
		inst.Tables = append(inst.Tables, &wasm.TableInstance{Type: &tt, References: make([]*wasm.FunctionInstance, tt.Min)})
	}

	if len(m.MemorySection) > 0 {
		mt := m.MemorySection[0]
		mem, err := wasm.NewMemoryInstance(&mt)
		if err != nil {
			return nil, fmt.Errorf("interpreter: allocating memory: %w", err)
		}
		inst.Memory = mem
	}

	importedFuncs := len(inst.Functions)
	for i := range m.CodeSection {
		idx := uint32(importedFuncs + i)
		inst.Functions = append(inst.Functions, &wasm.FunctionInstance{
			Type:           m.TypeOfFunction(idx),
			ModuleName:     name,
			Idx:            idx,
			DefiningModule: m.ID,
			LocalIndex:     uint32(i),
			Instance:       inst,
		})
	}
	for i, n := range m.Names {
		if i < len(inst.Functions) && n != "" {
			inst.Functions[i].Name = n
		}
	}

	for _, seg := range m.ElementSection {
		tbl := inst.Tables[seg.TableIndex]
		for i, fnIdx := range seg.FuncIndexes {
			pos := int(seg.Offset) + i
			if pos < len(tbl.References) {
				tbl.References[pos] = inst.Functions[fnIdx]
			}
		}
	}

	for _, seg := range m.DataSection {
		if inst.Memory == nil {
			return nil, fmt.Errorf("interpreter: data segment but no memory")
		}
		if !inst.Memory.Write(seg.Offset, seg.Init) {
			return nil, fmt.Errorf("interpreter: data segment out of bounds")
		}
	}

	for _, exp := range m.ExportSection {
		inst.Exports[exp.Name] = exp
	}

	if m.StartSection != nil {
		fn := inst.Functions[*m.StartSection]
		ce := newCallEngine(engine, store)
		if _, err := ce.call(ctx, inst, fn, nil); err != nil {
			return nil, fmt.Errorf("interpreter: start function: %w", err)
		}
	}

	return inst, nil
}
