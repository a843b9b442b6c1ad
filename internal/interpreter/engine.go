// Package interpreter is the execution core: the code heap that holds
// translated function bodies, and the call/execute loop that runs them
// against a Store's module instances. It never sees raw Wasm bytes —
// internal/compiler has already turned those into internal/ir.CodeSlice by
// the time anything here runs.
package interpreter

import (
	"fmt"
	"sync"

	"github.com/wasmium/wasmium/internal/compiler"
	"github.com/wasmium/wasmium/internal/ir"
	"github.com/wasmium/wasmium/internal/wasm"
	"go.uber.org/zap"
)

// Engine is the shared code heap: translated function bodies, interned by
// ModuleID so two instances of the same module binary never pay to
// translate it twice. One Engine is typically shared across every Store in
// a process.
type Engine struct {
	mu       sync.Mutex
	compiled map[wasm.ModuleID][]ir.CodeSlice
	logger   *zap.Logger
	// callStackCeiling bounds recursion depth for every callEngine started
	// against this Engine. Zero means defaultCallStackCeiling.
	callStackCeiling int
}

// NewEngine returns an Engine with an empty code heap. logger may be nil,
// in which case diagnostics are discarded.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{compiled: map[wasm.ModuleID][]ir.CodeSlice{}, logger: logger}
}

// SetCallStackCeiling overrides the default recursion ceiling (1<<16) for
// every call started against e from this point on.
func (e *Engine) SetCallStackCeiling(n int) { e.callStackCeiling = n }

// CompileModule translates every function body in m and installs the
// result in the code heap under m.ID, unless it is already present. It is
// safe to call concurrently and safe to call redundantly: a cache hit does
// no translation work.
func (e *Engine) CompileModule(m *wasm.Module, features wasm.Features) error {
	e.mu.Lock()
	_, hit := e.compiled[m.ID]
	e.mu.Unlock()
	if hit {
		e.logger.Debug("code heap hit", zap.String("module", string(m.ID)))
		return nil
	}
	codes, err := compiler.CompileFunctions(m, features)
	if err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	e.mu.Lock()
	e.compiled[m.ID] = codes
	e.mu.Unlock()
	e.logger.Info("translated module", zap.String("module", string(m.ID)), zap.Int("functions", len(codes)))
	return nil
}

// code returns the translated body for the localIdx-th module-defined
// function (not counting imports) of the module identified by id. It
// panics if id was never compiled or localIdx is out of range: both are
// translator-integration bugs, never reachable from valid embedder use.
func (e *Engine) code(id wasm.ModuleID, localIdx int) ir.CodeSlice {
	e.mu.Lock()
	defer e.mu.Unlock()
	codes, ok := e.compiled[id]
	if !ok {
		panic(fmt.Sprintf("interpreter: module %q never compiled", id))
	}
	return codes[localIdx]
}
