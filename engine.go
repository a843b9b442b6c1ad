package wasmium

import (
	"github.com/wasmium/wasmium/internal/interpreter"
	"github.com/wasmium/wasmium/internal/wasm"
	"go.uber.org/zap"
)

// Engine is the shared code heap: translated function bodies, interned by
// module so instantiating the same binary twice only translates it once.
// One Engine is typically created per process and shared across every
// Store it backs.
type Engine struct {
	inner    *interpreter.Engine
	features wasm.Features
	logger   *zap.Logger
}

// NewEngine returns an Engine built from config, or the defaults if config
// is nil.
func NewEngine(config *EngineConfig) *Engine {
	if config == nil {
		config = NewEngineConfig()
	}
	logger := config.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inner := interpreter.NewEngine(logger)
	if config.callStackCeiling > 0 {
		inner.SetCallStackCeiling(config.callStackCeiling)
	}
	return &Engine{inner: inner, features: config.features, logger: logger}
}

// CompileModule translates every function body in m and installs it in the
// engine's code heap, unless it is already present. Linker.Instantiate
// calls it itself, so an explicit call only moves the translation earlier.
func (e *Engine) CompileModule(m *Module) error {
	return e.inner.CompileModule(m.m, e.features)
}
