package wasmium

import (
	"context"

	"github.com/wasmium/wasmium/internal/wasm"
)

// Store owns every module instance created against one Engine: the
// registry host functions consult to resolve imports across instance
// boundaries. Closing a Store releases every instance's resources
// (currently: linear memory).
type Store struct {
	engine *Engine
	inner  *wasm.Store
}

// NewStore returns an empty Store backed by engine.
func NewStore(engine *Engine) *Store {
	return &Store{engine: engine, inner: wasm.NewStore()}
}

// Instance looks up a previously instantiated module by its registered
// name.
func (s *Store) Instance(name string) (*Instance, bool) {
	inst, ok := s.inner.Module(name)
	if !ok {
		return nil, false
	}
	return &Instance{store: s, inner: inst}, true
}

// Close releases every instance registered in s.
func (s *Store) Close(ctx context.Context) error {
	return s.inner.Close()
}
