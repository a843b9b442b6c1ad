package wasm

// Store owns every module instance live in one embedding session: the
// registry a host function's Caller consults to resolve "the module that
// exports X" across instance boundaries, independent of which instance
// happens to be executing at the moment. It holds no compiled code itself
// (the engine's code heap, keyed by ModuleID, is a concern of the
// interpreter/engine layer, not the module model) — only the runtime state
// instantiation allocates: globals, tables, memories, function instances.
type Store struct {
	instances map[string]*ModuleInstance
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{instances: map[string]*ModuleInstance{}}
}

// Register binds name (the module's registered import name, not
// necessarily its declared name in the binary) to inst, so later imports
// and host lookups by name can resolve it.
func (s *Store) Register(name string, inst *ModuleInstance) {
	s.instances[name] = inst
}

// Module looks up a previously registered instance by name.
func (s *Store) Module(name string) (*ModuleInstance, bool) {
	inst, ok := s.instances[name]
	return inst, ok
}

// Close releases every registered instance's resources (currently: linear
// memory mmap regions). An error from one instance does not stop the
// sweep; the first such error is returned.
func (s *Store) Close() error {
	var firstErr error
	for _, inst := range s.instances {
		if inst.Memory == nil {
			continue
		}
		if err := inst.Memory.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
