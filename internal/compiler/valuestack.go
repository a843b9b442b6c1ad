package compiler

import "github.com/wasmium/wasmium/api"

// valueStack is the translator's compile-time shadow of the operand stack:
// it never holds a runtime value, only the type that would be there, so the
// translator can validate opcodes and compute DropKeep without executing
// anything.
type valueStack struct {
	types     []api.ValueType
	maxHeight int
}

func newValueStack() *valueStack { return &valueStack{} }

func (s *valueStack) push(t api.ValueType) {
	s.types = append(s.types, t)
	if len(s.types) > s.maxHeight {
		s.maxHeight = len(s.types)
	}
}

func (s *valueStack) pop() api.ValueType {
	t := s.types[len(s.types)-1]
	s.types = s.types[:len(s.types)-1]
	return t
}

func (s *valueStack) height() int { return len(s.types) }

// truncate resets the stack to height h, used when a frame becomes
// unreachable or when "else" restores the value stack to the If frame's
// entry height plus its block parameters.
func (s *valueStack) truncate(h int) { s.types = s.types[:h] }

func (s *valueStack) peek() api.ValueType { return s.types[len(s.types)-1] }
