package ir

import "fmt"

// LabelIdx is a symbolic forward-reference, allocated by Builder.NewLabel
// and bound to an absolute instruction index by Builder.ResolveLabel.
type LabelIdx int

// CodeSlice is the finalized, fully-resolved instruction stream a
// translated function yields.
type CodeSlice []Instruction

// Builder accumulates instructions for one function body, resolving
// forward branches (block/if/else ends) via a relocation callback
// registered at the use-site and invoked once the label resolves; a loop
// header's label is resolved when the loop is entered, before any backward
// branch to it is emitted.
// This mirrors the Wasm spec's structured control flow: every label is
// resolved by the time the enclosing block's "end" is visited, so a single
// linear emission pass with deferred patch callbacks is enough — no
// separate backpatch/fixup pass over the finished stream is needed.
type Builder struct {
	instructions []Instruction
	// resolved maps a resolved label to its absolute instruction index.
	resolved map[LabelIdx]int
	// pending maps an unresolved label to the patch callbacks waiting on it.
	pending map[LabelIdx][]func(addr int)
	nextLabel LabelIdx
}

// NewBuilder returns an empty Builder ready to emit a function body.
func NewBuilder() *Builder {
	return &Builder{
		resolved: map[LabelIdx]int{},
		pending:  map[LabelIdx][]func(addr int){},
	}
}

// NewLabel allocates a fresh, unresolved label.
func (b *Builder) NewLabel() LabelIdx {
	l := b.nextLabel
	b.nextLabel++
	return l
}

// ResolveLabel binds l to the current program counter (the index the next
// pushed instruction will land at). It is a translator bug to resolve the
// same label twice.
func (b *Builder) ResolveLabel(l LabelIdx) error {
	if _, ok := b.resolved[l]; ok {
		return fmt.Errorf("ir: label %d already resolved", l)
	}
	addr := b.CurrentPC()
	b.resolved[l] = addr
	for _, cb := range b.pending[l] {
		cb(addr)
	}
	delete(b.pending, l)
	return nil
}

// TryResolveLabel returns l's address if it is already resolved (the
// backward-branch case: loop headers are always resolved before any branch
// to them is emitted). Otherwise it registers patch to run once l resolves
// and returns a sentinel the caller is expected to overwrite via patch.
func (b *Builder) TryResolveLabel(l LabelIdx, patch func(addr int)) (addr int, resolved bool) {
	if addr, ok := b.resolved[l]; ok {
		return addr, true
	}
	b.pending[l] = append(b.pending[l], patch)
	return -1, false
}

// OnLabelResolved calls cb with l's address once known: immediately, if l
// is already resolved, or later as part of ResolveLabel otherwise. Callers
// use this to patch a branch instruction's target without caring whether
// the branch was forward or backward.
func (b *Builder) OnLabelResolved(l LabelIdx, cb func(addr int)) {
	if addr, ok := b.resolved[l]; ok {
		cb(addr)
		return
	}
	b.pending[l] = append(b.pending[l], cb)
}

// PatchBranchTarget sets the resolved instruction index of a single-target
// branch instruction (Br, BrIfEqz, BrIfNez) previously pushed at instIdx.
func (b *Builder) PatchBranchTarget(instIdx, addr int) {
	b.instructions[instIdx].Target.InstructionIndex = addr
}

// PatchBranchTableTarget sets the resolved instruction index of the
// targetIdx-th entry of a BrTable instruction previously pushed at instIdx.
func (b *Builder) PatchBranchTableTarget(instIdx, targetIdx, addr int) {
	b.instructions[instIdx].Targets[targetIdx].InstructionIndex = addr
}

// PushInst appends inst and returns its instruction index.
func (b *Builder) PushInst(inst Instruction) int {
	idx := len(b.instructions)
	b.instructions = append(b.instructions, inst)
	return idx
}

// CurrentPC is the instruction index the next PushInst call will land at.
func (b *Builder) CurrentPC() int { return len(b.instructions) }

// Finish returns the finalized code, or an error if any relocation is
// still pending. It is a translator bug for any label to remain unresolved: that would
// mean a structured control construct was left open (an "end" was never
// visited), which validated input can never produce.
func (b *Builder) Finish() (CodeSlice, error) {
	if len(b.pending) > 0 {
		return nil, fmt.Errorf("ir: %d label(s) unresolved at finalize", len(b.pending))
	}
	return CodeSlice(b.instructions), nil
}
