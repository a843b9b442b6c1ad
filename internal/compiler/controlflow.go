package compiler

import (
	"fmt"

	"github.com/wasmium/wasmium/internal/ir"
)

// enterBlock pushes a plain "block" frame. Its params are already sitting
// on the shadow stack from the code preceding it; entryHeight records the
// height below them so a later branch out can compute how much of the
// stack above that point to discard.
func (fc *functionCompiler) enterBlock(kind frameKind, bt blockType) {
	frame := newFrame(kind, bt, fc.vs.height()-len(bt.Params))
	frame.blockEndLabel = fc.b.NewLabel()
	fc.frames.push(frame)
}

// enterLoop pushes a "loop" frame. Unlike block/if, a loop's branch target
// is its header, so that label is resolved immediately: the loop body's
// first instruction is about to be emitted at the current program counter,
// and every branch to this loop (always a backward branch, from inside the
// loop body) can resolve against it right away.
func (fc *functionCompiler) enterLoop(bt blockType) {
	frame := newFrame(frameKindLoop, bt, fc.vs.height()-len(bt.Params))
	frame.loopHeaderLabel = fc.b.NewLabel()
	if err := fc.b.ResolveLabel(frame.loopHeaderLabel); err != nil {
		panic(err) // translator bug: a fresh label can never already be resolved
	}
	fc.frames.push(frame)
}

// enterIf pushes an "if" frame and emits the conditional branch that skips
// the "then" arm when the (already-popped) condition is zero. Its target
// is the elseLabel, resolved either when "else" is reached or, if no else
// arm exists, when "end" is reached — both mean the same program point in
// the no-else case.
func (fc *functionCompiler) enterIf(bt blockType) {
	frame := newFrame(frameKindIf, bt, fc.vs.height()-len(bt.Params))
	frame.blockEndLabel = fc.b.NewLabel()
	frame.elseLabel = fc.b.NewLabel()
	idx := fc.b.PushInst(ir.Instruction{Kind: ir.KindBrIfEqz})
	fc.b.OnLabelResolved(frame.elseLabel, func(addr int) { fc.b.PatchBranchTarget(idx, addr) })
	fc.frames.push(frame)
}

// onElse closes the "then" arm of an if and opens its "else" arm.
func (fc *functionCompiler) onElse() error {
	frame := fc.frames.top()
	if frame.kind != frameKindIf {
		return fmt.Errorf("else without matching if")
	}
	if frame.reachable {
		dk := fc.branchDropKeep(0)
		idx := fc.b.PushInst(ir.Instruction{Kind: ir.KindBr, Target: ir.Target{DropKeep: dk}})
		fc.b.OnLabelResolved(frame.blockEndLabel, func(addr int) { fc.b.PatchBranchTarget(idx, addr) })
	}
	if err := fc.b.ResolveLabel(frame.elseLabel); err != nil {
		return err
	}
	fc.vs.truncate(frame.entryHeight + len(frame.bt.Params))
	frame.reachable = true
	frame.kind = frameKindElse
	return nil
}

// onEnd closes the frame on top of the control stack. It reports
// isFunctionEnd=true when the frame closed is the function's own implicit
// frame, meaning translation of this function body is complete.
func (fc *functionCompiler) onEnd() (isFunctionEnd bool, err error) {
	frame := fc.frames.top()
	switch frame.kind {
	case frameKindFunction:
		if err := fc.b.ResolveLabel(frame.blockEndLabel); err != nil {
			return false, err
		}
		fc.frames.pop()
		return true, nil
	case frameKindIf:
		// No "else" was seen: the skip-branch target and the end label are
		// the same program point.
		if err := fc.b.ResolveLabel(frame.elseLabel); err != nil {
			return false, err
		}
		if err := fc.b.ResolveLabel(frame.blockEndLabel); err != nil {
			return false, err
		}
	case frameKindBlock, frameKindElse:
		if err := fc.b.ResolveLabel(frame.blockEndLabel); err != nil {
			return false, err
		}
	case frameKindLoop:
		// Falling off a loop's end needs no label: nothing branches here.
	}

	if !frame.reachable {
		fc.vs.truncate(frame.entryHeight)
		for _, rt := range frame.bt.Results {
			fc.vs.push(rt)
		}
	}
	fc.frames.pop()
	return false, nil
}
