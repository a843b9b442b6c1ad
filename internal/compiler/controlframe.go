package compiler

import (
	"github.com/wasmium/wasmium/api"
	"github.com/wasmium/wasmium/internal/ir"
)

// frameKind discriminates the ControlFrame union.
type frameKind byte

const (
	frameKindBlock frameKind = iota
	frameKindLoop
	frameKindIf
	frameKindElse
	// frameKindFunction is the implicit outermost frame representing the
	// function body; branching to it is "return".
	frameKindFunction
)

// blockType is the parameter/result signature carried by every control
// frame, resolved from the Wasm blocktype immediate (empty, a single value
// type, or a type-section index for multi-value).
type blockType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// controlFrame is one entry of the translator's control flow stack. Each
// variant carries only the labels it needs. On "else" the If frame's kind
// is switched to Else in place; the frame keeps its position on the stack,
// so branch depths are unaffected.
type controlFrame struct {
	kind frameKind
	bt   blockType

	// blockEndLabel is resolved when this frame's "end" is visited. Unused
	// by Loop (a loop's exit is never itself a branch target; falling off
	// the end of a loop just continues after it, handled as ordinary
	// fallthrough).
	blockEndLabel ir.LabelIdx
	// loopHeaderLabel is resolved immediately when the frame is pushed
	// (backward branches always see an already-resolved label).
	loopHeaderLabel ir.LabelIdx
	// elseLabel is the If frame's else-branch target, where its BrIfEqz
	// lands; resolved when "else" is visited, or at "end" if the if has no
	// else arm.
	elseLabel ir.LabelIdx

	// entryHeight is the value-stack height when this frame was pushed
	// (after popping the block's params, which are logically "inside" the
	// frame).
	entryHeight int
	// reachable is false once this frame has executed an unconditional
	// control transfer (br/return/unreachable); it is restored to true on
	// "else" or cleared on "end".
	reachable bool
}

func newFrame(kind frameKind, bt blockType, entryHeight int) *controlFrame {
	return &controlFrame{kind: kind, bt: bt, entryHeight: entryHeight, reachable: true}
}

// resultArity is the number of values this frame yields on a normal branch
// out of it (a branch to a Loop targets its *header*, so a loop's "arity"
// for that purpose is its *parameter* count instead of its result count).
func (f *controlFrame) resultArity() int {
	if f.kind == frameKindLoop {
		return len(f.bt.Params)
	}
	return len(f.bt.Results)
}

// resultTypes are the types a branch out of f pushes back, matching
// resultArity's choice of params-vs-results for Loop.
func (f *controlFrame) resultTypes() []api.ValueType {
	if f.kind == frameKindLoop {
		return f.bt.Params
	}
	return f.bt.Results
}

// branchLabel resolves where control lands when branching to f: a loop's
// target is its header (already resolved at push time), everything else's
// is its end label.
func (f *controlFrame) branchLabel() ir.LabelIdx {
	if f.kind == frameKindLoop {
		return f.loopHeaderLabel
	}
	return f.blockEndLabel
}

// controlFrameStack is the translator's stack of nested control frames. The
// function body's implicit frame is always at index 0.
type controlFrameStack struct {
	frames []*controlFrame
}

func newControlFrameStack(fn blockType) *controlFrameStack {
	return &controlFrameStack{frames: []*controlFrame{{
		kind: frameKindFunction,
		bt:   fn,
	}}}
}

func (s *controlFrameStack) push(f *controlFrame) { s.frames = append(s.frames, f) }

func (s *controlFrameStack) pop() *controlFrame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *controlFrameStack) top() *controlFrame { return s.frames[len(s.frames)-1] }

// function returns the implicit outermost frame.
func (s *controlFrameStack) function() *controlFrame { return s.frames[0] }

// nthFromTop resolves a Wasm branch-depth immediate: depth 0 is the
// innermost enclosing block.
func (s *controlFrameStack) nthFromTop(depth uint32) *controlFrame {
	return s.frames[len(s.frames)-1-int(depth)]
}

func (s *controlFrameStack) len() int { return len(s.frames) }
