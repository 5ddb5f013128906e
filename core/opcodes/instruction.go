package opcodes

import "fmt"

// NoTarget marks an instruction without a jump target.
const NoTarget = -1

// Instruction is one decoded instruction of a code unit. Target refers to
// another instruction of the same unit by index.
type Instruction struct {
	Op     Opcode
	Index  int
	Arg    int
	Target int
	Line   int
}

// NewInstruction creates an instruction without a jump target.
func NewInstruction(op Opcode, index, arg int) *Instruction {
	return &Instruction{Op: op, Index: index, Arg: arg, Target: NoTarget}
}

// HasTarget reports whether the instruction names a target instruction.
func (ins *Instruction) HasTarget() bool {
	return ins.Target != NoTarget
}

// DoesJump reports whether the instruction transfers control explicitly.
func (ins *Instruction) DoesJump() bool {
	return ins.Op.Flags()&(HasJrel|HasJabs) != 0
}

// NoNext reports whether control never falls through to the next instruction.
func (ins *Instruction) NoNext() bool {
	return ins.Op.Flags()&NoNext != 0
}

// PushesBlock reports whether the instruction opens a structured region.
func (ins *Instruction) PushesBlock() bool {
	return ins.Op.Flags()&PushesBlock != 0
}

// PopsBlock reports whether the instruction closes the innermost region.
func (ins *Instruction) PopsBlock() bool {
	return ins.Op.Flags()&PopsBlock != 0
}

// IsLoopBreak reports whether the instruction leaves the innermost loop.
func (ins *Instruction) IsLoopBreak() bool {
	return ins.Op == BREAK_LOOP
}

// IsBareReraise reports whether the instruction re-raises the exception
// currently being handled.
func (ins *Instruction) IsBareReraise() bool {
	return ins.Op == RERAISE || (ins.Op == RAISE_VARARGS && ins.Arg == 0)
}

// FrameKind returns the kind of region opened by the instruction.
func (ins *Instruction) FrameKind() FrameKind {
	return ins.Op.FrameKind()
}

func (ins *Instruction) String() string {
	switch {
	case ins.HasTarget():
		return fmt.Sprintf("%d %v -> %d", ins.Index, ins.Op, ins.Target)
	case ins.Op.Flags()&HasArgument != 0:
		return fmt.Sprintf("%d %v %d", ins.Index, ins.Op, ins.Arg)
	default:
		return fmt.Sprintf("%d %v", ins.Index, ins.Op)
	}
}
