package blocks

import (
	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/bnb-chain/stackcfg/log"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/maps"
)

// BlockTargets maps the index of a block-popping, loop-breaking or
// re-raising instruction to the index of the instruction control reaches.
// It is built once by Annotate and only read afterwards.
type BlockTargets map[int]int

// Get returns the block target of the instruction at index.
func (t BlockTargets) Get(index int) (int, bool) {
	target, ok := t[index]
	return target, ok
}

// Len returns the number of annotated instructions.
func (t BlockTargets) Len() int {
	return len(t)
}

// Clone returns an independent copy.
func (t BlockTargets) Clone() BlockTargets {
	return maps.Clone(t)
}

// mismatchLogs bounds how many dropped region stacks are reported.
var mismatchLogs = &log.FirstN{N: 64}

type annotateItem struct {
	index int
	stack *frameStack
}

// Annotate computes the block targets of code by walking its instructions
// from the entry with a stack of open regions per path.
//
// Each instruction is processed once, with whichever stack reaches it first.
// A later path arriving with a different stack is ignored.
func Annotate(code *opcodes.Code) (BlockTargets, error) {
	if err := code.Validate(); err != nil {
		return nil, malformed("%v", err)
	}
	targets := make(BlockTargets)
	if code.Len() == 0 {
		return targets, nil
	}
	var (
		seen   = mapset.NewThreadUnsafeSet[int]()
		depths = make([]int, code.Len())
		work   = []annotateItem{{index: 0}}
	)
	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		if seen.Contains(item.index) {
			if depths[item.index] != item.stack.len() {
				log.DebugBy(mismatchLogs, "Instruction reached with a different region stack", "unit", code.Name,
					"index", item.index, "kept", depths[item.index], "dropped", item.stack.len())
			}
			continue
		}
		seen.Add(item.index)
		depths[item.index] = item.stack.len()

		ins := code.Instructions[item.index]
		stack := item.stack
		switch {
		case ins.PopsBlock():
			if stack == nil {
				return nil, malformed("%s: %v with no open region", code.Name, ins)
			}
			targets[ins.Index] = stack.top().target
			stack = stack.pop()
		case ins.IsBareReraise():
			// Without an enclosing handler the exception leaves the unit.
			if handler := stack.nearest(opcodes.ExceptFrame); handler != nil {
				targets[ins.Index] = handler.target
			}
		case ins.IsLoopBreak():
			loop := stack.nearest(opcodes.LoopFrame)
			if loop == nil {
				return nil, malformed("%s: %v outside a loop", code.Name, ins)
			}
			targets[ins.Index] = loop.target
			work = append(work, annotateItem{index: loop.target, stack: loop.pop()})
		case ins.PushesBlock():
			// The handler of an exception region runs outside it and is
			// enqueued below as the jump target with the pre-push stack.
			stack = stack.push(frame{kind: ins.FrameKind(), target: ins.Target})
		}
		if !ins.NoNext() && item.index+1 < code.Len() {
			work = append(work, annotateItem{index: item.index + 1, stack: stack})
		}
		if ins.DoesJump() && ins.HasTarget() {
			work = append(work, annotateItem{index: ins.Target, stack: item.stack})
		}
		debugInfo(annotateTrace, "Annotated instruction", "unit", code.Name, "ins", ins, "depth", stack.len())
	}
	return targets, nil
}
