package blocks

import (
	"github.com/bnb-chain/stackcfg/core/opcodes"
	mapset "github.com/deckarep/golang-set/v2"
)

// Split partitions the instructions of code into basic blocks in program
// order. A block is closed after an instruction that does not fall through,
// jumps, closes a region, or is followed by a jump target. An empty unit
// has no blocks.
func Split(code *opcodes.Code) []*Block {
	n := code.Len()
	if n == 0 {
		return nil
	}
	targets := mapset.NewThreadUnsafeSet[int]()
	for _, ins := range code.Instructions {
		if ins.HasTarget() {
			targets.Add(ins.Target)
		}
	}
	var (
		blocks []*Block
		start  int
	)
	for i, ins := range code.Instructions {
		if ins.NoNext() || ins.DoesJump() || ins.PopsBlock() || i == n-1 || targets.Contains(i+1) {
			blocks = append(blocks, newBlock(len(blocks), code.Instructions[start:i+1]))
			start = i + 1
		}
	}
	return blocks
}
