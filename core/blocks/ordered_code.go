package blocks

import (
	"slices"

	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/ethereum/go-ethereum/common"
)

// OrderedCode is one code unit with its block arena and the ancestors-first
// order of the blocks reachable from the entry. It is immutable once built.
type OrderedCode struct {
	code        *opcodes.Code
	fingerprint common.Hash

	blocks    []*Block
	order     []*Block
	edges     []Edge
	backEdges []Edge
	targets   BlockTargets

	children []*OrderedCode
}

func newOrderedCode(code *opcodes.Code, fingerprint common.Hash, layout *Layout) *OrderedCode {
	blocks := layout.materialize(code)
	order := make([]*Block, len(layout.Order))
	for i, id := range layout.Order {
		order[i] = blocks[id]
	}
	return &OrderedCode{
		code:        code,
		fingerprint: fingerprint,
		blocks:      blocks,
		order:       order,
		edges:       layout.Edges,
		backEdges:   layout.BackEdges,
		targets:     layout.Targets,
	}
}

// Code returns the unit the graph was built for.
func (oc *OrderedCode) Code() *opcodes.Code { return oc.code }

func (oc *OrderedCode) Name() string { return oc.code.Name }

func (oc *OrderedCode) Flags() opcodes.CodeFlags { return oc.code.Flags }

func (oc *OrderedCode) IsGenerator() bool { return oc.code.Flags&opcodes.CO_GENERATOR != 0 }

func (oc *OrderedCode) IsCoroutine() bool { return oc.code.Flags&opcodes.CO_COROUTINE != 0 }

func (oc *OrderedCode) IsAsyncGenerator() bool {
	return oc.code.Flags&opcodes.CO_ASYNC_GENERATOR != 0
}

func (oc *OrderedCode) IsIterableCoroutine() bool {
	return oc.code.Flags&opcodes.CO_ITERABLE_COROUTINE != 0
}

func (oc *OrderedCode) HasVarargs() bool { return oc.code.Flags&opcodes.CO_VARARGS != 0 }

func (oc *OrderedCode) HasVarkeywords() bool { return oc.code.Flags&opcodes.CO_VARKEYWORDS != 0 }

func (oc *OrderedCode) HasNewlocals() bool { return oc.code.Flags&opcodes.CO_NEWLOCALS != 0 }

// FirstOpcode returns the entry instruction, the key of the unit in a
// BlockGraph. It is nil for an empty unit.
func (oc *OrderedCode) FirstOpcode() *opcodes.Instruction {
	return oc.code.First()
}

// Fingerprint returns the hash of the unit's control-relevant instructions.
func (oc *OrderedCode) Fingerprint() common.Hash {
	return oc.fingerprint
}

// Blocks returns every block in program order, unreachable ones included.
func (oc *OrderedCode) Blocks() []*Block { return oc.blocks }

// Order returns the reachable blocks, ancestors first.
func (oc *OrderedCode) Order() []*Block { return oc.order }

// Block returns the block with the given id, nil if out of range.
func (oc *OrderedCode) Block(id int) *Block {
	if id < 0 || id >= len(oc.blocks) {
		return nil
	}
	return oc.blocks[id]
}

// Successors returns the blocks b transfers control to.
func (oc *OrderedCode) Successors(b *Block) []*Block {
	return oc.resolve(b.outgoing)
}

// Predecessors returns the blocks that transfer control to b.
func (oc *OrderedCode) Predecessors(b *Block) []*Block {
	return oc.resolve(b.incoming)
}

func (oc *OrderedCode) resolve(ids []int) []*Block {
	out := make([]*Block, len(ids))
	for i, id := range ids {
		out[i] = oc.blocks[id]
	}
	return out
}

// Edges returns a copy of every edge in insertion order.
func (oc *OrderedCode) Edges() []Edge { return slices.Clone(oc.edges) }

// BackEdges returns a copy of the edges that close a cycle in the order.
func (oc *OrderedCode) BackEdges() []Edge { return slices.Clone(oc.backEdges) }

// BlockTargets returns a copy of the block target annotations.
func (oc *OrderedCode) BlockTargets() BlockTargets { return oc.targets.Clone() }

// BlockTarget returns the block target of the instruction at index.
func (oc *OrderedCode) BlockTarget(index int) (int, bool) { return oc.targets.Get(index) }

// Children returns the processed units nested directly in this one, in
// constant order.
func (oc *OrderedCode) Children() []*OrderedCode { return oc.children }

// HasOpcode reports whether any instruction of the unit is op.
func (oc *OrderedCode) HasOpcode(op opcodes.Opcode) bool {
	for _, ins := range oc.code.Instructions {
		if ins.Op == op {
			return true
		}
	}
	return false
}

// CodeIter returns an iterator over the instructions of the ordered blocks.
func (oc *OrderedCode) CodeIter() *InstructionIterator {
	return &InstructionIterator{blocks: oc.order}
}

// InstructionIterator walks the instructions of a block list lazily.
type InstructionIterator struct {
	blocks []*Block
	block  int
	pos    int
}

// Next returns the next instruction, or nil once exhausted.
func (it *InstructionIterator) Next() *opcodes.Instruction {
	for it.block < len(it.blocks) {
		b := it.blocks[it.block]
		if it.pos < b.Size() {
			ins := b.instructions[it.pos]
			it.pos++
			return ins
		}
		it.block++
		it.pos = 0
	}
	return nil
}

// HasNext reports whether Next would return an instruction. Blocks are
// never empty.
func (it *InstructionIterator) HasNext() bool {
	if it.block >= len(it.blocks) {
		return false
	}
	return it.pos < it.blocks[it.block].Size() || it.block+1 < len(it.blocks)
}
