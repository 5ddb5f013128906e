package blocks

import (
	"fmt"

	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/willf/bitset"
)

// Block is a maximal run of instructions entered only at its first
// instruction and left only at its last. Blocks live in the arena of their
// unit and refer to each other by id.
type Block struct {
	id           int
	instructions []*opcodes.Instruction

	// incomingSet and outgoingSet de-duplicate the edge lists by block id.
	incomingSet   bitset.BitSet
	outgoingSet   bitset.BitSet
	incoming      []int
	outgoing      []int
	outgoingKinds []EdgeKind
}

func newBlock(id int, instructions []*opcodes.Instruction) *Block {
	return &Block{id: id, instructions: instructions}
}

// ID returns the position of the block in program order.
func (b *Block) ID() int {
	return b.id
}

// First returns the entry instruction, which identifies the block.
func (b *Block) First() *opcodes.Instruction {
	return b.instructions[0]
}

// Last returns the exit instruction.
func (b *Block) Last() *opcodes.Instruction {
	return b.instructions[len(b.instructions)-1]
}

// Start returns the index of the first instruction.
func (b *Block) Start() int {
	return b.First().Index
}

func (b *Block) Size() int {
	return len(b.instructions)
}

func (b *Block) Instructions() []*opcodes.Instruction {
	return b.instructions
}

// Incoming returns the ids of the predecessor blocks in insertion order.
func (b *Block) Incoming() []int {
	return b.incoming
}

// Outgoing returns the ids of the successor blocks in insertion order.
func (b *Block) Outgoing() []int {
	return b.outgoing
}

// OutgoingEdges returns the outgoing edges in insertion order.
func (b *Block) OutgoingEdges() []Edge {
	edges := make([]Edge, len(b.outgoing))
	for i, to := range b.outgoing {
		edges[i] = Edge{From: b.id, To: to, Kind: b.outgoingKinds[i]}
	}
	return edges
}

// IsTerminal reports whether control never leaves the block to the
// following one by falling through.
func (b *Block) IsTerminal() bool {
	return b.Last().NoNext()
}

func (b *Block) addOutgoing(to int, kind EdgeKind) bool {
	if b.outgoingSet.Test(uint(to)) {
		return false
	}
	b.outgoingSet.Set(uint(to))
	b.outgoing = append(b.outgoing, to)
	b.outgoingKinds = append(b.outgoingKinds, kind)
	return true
}

func (b *Block) addIncoming(from int) {
	if !b.incomingSet.Test(uint(from)) {
		b.incomingSet.Set(uint(from))
		b.incoming = append(b.incoming, from)
	}
}

func (b *Block) String() string {
	return fmt.Sprintf("B%d[%d..%d]", b.id, b.Start(), b.Last().Index)
}
