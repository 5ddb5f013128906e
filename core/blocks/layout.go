package blocks

import (
	"github.com/bnb-chain/stackcfg/core/opcodes"
)

// Layout is the graph of one unit expressed purely in instruction and block
// indices. It holds no instruction pointers, so one layout serves every unit
// with the same control-relevant instruction stream.
type Layout struct {
	Starts    []int        `json:"starts"`
	Edges     []Edge       `json:"edges"`
	Order     []int        `json:"order"`
	BackEdges []Edge       `json:"backEdges"`
	Targets   BlockTargets `json:"targets"`
}

// BuildLayout runs annotate, split, connect and order over code.
func BuildLayout(code *opcodes.Code) (*Layout, error) {
	targets, err := Annotate(code)
	if err != nil {
		return nil, err
	}
	blocks := Split(code)
	edges, err := Connect(blocks, targets)
	if err != nil {
		return nil, err
	}
	order, back := Order(blocks)

	starts := make([]int, len(blocks))
	for i, b := range blocks {
		starts[i] = b.Start()
	}
	return &Layout{
		Starts:    starts,
		Edges:     edges,
		Order:     order,
		BackEdges: back,
		Targets:   targets,
	}, nil
}

// materialize rebuilds the block arena of code from the layout.
func (l *Layout) materialize(code *opcodes.Code) []*Block {
	blocks := make([]*Block, len(l.Starts))
	for i, start := range l.Starts {
		end := code.Len()
		if i+1 < len(l.Starts) {
			end = l.Starts[i+1]
		}
		blocks[i] = newBlock(i, code.Instructions[start:end])
	}
	for _, e := range l.Edges {
		link(blocks, e.From, e.To, e.Kind)
	}
	return blocks
}
