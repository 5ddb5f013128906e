package blocks

import (
	"sync"

	"github.com/bnb-chain/stackcfg/core/opcodes"
)

// BlockGraph registers processed units by their entry instruction. Entries
// are never removed or replaced. It is safe for concurrent use.
type BlockGraph struct {
	mu    sync.RWMutex
	units map[*opcodes.Instruction]*OrderedCode
	order []*OrderedCode
}

func NewBlockGraph() *BlockGraph {
	return &BlockGraph{units: make(map[*opcodes.Instruction]*OrderedCode)}
}

// Add registers oc. Empty units have no entry instruction and are skipped.
// Registering a second unit under the same entry is malformed input.
func (g *BlockGraph) Add(oc *OrderedCode) error {
	first := oc.FirstOpcode()
	if first == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.units[first]; ok {
		return malformed("%s: entry instruction already registered by %s", oc.Name(), prev.Name())
	}
	g.units[first] = oc
	g.order = append(g.order, oc)
	return nil
}

// Lookup returns the unit whose entry instruction is first.
func (g *BlockGraph) Lookup(first *opcodes.Instruction) (*OrderedCode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	oc, ok := g.units[first]
	return oc, ok
}

func (g *BlockGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.units)
}

// Units returns the registered units in registration order.
func (g *BlockGraph) Units() []*OrderedCode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	units := make([]*OrderedCode, len(g.order))
	copy(units, g.order)
	return units
}
