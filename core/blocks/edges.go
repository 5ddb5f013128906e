package blocks

import "fmt"

// EdgeKind tells why control moves between two blocks.
type EdgeKind uint8

const (
	// Fallthrough continues into the next block in program order.
	Fallthrough EdgeKind = iota
	// Jump follows the explicit target of the last instruction.
	Jump
	// BlockTarget follows a region exit, a break or a re-raise.
	BlockTarget
)

func (k EdgeKind) String() string {
	switch k {
	case Fallthrough:
		return "fallthrough"
	case Jump:
		return "jump"
	case BlockTarget:
		return "block-target"
	default:
		return fmt.Sprintf("EdgeKind(%d)", uint8(k))
	}
}

// Edge is a directed control transfer between two blocks of one unit.
type Edge struct {
	From int
	To   int
	Kind EdgeKind
}

func (e Edge) String() string {
	return fmt.Sprintf("B%d->B%d(%v)", e.From, e.To, e.Kind)
}

// link adds the edge unless the pair is already connected, in which case the
// first kind wins.
func link(blocks []*Block, from, to int, kind EdgeKind) bool {
	if !blocks[from].addOutgoing(to, kind) {
		return false
	}
	blocks[to].addIncoming(from)
	return true
}

// Connect adds the edges between blocks, as returned by Split, using the
// annotations of Annotate. Edges are returned in insertion order.
func Connect(blocks []*Block, targets BlockTargets) ([]Edge, error) {
	byStart := make(map[int]int, len(blocks))
	for _, b := range blocks {
		byStart[b.Start()] = b.id
	}
	blockOf := func(b *Block, index int, kind EdgeKind) (int, error) {
		id, ok := byStart[index]
		if !ok {
			return 0, malformed("%v: %v target %d starts no block", b, kind, index)
		}
		return id, nil
	}
	var edges []Edge
	add := func(from, to int, kind EdgeKind) {
		if link(blocks, from, to, kind) {
			edges = append(edges, Edge{From: from, To: to, Kind: kind})
		}
	}
	for i, b := range blocks {
		last := b.Last()
		if !last.NoNext() && i+1 < len(blocks) {
			add(b.id, i+1, Fallthrough)
		}
		if last.HasTarget() {
			to, err := blockOf(b, last.Target, Jump)
			if err != nil {
				return nil, err
			}
			add(b.id, to, Jump)
		}
		if target, ok := targets.Get(last.Index); ok {
			to, err := blockOf(b, target, BlockTarget)
			if err != nil {
				return nil, err
			}
			add(b.id, to, BlockTarget)
		}
	}
	return edges, nil
}
