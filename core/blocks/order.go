package blocks

const (
	unvisited = iota
	onStack
	finished
)

type dfsFrame struct {
	id   int
	next int
}

// Order returns the ids of the blocks reachable from the entry block in
// reverse postorder, visiting outgoing edges in insertion order. Every edge
// that goes backwards in the result closes a cycle and is reported in back.
// Unreachable blocks do not appear in the order.
func Order(blocks []*Block) (order []int, back []Edge) {
	if len(blocks) == 0 {
		return nil, nil
	}
	state := make([]uint8, len(blocks))
	post := make([]int, 0, len(blocks))
	stack := []dfsFrame{{id: 0}}
	state[0] = onStack

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		b := blocks[top.id]
		if top.next < len(b.outgoing) {
			to, kind := b.outgoing[top.next], b.outgoingKinds[top.next]
			top.next++
			switch state[to] {
			case unvisited:
				state[to] = onStack
				stack = append(stack, dfsFrame{id: to})
			case onStack:
				back = append(back, Edge{From: b.id, To: to, Kind: kind})
			}
			continue
		}
		state[top.id] = finished
		post = append(post, top.id)
		stack = stack[:len(stack)-1]
	}
	order = make([]int, len(post))
	for i, id := range post {
		order[len(post)-1-i] = id
	}
	return order, back
}
