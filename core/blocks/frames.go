package blocks

import "github.com/bnb-chain/stackcfg/core/opcodes"

// frame is one open structured region: a loop or an exception handler.
type frame struct {
	kind   opcodes.FrameKind
	target int
}

// frameStack is a persistent stack of frames. The nil stack is empty. Push
// allocates a new node on top of an unchanged parent, so every control path
// owns its own view and forks never observe each other's updates.
type frameStack struct {
	frame
	parent *frameStack
	depth  int
}

func (s *frameStack) push(f frame) *frameStack {
	return &frameStack{frame: f, parent: s, depth: s.len() + 1}
}

// pop returns the stack without its top frame. s must not be empty.
func (s *frameStack) pop() *frameStack {
	return s.parent
}

func (s *frameStack) top() frame {
	return s.frame
}

func (s *frameStack) len() int {
	if s == nil {
		return 0
	}
	return s.depth
}

// nearest returns the topmost node holding a frame of the given kind, nil if
// there is none. The node's parent is the stack left after exiting that
// region and everything opened inside it.
func (s *frameStack) nearest(kind opcodes.FrameKind) *frameStack {
	for n := s; n != nil; n = n.parent {
		if n.kind == kind {
			return n
		}
	}
	return nil
}
