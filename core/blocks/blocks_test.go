package blocks

import (
	"testing"

	"github.com/bnb-chain/stackcfg/core/asm"
	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *opcodes.Code {
	t.Helper()
	code, err := asm.ParseString(src)
	require.NoError(t, err)
	return code
}

func mustOrder(t *testing.T, src string) *OrderedCode {
	t.Helper()
	oc, _, err := ProcessCode(mustParse(t, src))
	require.NoError(t, err)
	return oc
}

func blockStarts(blocks []*Block) []int {
	starts := make([]int, len(blocks))
	for i, b := range blocks {
		starts[i] = b.Start()
	}
	return starts
}

func blockIDs(blocks []*Block) []int {
	ids := make([]int, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID()
	}
	return ids
}

const straightLine = `
	LOAD_CONST 0
	LOAD_CONST 1
	BINARY_ADD
	DUP_TOP
	RETURN_VALUE
`

const tryFinally = `
	SETUP_FINALLY handler
	LOAD_NAME 0
	POP_BLOCK
	JUMP_FORWARD end
handler:
	END_FINALLY
end:
	RETURN_VALUE
`

const tryExcept = `
	SETUP_EXCEPT handler     ; 0
	LOAD_NAME 0
	POP_TOP
	POP_BLOCK                ; 3
	JUMP_FORWARD end
handler:
	POP_TOP                  ; 5
	POP_EXCEPT
	JUMP_FORWARD end
	END_FINALLY              ; 8, never reached
end:
	LOAD_CONST 0             ; 9
	RETURN_VALUE
`

const whileBreak = `
	SETUP_LOOP exit          ; 0
loop:
	LOAD_NAME 0              ; 1
	POP_JUMP_IF_FALSE done
	LOAD_NAME 1              ; 3
	POP_JUMP_IF_FALSE cont
	BREAK_LOOP               ; 5
cont:
	JUMP_ABSOLUTE loop       ; 6
done:
	POP_BLOCK                ; 7
exit:
	LOAD_CONST 0             ; 8
	RETURN_VALUE
`

func TestStraightLine(t *testing.T) {
	oc := mustOrder(t, straightLine)
	require.Len(t, oc.Blocks(), 1)
	assert.Empty(t, oc.Block(0).Outgoing())
	assert.Empty(t, oc.Edges())
	assert.Equal(t, []int{0}, blockIDs(oc.Order()))
	assert.Equal(t, 5, oc.Block(0).Size())
	assert.Zero(t, oc.BlockTargets().Len())
}

func TestTryFinally(t *testing.T) {
	oc := mustOrder(t, tryFinally)
	// The jump target "end" starts a block of its own.
	assert.Equal(t, []int{0, 1, 3, 4, 5}, blockStarts(oc.Blocks()))

	setup := oc.Block(0)
	assert.Equal(t, []int{1, 3}, setup.Outgoing())
	assert.Equal(t, []Edge{{0, 1, Fallthrough}, {0, 3, Jump}}, setup.OutgoingEdges())

	// Leaving the protected region runs the finally handler.
	target, ok := oc.BlockTarget(2)
	require.True(t, ok)
	assert.Equal(t, 4, target)
	assert.Equal(t, []int{2, 3}, oc.Block(1).Outgoing())
	assert.Equal(t, BlockTarget, oc.Block(1).OutgoingEdges()[1].Kind)

	assert.Equal(t, []int{0, 1, 3, 2, 4}, blockIDs(oc.Order()))
	assert.Empty(t, oc.BackEdges())
	assert.ElementsMatch(t, []int{0, 1}, oc.Block(3).Incoming())
}

func TestTryExcept(t *testing.T) {
	oc := mustOrder(t, tryExcept)
	assert.Equal(t, []int{0, 1, 4, 5, 8, 9}, blockStarts(oc.Blocks()))

	target, ok := oc.BlockTarget(3)
	require.True(t, ok)
	assert.Equal(t, 5, target)

	assert.Equal(t, []int{0, 1, 3, 2, 5}, blockIDs(oc.Order()))
	// The dead END_FINALLY keeps its block and its fallthrough edge but is
	// not ordered.
	assert.Len(t, oc.Blocks(), 6)
	assert.Equal(t, []int{5}, oc.Block(4).Outgoing())
	assert.Equal(t, []int{2, 3, 4}, oc.Block(5).Incoming())
}

func TestWhileBreak(t *testing.T) {
	oc := mustOrder(t, whileBreak)
	assert.Equal(t, []int{0, 1, 3, 5, 6, 7, 8}, blockStarts(oc.Blocks()))

	exit := oc.Block(6)
	brk, ok := oc.BlockTarget(5)
	require.True(t, ok)
	assert.Equal(t, exit.Start(), brk)
	assert.Equal(t, []Edge{{3, 6, BlockTarget}}, oc.Block(3).OutgoingEdges())

	pop, ok := oc.BlockTarget(7)
	require.True(t, ok)
	assert.Equal(t, exit.Start(), pop)
	// Fallthrough was added first and wins over the block-target edge.
	assert.Equal(t, []Edge{{5, 6, Fallthrough}}, oc.Block(5).OutgoingEdges())

	assert.Equal(t, []int{0, 1, 5, 2, 4, 3, 6}, blockIDs(oc.Order()))
	assert.Equal(t, []Edge{{4, 1, Jump}}, oc.BackEdges())

	// Only the loop's back edge runs against the order.
	rank := make(map[int]int)
	for i, b := range oc.Order() {
		rank[b.ID()] = i
	}
	var violating []Edge
	for _, e := range oc.Edges() {
		if rank[e.From] >= rank[e.To] {
			violating = append(violating, e)
		}
	}
	assert.Equal(t, oc.BackEdges(), violating)
}

func TestSelfLoop(t *testing.T) {
	oc := mustOrder(t, `
		LOAD_CONST 0
	top:
		JUMP_ABSOLUTE top
	`)
	assert.Equal(t, []int{0, 1}, blockStarts(oc.Blocks()))
	assert.Equal(t, []int{1}, oc.Block(1).Outgoing())
	assert.Equal(t, []int{0, 1}, oc.Block(1).Incoming())
	assert.Equal(t, []Edge{{1, 1, Jump}}, oc.BackEdges())
}

func TestFallsOffTheEnd(t *testing.T) {
	oc := mustOrder(t, "NOP\nNOP\nNOP")
	require.Len(t, oc.Blocks(), 1)
	assert.Empty(t, oc.Edges())
	assert.False(t, oc.Block(0).IsTerminal())
}

func TestBareReraise(t *testing.T) {
	code := mustParse(t, `
		SETUP_EXCEPT handler
		RAISE_VARARGS 0          ; 1, inside the region
	handler:
		POP_TOP                  ; 2
		RAISE_VARARGS 0          ; 3, handler runs outside the region
	`)
	targets, err := Annotate(code)
	require.NoError(t, err)
	target, ok := targets.Get(1)
	require.True(t, ok)
	assert.Equal(t, 2, target)
	_, ok = targets.Get(3)
	assert.False(t, ok, "re-raise without a handler propagates to the caller")
	assert.Equal(t, 1, targets.Len())

	// RAISE_VARARGS with arguments raises a new exception.
	targets, err = Annotate(mustParse(t, `
		SETUP_EXCEPT handler
		RAISE_VARARGS 1
	handler:
		RETURN_VALUE
	`))
	require.NoError(t, err)
	assert.Zero(t, targets.Len())
}

func TestBreakInsideHandlerRegion(t *testing.T) {
	code := mustParse(t, `
		SETUP_LOOP exit          ; 0
	loop:
		SETUP_EXCEPT handler     ; 1
		BREAK_LOOP               ; 2
	handler:
		POP_TOP                  ; 3
		POP_EXCEPT
		JUMP_ABSOLUTE loop
	exit:
		LOAD_CONST 0             ; 6
		RETURN_VALUE
	`)
	targets, err := Annotate(code)
	require.NoError(t, err)
	assert.Equal(t, BlockTargets{2: 6}, targets)

	oc, _, err := ProcessCode(code)
	require.NoError(t, err)
	brk := oc.Block(2)
	assert.Equal(t, 2, brk.Start())
	assert.Equal(t, []Edge{{2, 4, BlockTarget}}, brk.OutgoingEdges())
}

func TestFirstStackWins(t *testing.T) {
	// "shared" is reached first from the handler, outside the region, and
	// later from inside the region. Only the first arrival is annotated.
	code := mustParse(t, `
		SETUP_EXCEPT handler     ; 0
		POP_JUMP_IF_TRUE shared  ; 1
		POP_BLOCK                ; 2
		JUMP_ABSOLUTE shared
	handler:
		POP_TOP                  ; 4
	shared:
		RAISE_VARARGS 0          ; 5
	`)
	targets, err := Annotate(code)
	require.NoError(t, err)
	assert.Equal(t, BlockTargets{2: 4}, targets)

	again, err := Annotate(code)
	require.NoError(t, err)
	assert.Equal(t, targets, again)
}

func TestMalformedInput(t *testing.T) {
	cases := map[string]*opcodes.Code{
		"pop without region": mustParse(t, "POP_BLOCK\nRETURN_VALUE"),
		"break outside loop": mustParse(t, "BREAK_LOOP"),
		"target out of range": {Name: "bad", Instructions: []*opcodes.Instruction{
			{Op: opcodes.JUMP_ABSOLUTE, Index: 0, Target: 7},
		}},
	}
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ProcessCode(code)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput), "%v", err)
		})
	}
}

func TestConnectMissingBlock(t *testing.T) {
	code := mustParse(t, straightLine)
	blocks := Split(code)
	_, err := Connect(blocks, BlockTargets{4: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInput))
}

func TestEmptyUnit(t *testing.T) {
	code := &opcodes.Code{Name: "empty"}
	assert.Nil(t, Split(code))

	oc, graph, err := ProcessCode(code)
	require.NoError(t, err)
	assert.Empty(t, oc.Blocks())
	assert.Empty(t, oc.Order())
	assert.Nil(t, oc.FirstOpcode())
	assert.Nil(t, oc.CodeIter().Next())
	assert.Zero(t, graph.Len(), "empty units are not registered")
}

func TestCodeIter(t *testing.T) {
	oc := mustOrder(t, whileBreak)
	var indexes []int
	it := oc.CodeIter()
	for it.HasNext() {
		indexes = append(indexes, it.Next().Index)
	}
	assert.Nil(t, it.Next())
	assert.Equal(t, []int{0, 1, 2, 7, 3, 4, 6, 5, 8, 9}, indexes)
	assert.Same(t, oc.Code().Instructions[0], oc.FirstOpcode())
}

func TestUnitFlags(t *testing.T) {
	oc := mustOrder(t, `
	.code gen flags=generator,varargs,newlocals
		LOAD_CONST 0
		YIELD_VALUE
		RETURN_VALUE
	.end
	`)
	assert.True(t, oc.IsGenerator())
	assert.True(t, oc.HasVarargs())
	assert.True(t, oc.HasNewlocals())
	assert.False(t, oc.IsCoroutine())
	assert.False(t, oc.IsAsyncGenerator())
	assert.False(t, oc.IsIterableCoroutine())
	assert.False(t, oc.HasVarkeywords())
	assert.True(t, oc.HasOpcode(opcodes.YIELD_VALUE))
	assert.False(t, oc.HasOpcode(opcodes.BREAK_LOOP))
	assert.Equal(t, "gen", oc.Name())
}

func TestFrameStack(t *testing.T) {
	var empty *frameStack
	assert.Zero(t, empty.len())
	assert.Nil(t, empty.nearest(opcodes.LoopFrame))

	loop := empty.push(frame{kind: opcodes.LoopFrame, target: 9})
	try := loop.push(frame{kind: opcodes.ExceptFrame, target: 4})
	other := loop.push(frame{kind: opcodes.ExceptFrame, target: 5})

	assert.Equal(t, 2, try.len())
	assert.Equal(t, 4, try.top().target)
	assert.Equal(t, 5, other.top().target, "forks do not share frames")
	assert.Same(t, loop, try.pop())
	assert.Same(t, loop, try.nearest(opcodes.LoopFrame))
	assert.Nil(t, try.nearest(opcodes.LoopFrame).pop())
	assert.Equal(t, 4, try.nearest(opcodes.ExceptFrame).target)
}
