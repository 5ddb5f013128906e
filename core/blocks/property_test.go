package blocks

import (
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// programGen writes random structured listings: conditionals, loops with
// breaks, try/except, try/finally and re-raises, nested to a fixed depth.
type programGen struct {
	f      *fuzz.Fuzzer
	src    strings.Builder
	labels int
}

func (g *programGen) choose(n int) int {
	var c uint8
	g.f.Fuzz(&c)
	return int(c) % n
}

func (g *programGen) label() string {
	g.labels++
	return fmt.Sprintf("L%d", g.labels)
}

func (g *programGen) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.src, format+"\n", args...)
}

func (g *programGen) body(depth int, inLoop bool) {
	for n := 1 + g.choose(3); n > 0; n-- {
		g.statement(depth, inLoop)
	}
}

func (g *programGen) statement(depth int, inLoop bool) {
	kind := g.choose(8)
	if depth == 0 {
		kind = 0
	}
	switch kind {
	case 0:
		g.emit("LOAD_NAME %d", g.choose(4))
		g.emit("POP_TOP")
	case 1:
		orElse, end := g.label(), g.label()
		g.emit("LOAD_NAME 0")
		g.emit("POP_JUMP_IF_FALSE %s", orElse)
		g.body(depth-1, inLoop)
		g.emit("JUMP_FORWARD %s", end)
		g.emit("%s:", orElse)
		g.body(depth-1, inLoop)
		g.emit("%s:", end)
		g.emit("NOP")
	case 2:
		top, done, exit := g.label(), g.label(), g.label()
		g.emit("SETUP_LOOP %s", exit)
		g.emit("%s:", top)
		g.emit("LOAD_NAME 1")
		g.emit("POP_JUMP_IF_FALSE %s", done)
		g.body(depth-1, true)
		g.emit("JUMP_ABSOLUTE %s", top)
		g.emit("%s:", done)
		g.emit("POP_BLOCK")
		g.emit("%s:", exit)
		g.emit("NOP")
	case 3:
		handler, end := g.label(), g.label()
		g.emit("SETUP_EXCEPT %s", handler)
		g.body(depth-1, inLoop)
		g.emit("POP_BLOCK")
		g.emit("JUMP_FORWARD %s", end)
		g.emit("%s:", handler)
		g.emit("POP_TOP")
		g.body(depth-1, inLoop)
		g.emit("POP_EXCEPT")
		g.emit("%s:", end)
		g.emit("NOP")
	case 4:
		final := g.label()
		g.emit("SETUP_FINALLY %s", final)
		g.body(depth-1, inLoop)
		g.emit("POP_BLOCK")
		g.emit("LOAD_CONST 0")
		g.emit("%s:", final)
		g.body(depth-1, inLoop)
		g.emit("END_FINALLY")
	case 5:
		if inLoop {
			g.emit("BREAK_LOOP")
		} else {
			g.emit("NOP")
		}
	case 6:
		g.emit("RAISE_VARARGS 0")
	default:
		g.emit("LOAD_CONST 0")
		g.emit("RETURN_VALUE")
	}
}

func (g *programGen) program(depth int) string {
	g.body(depth, false)
	g.emit("LOAD_CONST 0")
	g.emit("RETURN_VALUE")
	return g.src.String()
}

func TestRandomPrograms(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		gen := &programGen{f: fuzz.NewWithSeed(seed)}
		src := gen.program(3)
		code := mustParse(t, src)

		first, _, err := ProcessCode(code)
		require.NoError(t, err, src)
		second, _, err := ProcessCode(code)
		require.NoError(t, err, src)
		dump := spew.Sdump(Export(mustGraph(t, first)))

		// Blocks partition the instructions in program order.
		next := 0
		for i, b := range first.Blocks() {
			require.Equal(t, i, b.ID())
			require.Equal(t, next, b.Start(), dump)
			for j, ins := range b.Instructions() {
				require.Same(t, code.Instructions[next+j], ins)
			}
			next += b.Size()
		}
		require.Equal(t, code.Len(), next)

		// Every edge follows the fallthrough, the jump target or the block
		// target of the source block's last instruction.
		for _, b := range first.Blocks() {
			last := b.Last()
			if !b.IsTerminal() && last.Index+1 < code.Len() {
				assert.NotEmpty(t, b.Outgoing(), "%v\n%s", b, src)
			}
			for _, to := range b.Outgoing() {
				start := first.Block(to).Start()
				target, ok := first.BlockTarget(last.Index)
				valid := start == last.Target || (ok && start == target) ||
					(!last.NoNext() && start == last.Index+1)
				assert.True(t, valid, "edge %v -> B%d\n%s", b, to, src)
			}
		}

		// Block targets only come from open regions.
		openers := make(map[int]bool)
		for _, ins := range code.Instructions {
			if ins.PushesBlock() {
				openers[ins.Target] = true
			}
		}
		for index, target := range first.BlockTargets() {
			assert.True(t, openers[target], "target %d of %d\n%s", target, index, src)
		}

		// Only back edges run against the order.
		rank := make(map[int]int)
		for i, b := range first.Order() {
			rank[b.ID()] = i
		}
		back := make(map[Edge]bool)
		for _, e := range first.BackEdges() {
			back[e] = true
		}
		for _, e := range first.Edges() {
			from, reachable := rank[e.From]
			if !reachable || back[e] {
				continue
			}
			assert.Less(t, from, rank[e.To], "edge %v\n%s", e, dump)
		}

		// A second run is structurally identical.
		assert.Equal(t, Export(mustGraph(t, first)), Export(mustGraph(t, second)))
		assert.Equal(t, blockIDs(first.Order()), blockIDs(second.Order()))
	}
}

func mustGraph(t *testing.T, oc *OrderedCode) *BlockGraph {
	t.Helper()
	graph := NewBlockGraph()
	require.NoError(t, graph.Add(oc))
	return graph
}
