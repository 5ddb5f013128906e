package blocks

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

var edgeStyles = map[EdgeKind]string{
	Fallthrough: "solid",
	Jump:        "bold",
	BlockTarget: "dashed",
}

// ToDot renders the block graph in Graphviz DOT. Back edges are drawn in
// red and blocks unreachable from the entry in grey.
func (oc *OrderedCode) ToDot(title string) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	fmt.Fprintln(w, "digraph StackCFG {")
	fmt.Fprintln(w, "  node [shape=box, fontname=\"monospace\"];")
	if title == "" {
		title = oc.Name()
	}
	if title != "" {
		fmt.Fprintf(w, "  labelloc=\"t\";\n  label=\"%s\";\n", escapeDOT(title))
	}

	reachable := make([]bool, len(oc.blocks))
	rank := make([]int, len(oc.blocks))
	for i, b := range oc.order {
		reachable[b.id] = true
		rank[b.id] = i
	}
	back := make(map[[2]int]bool, len(oc.backEdges))
	for _, e := range oc.backEdges {
		back[[2]int{e.From, e.To}] = true
	}

	// Nodes
	for _, b := range oc.blocks {
		var label strings.Builder
		if reachable[b.id] {
			fmt.Fprintf(&label, "B%d #%d\n", b.id, rank[b.id])
		} else {
			fmt.Fprintf(&label, "B%d unreachable\n", b.id)
		}
		for _, ins := range b.instructions {
			label.WriteString(ins.String())
			if target, ok := oc.targets.Get(ins.Index); ok {
				fmt.Fprintf(&label, " => %d", target)
			}
			label.WriteString("\\l")
		}
		attrs := ""
		if !reachable[b.id] {
			attrs = ", color=grey, fontcolor=grey"
		}
		fmt.Fprintf(w, "  n%d [label=\"%s\"%s];\n", b.id, escapeDOT(label.String()), attrs)
	}
	// Edges
	for _, e := range oc.edges {
		attrs := fmt.Sprintf("style=%s, label=\"%v\"", edgeStyles[e.Kind], e.Kind)
		if back[[2]int{e.From, e.To}] {
			attrs += ", color=red"
		}
		fmt.Fprintf(w, "  n%d -> n%d [%s];\n", e.From, e.To, attrs)
	}
	fmt.Fprintln(w, "}")
	w.Flush()
	return buf.Bytes()
}

func escapeDOT(s string) string {
	// Keep backslash sequences (like \l) intact so Graphviz can interpret them.
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
