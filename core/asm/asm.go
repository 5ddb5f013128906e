// Package asm assembles textual instruction listings into code units.
//
// A listing holds one root unit. Units may nest, which is how closures are
// written:
//
//	.code outer argcount=1 flags=newlocals,optimized
//	    LOAD_CONST &inner       ; pushes the nested unit as a constant
//	    MAKE_FUNCTION 0
//	    RETURN_VALUE
//	  .code inner
//	    LOAD_CONST 0
//	    RETURN_VALUE
//	  .end
//	.end
//
// Jump operands name a label ("loop:") or an absolute index ("@4").
// Instructions written outside any .code directive form an implicit
// "<module>" unit.
package asm

import (
	"bufio"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/bnb-chain/stackcfg/core/opcodes"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// ErrSyntax is wrapped by every assembler error.
var ErrSyntax = errors.New("syntax error")

const moduleName = "<module>"

type fixup struct {
	index int
	label string
	line  int
}

type unitRef struct {
	index int
	name  string
	line  int
}

type unit struct {
	code   *opcodes.Code
	labels map[string]int
	jumps  []fixup
	refs   []unitRef
	nested map[string]*opcodes.Code
	line   int
}

func newUnit(name string, line int) *unit {
	return &unit{
		code:   &opcodes.Code{Name: name, FirstLine: line},
		labels: make(map[string]int),
		nested: make(map[string]*opcodes.Code),
		line:   line,
	}
}

type assembler struct {
	file  string
	stack []*unit
	root  *opcodes.Code
}

// Parse assembles a listing read from r.
func Parse(r io.Reader) (*opcodes.Code, error) {
	return parse(r, "")
}

// ParseString assembles the listing in src.
func ParseString(src string) (*opcodes.Code, error) {
	return parse(strings.NewReader(src), "")
}

// ParseFile assembles the listing stored at path.
func ParseFile(path string) (*opcodes.Code, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(bufio.NewReader(f), path)
}

// MustParse is like ParseString but panics on error. Meant for fixtures.
func MustParse(src string) *opcodes.Code {
	code, err := ParseString(src)
	if err != nil {
		panic(err)
	}
	return code
}

func parse(r io.Reader, file string) (*opcodes.Code, error) {
	a := &assembler{file: file}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := a.line(scanner.Text(), lineNo); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(a.stack) == 1 && a.stack[0].code.Name == moduleName && a.root == nil:
		// Implicit module body.
		if err := a.closeUnit(lineNo); err != nil {
			return nil, err
		}
	case len(a.stack) > 0:
		return nil, errors.Wrapf(ErrSyntax, "line %d: unit %q is not closed", lineNo, a.top().code.Name)
	}
	if a.root == nil {
		return nil, errors.Wrap(ErrSyntax, "empty listing")
	}
	return a.root, nil
}

func (a *assembler) top() *unit {
	return a.stack[len(a.stack)-1]
}

func stripComment(s string) string {
	if i := strings.IndexAny(s, ";#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (a *assembler) line(text string, lineNo int) error {
	text = stripComment(text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, ".") {
		return a.directive(text, lineNo)
	}
	if len(a.stack) == 0 {
		if a.root != nil {
			return errors.Wrapf(ErrSyntax, "line %d: instruction after the root unit", lineNo)
		}
		u := newUnit(moduleName, lineNo)
		u.code.Filename = a.file
		a.stack = append(a.stack, u)
	}
	u := a.top()
	if strings.HasSuffix(text, ":") {
		label := strings.TrimSuffix(text, ":")
		if _, dup := u.labels[label]; dup {
			return errors.Wrapf(ErrSyntax, "line %d: duplicate label %q", lineNo, label)
		}
		u.labels[label] = len(u.code.Instructions)
		return nil
	}
	return a.instruction(u, strings.Fields(text), lineNo)
}

func (a *assembler) directive(text string, lineNo int) error {
	fields := strings.Fields(text)
	switch fields[0] {
	case ".code":
		if len(fields) < 2 {
			return errors.Wrapf(ErrSyntax, "line %d: .code needs a name", lineNo)
		}
		if len(a.stack) == 0 && a.root != nil {
			return errors.Wrapf(ErrSyntax, "line %d: second root unit %q", lineNo, fields[1])
		}
		if len(a.stack) == 1 && a.stack[0].code.Name == moduleName && len(a.stack[0].code.Instructions) > 0 {
			return errors.Wrapf(ErrSyntax, "line %d: .code after implicit module instructions", lineNo)
		}
		u := newUnit(fields[1], lineNo)
		u.code.Filename = a.file
		if err := applyAttributes(u.code, fields[2:], lineNo); err != nil {
			return err
		}
		a.stack = append(a.stack, u)
		return nil
	case ".end":
		if len(a.stack) == 0 {
			return errors.Wrapf(ErrSyntax, "line %d: .end without .code", lineNo)
		}
		return a.closeUnit(lineNo)
	default:
		return errors.Wrapf(ErrSyntax, "line %d: unknown directive %s", lineNo, fields[0])
	}
}

func applyAttributes(code *opcodes.Code, attrs []string, lineNo int) error {
	for _, attr := range attrs {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			return errors.Wrapf(ErrSyntax, "line %d: attribute %q is not key=value", lineNo, attr)
		}
		if key == "flags" {
			for _, name := range strings.Split(value, ",") {
				fl, ok := opcodes.LookupCodeFlag(name)
				if !ok {
					return errors.Wrapf(ErrSyntax, "line %d: unknown flag %q", lineNo, name)
				}
				code.Flags |= fl
			}
			continue
		}
		if key == "file" {
			code.Filename = value
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(ErrSyntax, "line %d: attribute %s: %v", lineNo, key, err)
		}
		switch key {
		case "argcount":
			code.ArgCount = n
		case "posonlyargcount":
			code.PosOnlyArgCount = n
		case "kwonlyargcount":
			code.KwOnlyArgCount = n
		case "nlocals":
			code.NLocals = n
		case "stacksize":
			code.StackSize = n
		case "line":
			code.FirstLine = n
		default:
			return errors.Wrapf(ErrSyntax, "line %d: unknown attribute %q", lineNo, key)
		}
	}
	return nil
}

func (a *assembler) instruction(u *unit, fields []string, lineNo int) error {
	op, ok := opcodes.LookupOpcode(fields[0])
	if !ok {
		return errors.Wrapf(ErrSyntax, "line %d: unknown opcode %q", lineNo, fields[0])
	}
	if len(fields) > 2 {
		return errors.Wrapf(ErrSyntax, "line %d: too many operands for %v", lineNo, op)
	}
	ins := opcodes.NewInstruction(op, len(u.code.Instructions), 0)
	ins.Line = lineNo
	if len(fields) == 2 {
		operand := fields[1]
		switch {
		case ins.DoesJump():
			if strings.HasPrefix(operand, "@") {
				n, err := strconv.Atoi(operand[1:])
				if err != nil {
					return errors.Wrapf(ErrSyntax, "line %d: bad index %q", lineNo, operand)
				}
				ins.Target = n
				ins.Arg = n
			} else {
				u.jumps = append(u.jumps, fixup{index: ins.Index, label: operand, line: lineNo})
			}
		case strings.HasPrefix(operand, "&"):
			u.refs = append(u.refs, unitRef{index: ins.Index, name: operand[1:], line: lineNo})
		default:
			n, err := strconv.Atoi(operand)
			if err != nil {
				return errors.Wrapf(ErrSyntax, "line %d: bad operand %q", lineNo, operand)
			}
			ins.Arg = n
		}
	} else if ins.DoesJump() {
		return errors.Wrapf(ErrSyntax, "line %d: %v needs a target", lineNo, op)
	}
	u.code.Instructions = append(u.code.Instructions, ins)
	return nil
}

func (a *assembler) closeUnit(lineNo int) error {
	u := a.top()
	a.stack = a.stack[:len(a.stack)-1]

	for _, fx := range u.jumps {
		target, ok := u.labels[fx.label]
		if !ok {
			return errors.Wrapf(ErrSyntax, "line %d: undefined label %q in %s", fx.line, fx.label, u.code.Name)
		}
		ins := u.code.Instructions[fx.index]
		ins.Target = target
		ins.Arg = target
	}
	for _, ref := range u.refs {
		sub, ok := u.nested[ref.name]
		if !ok {
			return errors.Wrapf(ErrSyntax, "line %d: undefined unit %q in %s", ref.line, ref.name, u.code.Name)
		}
		u.code.Instructions[ref.index].Arg = constIndex(u.code, sub)
	}
	// Nested units that are never loaded still belong to the constant pool.
	for _, sub := range u.code.Nested() {
		delete(u.nested, sub.Name)
	}
	for _, name := range sortedNames(u.nested) {
		constIndex(u.code, u.nested[name])
	}
	if err := u.code.Validate(); err != nil {
		return errors.Wrapf(ErrSyntax, "line %d: %v", lineNo, err)
	}
	if len(a.stack) == 0 {
		a.root = u.code
		return nil
	}
	parent := a.top()
	if _, dup := parent.nested[u.code.Name]; dup {
		return errors.Wrapf(ErrSyntax, "line %d: duplicate unit %q", u.line, u.code.Name)
	}
	u.code.Flags |= opcodes.CO_NESTED
	parent.nested[u.code.Name] = u.code
	return nil
}

// constIndex returns the position of sub in code's constants, appending it
// on first use.
func constIndex(code *opcodes.Code, sub *opcodes.Code) int {
	for i, k := range code.Consts {
		if k == sub {
			return i
		}
	}
	code.Consts = append(code.Consts, sub)
	return len(code.Consts) - 1
}

func sortedNames(m map[string]*opcodes.Code) []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}
