package opcodes

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// CodeFlags is the flags bitmask of a code unit.
type CodeFlags uint32

const (
	CO_OPTIMIZED          CodeFlags = 0x0001
	CO_NEWLOCALS          CodeFlags = 0x0002
	CO_VARARGS            CodeFlags = 0x0004
	CO_VARKEYWORDS        CodeFlags = 0x0008
	CO_NESTED             CodeFlags = 0x0010
	CO_GENERATOR          CodeFlags = 0x0020
	CO_NOFREE             CodeFlags = 0x0040
	CO_COROUTINE          CodeFlags = 0x0080
	CO_ITERABLE_COROUTINE CodeFlags = 0x0100
	CO_ASYNC_GENERATOR    CodeFlags = 0x0200
)

var codeFlagNames = []struct {
	flag CodeFlags
	name string
}{
	{CO_OPTIMIZED, "optimized"},
	{CO_NEWLOCALS, "newlocals"},
	{CO_VARARGS, "varargs"},
	{CO_VARKEYWORDS, "varkeywords"},
	{CO_NESTED, "nested"},
	{CO_GENERATOR, "generator"},
	{CO_NOFREE, "nofree"},
	{CO_COROUTINE, "coroutine"},
	{CO_ITERABLE_COROUTINE, "iterable_coroutine"},
	{CO_ASYNC_GENERATOR, "async_generator"},
}

// Names returns the names of the set flags in bit order.
func (f CodeFlags) Names() []string {
	var names []string
	for _, fl := range codeFlagNames {
		if f&fl.flag != 0 {
			names = append(names, fl.name)
		}
	}
	return names
}

// LookupCodeFlag resolves a flag name as returned by Names.
func LookupCodeFlag(name string) (CodeFlags, bool) {
	for _, fl := range codeFlagNames {
		if fl.name == name {
			return fl.flag, true
		}
	}
	return 0, false
}

// ErrInvalidCode is returned by Validate for structurally broken units.
var ErrInvalidCode = errors.New("invalid code unit")

// Code is one decoded code unit: a module body, function, method or closure.
// Everything but Instructions is opaque to the graph builder; nested units
// are found among Consts.
type Code struct {
	Name      string
	Filename  string
	FirstLine int

	ArgCount        int
	PosOnlyArgCount int
	KwOnlyArgCount  int
	NLocals         int
	StackSize       int
	Flags           CodeFlags

	Consts   []interface{}
	Names    []string
	VarNames []string
	FreeVars []string
	CellVars []string

	Instructions []*Instruction
}

// Len returns the number of instructions.
func (c *Code) Len() int {
	return len(c.Instructions)
}

// First returns the entry instruction, nil for an empty unit.
func (c *Code) First() *Instruction {
	if len(c.Instructions) == 0 {
		return nil
	}
	return c.Instructions[0]
}

// Next returns the instruction following ins in program order, or nil if ins
// is the last one.
func (c *Code) Next(ins *Instruction) *Instruction {
	if ins.Index+1 >= len(c.Instructions) {
		return nil
	}
	return c.Instructions[ins.Index+1]
}

// Nested returns the code units held directly in Consts, in constant order.
func (c *Code) Nested() []*Code {
	var nested []*Code
	for _, k := range c.Consts {
		if sub, ok := k.(*Code); ok && sub != nil {
			nested = append(nested, sub)
		}
	}
	return nested
}

// Validate checks the instruction stream is self-consistent: indexes match
// positions, opcodes are known and every target stays inside the unit.
func (c *Code) Validate() error {
	for i, ins := range c.Instructions {
		if ins == nil {
			return errors.Wrapf(ErrInvalidCode, "%s: nil instruction at %d", c.Name, i)
		}
		if ins.Index != i {
			return errors.Wrapf(ErrInvalidCode, "%s: instruction at %d has index %d", c.Name, i, ins.Index)
		}
		if !ins.Op.Valid() {
			return errors.Wrapf(ErrInvalidCode, "%s: %v at %d", c.Name, ins.Op, i)
		}
		if ins.HasTarget() && (ins.Target < 0 || ins.Target >= len(c.Instructions)) {
			return errors.Wrapf(ErrInvalidCode, "%s: %v at %d targets %d outside [0,%d)", c.Name, ins.Op, i, ins.Target, len(c.Instructions))
		}
		if ins.DoesJump() && !ins.HasTarget() {
			return errors.Wrapf(ErrInvalidCode, "%s: %v at %d without target", c.Name, ins.Op, i)
		}
	}
	return nil
}

// Fingerprint hashes the control-relevant part of the instruction stream.
// Units with equal fingerprints produce identical block layouts.
func (c *Code) Fingerprint() common.Hash {
	buf := make([]byte, 0, len(c.Instructions)*17)
	for _, ins := range c.Instructions {
		buf = append(buf, byte(ins.Op))
		buf = binary.BigEndian.AppendUint64(buf, uint64(ins.Arg))
		buf = binary.BigEndian.AppendUint64(buf, uint64(ins.Target))
	}
	return crypto.Keccak256Hash(buf)
}
