package opcodes

import "fmt"

// Opcode identifies one instruction of the stack machine. Values follow the
// CPython numbering so decoded listings can be compared against dis output.
type Opcode byte

// Flags describe the static control-flow behaviour of an opcode.
type Flags uint16

const (
	HasJrel     Flags = 1 << iota // relative jump target
	HasJabs                       // absolute jump target
	NoNext                        // never falls through
	PushesBlock                   // opens a structured region
	PopsBlock                     // closes the innermost structured region
	HasArgument                   // carries an oparg
)

// Stack manipulation and general operations.
const (
	POP_TOP   Opcode = 0x01
	ROT_TWO   Opcode = 0x02
	ROT_THREE Opcode = 0x03
	DUP_TOP   Opcode = 0x04
	NOP       Opcode = 0x09
	UNARY_NOT Opcode = 0x0c

	BINARY_ADD      Opcode = 0x17
	BINARY_SUBTRACT Opcode = 0x18
	BINARY_SUBSCR   Opcode = 0x19

	RERAISE Opcode = 0x30

	GET_ITER         Opcode = 0x44
	LOAD_BUILD_CLASS Opcode = 0x47
	YIELD_FROM       Opcode = 0x48
	GET_AWAITABLE    Opcode = 0x49
)

// Block handling and returns.
const (
	BREAK_LOOP          Opcode = 0x50
	WITH_CLEANUP_START  Opcode = 0x51
	WITH_CLEANUP_FINISH Opcode = 0x52
	RETURN_VALUE        Opcode = 0x53
	YIELD_VALUE         Opcode = 0x56
	POP_BLOCK           Opcode = 0x57
	END_FINALLY         Opcode = 0x58
	POP_EXCEPT          Opcode = 0x59
)

// Opcodes from STORE_NAME upwards carry an argument.
const (
	STORE_NAME           Opcode = 0x5a
	FOR_ITER             Opcode = 0x5d
	STORE_ATTR           Opcode = 0x5f
	LOAD_CONST           Opcode = 0x64
	LOAD_NAME            Opcode = 0x65
	BUILD_TUPLE          Opcode = 0x66
	LOAD_ATTR            Opcode = 0x6a
	COMPARE_OP           Opcode = 0x6b
	IMPORT_NAME          Opcode = 0x6c
	JUMP_FORWARD         Opcode = 0x6e
	JUMP_IF_FALSE_OR_POP Opcode = 0x6f
	JUMP_IF_TRUE_OR_POP  Opcode = 0x70
	JUMP_ABSOLUTE        Opcode = 0x71
	POP_JUMP_IF_FALSE    Opcode = 0x72
	POP_JUMP_IF_TRUE     Opcode = 0x73
	LOAD_GLOBAL          Opcode = 0x74
	CONTINUE_LOOP        Opcode = 0x77
	SETUP_LOOP           Opcode = 0x78
	SETUP_EXCEPT         Opcode = 0x79
	SETUP_FINALLY        Opcode = 0x7a
	LOAD_FAST            Opcode = 0x7c
	STORE_FAST           Opcode = 0x7d
	RAISE_VARARGS        Opcode = 0x82
	CALL_FUNCTION        Opcode = 0x83
	MAKE_FUNCTION        Opcode = 0x84
	LOAD_CLOSURE         Opcode = 0x87
	LOAD_DEREF           Opcode = 0x88
	STORE_DEREF          Opcode = 0x89
	SETUP_WITH           Opcode = 0x8f
	SETUP_ASYNC_WITH     Opcode = 0x9a
	LOAD_METHOD          Opcode = 0xa0
	CALL_METHOD          Opcode = 0xa1
)

// OpcodeInfo provides the metadata of an opcode.
type OpcodeInfo struct {
	Name  string
	Flags Flags
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	POP_TOP:   {"POP_TOP", 0},
	ROT_TWO:   {"ROT_TWO", 0},
	ROT_THREE: {"ROT_THREE", 0},
	DUP_TOP:   {"DUP_TOP", 0},
	NOP:       {"NOP", 0},
	UNARY_NOT: {"UNARY_NOT", 0},

	BINARY_ADD:      {"BINARY_ADD", 0},
	BINARY_SUBTRACT: {"BINARY_SUBTRACT", 0},
	BINARY_SUBSCR:   {"BINARY_SUBSCR", 0},

	RERAISE: {"RERAISE", NoNext},

	GET_ITER:         {"GET_ITER", 0},
	LOAD_BUILD_CLASS: {"LOAD_BUILD_CLASS", 0},
	YIELD_FROM:       {"YIELD_FROM", 0},
	GET_AWAITABLE:    {"GET_AWAITABLE", 0},

	BREAK_LOOP:          {"BREAK_LOOP", NoNext},
	WITH_CLEANUP_START:  {"WITH_CLEANUP_START", 0},
	WITH_CLEANUP_FINISH: {"WITH_CLEANUP_FINISH", 0},
	RETURN_VALUE:        {"RETURN_VALUE", NoNext},
	YIELD_VALUE:         {"YIELD_VALUE", 0},
	POP_BLOCK:           {"POP_BLOCK", PopsBlock},
	END_FINALLY:         {"END_FINALLY", 0},
	POP_EXCEPT:          {"POP_EXCEPT", 0},

	STORE_NAME:           {"STORE_NAME", HasArgument},
	FOR_ITER:             {"FOR_ITER", HasArgument | HasJrel},
	STORE_ATTR:           {"STORE_ATTR", HasArgument},
	LOAD_CONST:           {"LOAD_CONST", HasArgument},
	LOAD_NAME:            {"LOAD_NAME", HasArgument},
	BUILD_TUPLE:          {"BUILD_TUPLE", HasArgument},
	LOAD_ATTR:            {"LOAD_ATTR", HasArgument},
	COMPARE_OP:           {"COMPARE_OP", HasArgument},
	IMPORT_NAME:          {"IMPORT_NAME", HasArgument},
	JUMP_FORWARD:         {"JUMP_FORWARD", HasArgument | HasJrel | NoNext},
	JUMP_IF_FALSE_OR_POP: {"JUMP_IF_FALSE_OR_POP", HasArgument | HasJabs},
	JUMP_IF_TRUE_OR_POP:  {"JUMP_IF_TRUE_OR_POP", HasArgument | HasJabs},
	JUMP_ABSOLUTE:        {"JUMP_ABSOLUTE", HasArgument | HasJabs | NoNext},
	POP_JUMP_IF_FALSE:    {"POP_JUMP_IF_FALSE", HasArgument | HasJabs},
	POP_JUMP_IF_TRUE:     {"POP_JUMP_IF_TRUE", HasArgument | HasJabs},
	LOAD_GLOBAL:          {"LOAD_GLOBAL", HasArgument},
	CONTINUE_LOOP:        {"CONTINUE_LOOP", HasArgument | HasJabs | NoNext},
	SETUP_LOOP:           {"SETUP_LOOP", HasArgument | HasJrel | PushesBlock},
	SETUP_EXCEPT:         {"SETUP_EXCEPT", HasArgument | HasJrel | PushesBlock},
	SETUP_FINALLY:        {"SETUP_FINALLY", HasArgument | HasJrel | PushesBlock},
	LOAD_FAST:            {"LOAD_FAST", HasArgument},
	STORE_FAST:           {"STORE_FAST", HasArgument},
	RAISE_VARARGS:        {"RAISE_VARARGS", HasArgument | NoNext},
	CALL_FUNCTION:        {"CALL_FUNCTION", HasArgument},
	MAKE_FUNCTION:        {"MAKE_FUNCTION", HasArgument},
	LOAD_CLOSURE:         {"LOAD_CLOSURE", HasArgument},
	LOAD_DEREF:           {"LOAD_DEREF", HasArgument},
	STORE_DEREF:          {"STORE_DEREF", HasArgument},
	SETUP_WITH:           {"SETUP_WITH", HasArgument | HasJrel | PushesBlock},
	SETUP_ASYNC_WITH:     {"SETUP_ASYNC_WITH", HasArgument | HasJrel | PushesBlock},
	LOAD_METHOD:          {"LOAD_METHOD", HasArgument},
	CALL_METHOD:          {"CALL_METHOD", HasArgument},
}

var nameToOpcode map[string]Opcode

func init() {
	nameToOpcode = make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		nameToOpcode[info.Name] = op
	}
}

// Info returns the metadata of op. Unknown opcodes report ok == false.
func (op Opcode) Info() (info OpcodeInfo, ok bool) {
	info, ok = opcodeInfoTable[op]
	return info, ok
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Flags returns the static flags of op, zero for unknown opcodes.
func (op Opcode) Flags() Flags {
	return opcodeInfoTable[op].Flags
}

func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("opcode %#x not defined", byte(op))
}

// LookupOpcode resolves a mnemonic such as "SETUP_LOOP".
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := nameToOpcode[name]
	return op, ok
}

// FrameKind is the kind of structured region an opcode opens.
type FrameKind uint8

const (
	NoFrame FrameKind = iota
	LoopFrame
	ExceptFrame
)

func (k FrameKind) String() string {
	switch k {
	case LoopFrame:
		return "loop"
	case ExceptFrame:
		return "except"
	default:
		return "none"
	}
}

// FrameKind returns the region kind opened by op.
func (op Opcode) FrameKind() FrameKind {
	switch op {
	case SETUP_LOOP:
		return LoopFrame
	case SETUP_EXCEPT, SETUP_FINALLY, SETUP_WITH, SETUP_ASYNC_WITH:
		return ExceptFrame
	}
	return NoFrame
}
