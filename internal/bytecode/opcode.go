// Package bytecode defines the Zero instruction set, the compiled program
// model and its binary persistence format.
package bytecode

import "fmt"

// Opcode represents a single VM instruction.
//
// Opcodes are specialized per static operand type (OP_ADD_INT vs OP_ADD_STR):
// the compiler knows every expression's type, so the interpreter loop never
// inspects a runtime type tag. The numeric values are grouped with gaps left
// for future instructions; they are part of the wire format and must not be
// renumbered.
type Opcode byte

const (
	// Stack/Memory
	OP_CONST Opcode = 0 // operand: u16 const index; push constants[index]
	OP_LOAD  Opcode = 1 // operand: u8 slot; push locals[slot]
	OP_STORE Opcode = 2 // operand: u8 slot; pop into locals[slot]
	OP_POP   Opcode = 3 // discard top of stack

	// Integer arithmetic (64-bit signed, wrapping)
	OP_ADD_INT Opcode = 10
	OP_SUB_INT Opcode = 11
	OP_MUL_INT Opcode = 12
	OP_MOD_INT Opcode = 13

	// String operations
	OP_ADD_STR Opcode = 20 // pop two strings, push concatenation

	// Integer comparisons
	OP_CMP_EQ_INT Opcode = 30
	OP_CMP_NE_INT Opcode = 31
	OP_CMP_LT_INT Opcode = 32
	OP_CMP_GT_INT Opcode = 33
	OP_CMP_LE_INT Opcode = 34
	OP_CMP_GE_INT Opcode = 35

	// Bool comparisons
	OP_CMP_EQ_BOOL Opcode = 40
	OP_CMP_NE_BOOL Opcode = 41

	// String comparisons
	OP_CMP_EQ_STR Opcode = 50
	OP_CMP_NE_STR Opcode = 51

	// Control flow; jump operands are absolute u16 targets within the chunk
	OP_JUMP          Opcode = 60
	OP_JUMP_IF_FALSE Opcode = 61 // pop bool, jump when false

	// Functions
	OP_CALL         Opcode = 70 // operands: u16 function index, u8 arg count
	OP_CALL_BUILTIN Opcode = 71 // operands: u8 builtin index, u8 arg count
	OP_RET          Opcode = 72 // pop result, discard frame, push result for caller
)

// opcodeNames maps every valid opcode to its mnemonic. This table is the
// single definition of the closed instruction set.
var opcodeNames = map[Opcode]string{
	OP_CONST:         "CONST",
	OP_LOAD:          "LOAD",
	OP_STORE:         "STORE",
	OP_POP:           "POP",
	OP_ADD_INT:       "ADD_INT",
	OP_SUB_INT:       "SUB_INT",
	OP_MUL_INT:       "MUL_INT",
	OP_MOD_INT:       "MOD_INT",
	OP_ADD_STR:       "ADD_STR",
	OP_CMP_EQ_INT:    "CMP_EQ_INT",
	OP_CMP_NE_INT:    "CMP_NE_INT",
	OP_CMP_LT_INT:    "CMP_LT_INT",
	OP_CMP_GT_INT:    "CMP_GT_INT",
	OP_CMP_LE_INT:    "CMP_LE_INT",
	OP_CMP_GE_INT:    "CMP_GE_INT",
	OP_CMP_EQ_BOOL:   "CMP_EQ_BOOL",
	OP_CMP_NE_BOOL:   "CMP_NE_BOOL",
	OP_CMP_EQ_STR:    "CMP_EQ_STR",
	OP_CMP_NE_STR:    "CMP_NE_STR",
	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_CALL:          "CALL",
	OP_CALL_BUILTIN:  "CALL_BUILTIN",
	OP_RET:           "RET",
}

// operandWidths gives the number of operand bytes following each opcode.
var operandWidths = map[Opcode]int{
	OP_CONST:         2,
	OP_LOAD:          1,
	OP_STORE:         1,
	OP_POP:           0,
	OP_ADD_INT:       0,
	OP_SUB_INT:       0,
	OP_MUL_INT:       0,
	OP_MOD_INT:       0,
	OP_ADD_STR:       0,
	OP_CMP_EQ_INT:    0,
	OP_CMP_NE_INT:    0,
	OP_CMP_LT_INT:    0,
	OP_CMP_GT_INT:    0,
	OP_CMP_LE_INT:    0,
	OP_CMP_GE_INT:    0,
	OP_CMP_EQ_BOOL:   0,
	OP_CMP_NE_BOOL:   0,
	OP_CMP_EQ_STR:    0,
	OP_CMP_NE_STR:    0,
	OP_JUMP:          2,
	OP_JUMP_IF_FALSE: 2,
	OP_CALL:          3,
	OP_CALL_BUILTIN:  2,
	OP_RET:           0,
}

// IsValid reports whether op is part of the instruction set.
func (op Opcode) IsValid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// OperandWidth returns the operand byte count for op, or -1 for an opcode
// outside the instruction set.
func (op Opcode) OperandWidth() int {
	w, ok := operandWidths[op]
	if !ok {
		return -1
	}
	return w
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}
