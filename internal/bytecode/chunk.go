package bytecode

import (
	"fmt"

	"github.com/zerolang/zero/internal/config"
)

// MaxCodeSize bounds a single chunk's instruction stream so that absolute
// u16 jump targets can always address any instruction.
const MaxCodeSize = 1 << 16

// MaxLocalSlots bounds per-function local slots (u8 slot operands).
const MaxLocalSlots = 256

// Chunk is the compiled form of one function: its instruction stream, its
// constant pool, and its frame layout. Immutable once the compiler has
// produced it.
type Chunk struct {
	// Code is the instruction stream, opcodes and operands interleaved.
	Code []byte `cbor:"1,keyasint"`

	// Constants is the deduplicated literal pool referenced by OP_CONST.
	Constants []Value `cbor:"2,keyasint,omitempty"`

	// Arity is the number of parameters; they occupy slots 0..Arity-1.
	Arity int `cbor:"3,keyasint,omitempty"`

	// Locals is the total local slot count (parameters included) so the VM
	// can size frame storage once per call.
	Locals int `cbor:"4,keyasint,omitempty"`

	// Lines maps each code offset to its source line, for runtime errors
	// and the disassembler. Zero when no position is known.
	Lines []int32 `cbor:"5,keyasint,omitempty"`
}

// Write appends one byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, int32(line))
}

// WriteOp appends an opcode.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// WriteU16 appends a big-endian 16-bit operand.
func (c *Chunk) WriteU16(v int, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// PatchU16 rewrites a previously reserved 16-bit operand at offset.
func (c *Chunk) PatchU16(offset, v int) {
	c.Code[offset] = byte(v >> 8)
	c.Code[offset+1] = byte(v)
}

// ReadU16 reads a big-endian 16-bit operand at offset.
func (c *Chunk) ReadU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// AddConstant returns the pool index for value, reusing an existing entry
// when the same literal already appears in this chunk.
func (c *Chunk) AddConstant(value Value) int {
	for i, existing := range c.Constants {
		if existing == value {
			return i
		}
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// Line returns the source line recorded for the code offset, or 0.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return int(c.Lines[offset])
}

// Len returns the number of bytes in the instruction stream.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Program is a full compiled program: the ordered chunks and the
// function-name to chunk-index mapping. It is the unit of execution
// and of persistence.
type Program struct {
	Chunks        []*Chunk       `cbor:"1,keyasint"`
	FunctionIndex map[string]int `cbor:"2,keyasint"`
}

// FunctionName returns the name mapped to chunk index idx, or "".
func (p *Program) FunctionName(idx int) string {
	for name, i := range p.FunctionIndex {
		if i == idx {
			return name
		}
	}
	return ""
}

// Validate checks the structural invariants every Program must hold: the
// function index is a bijection onto 0..len(chunks)-1 and main exists with
// arity 0. Both the compiler's output and freshly loaded programs pass
// through here.
func (p *Program) Validate() error {
	if len(p.FunctionIndex) != len(p.Chunks) {
		return fmt.Errorf("function index has %d entries for %d chunks", len(p.FunctionIndex), len(p.Chunks))
	}

	seen := make([]bool, len(p.Chunks))
	for name, idx := range p.FunctionIndex {
		if idx < 0 || idx >= len(p.Chunks) {
			return fmt.Errorf("function %q maps to chunk %d, have %d chunks", name, idx, len(p.Chunks))
		}
		if seen[idx] {
			return fmt.Errorf("chunk %d mapped by more than one function name", idx)
		}
		seen[idx] = true
	}

	mainIdx, ok := p.FunctionIndex[config.EntryFuncName]
	if !ok {
		return fmt.Errorf("program has no %s function", config.EntryFuncName)
	}
	if arity := p.Chunks[mainIdx].Arity; arity != 0 {
		return fmt.Errorf("%s must take no parameters, has arity %d", config.EntryFuncName, arity)
	}
	return nil
}
