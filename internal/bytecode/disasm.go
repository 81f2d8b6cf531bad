package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// DisassembleProgram returns a human-readable listing of every chunk,
// ordered by chunk index.
func DisassembleProgram(p *Program) string {
	names := make([]string, 0, len(p.FunctionIndex))
	for name := range p.FunctionIndex {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.FunctionIndex[names[i]] < p.FunctionIndex[names[j]]
	})

	var sb strings.Builder
	for _, name := range names {
		idx := p.FunctionIndex[name]
		chunk := p.Chunks[idx]
		sb.WriteString(fmt.Sprintf("== %s (index=%d, arity=%d, locals=%d) ==\n", name, idx, chunk.Arity, chunk.Locals))
		if len(chunk.Constants) > 0 {
			sb.WriteString("constants:")
			for i, c := range chunk.Constants {
				sb.WriteString(fmt.Sprintf(" %d=%s", i, constantRepr(c)))
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(Disassemble(chunk))
	}
	return sb.String()
}

// Disassemble returns a listing of one chunk's instruction stream.
func Disassemble(chunk *Chunk) string {
	var sb strings.Builder
	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)

	if line := chunk.Line(offset); line > 0 {
		if offset > 0 && chunk.Line(offset-1) == line {
			sb.WriteString("   | ")
		} else {
			fmt.Fprintf(sb, "%4d ", line)
		}
	} else {
		sb.WriteString("   . ")
	}

	op := Opcode(chunk.Code[offset])
	width := op.OperandWidth()
	if width < 0 {
		fmt.Fprintf(sb, "??? (0x%02X)\n", chunk.Code[offset])
		return offset + 1
	}
	if offset+1+width > len(chunk.Code) {
		fmt.Fprintf(sb, "%s <truncated>\n", op)
		return len(chunk.Code)
	}

	switch op {
	case OP_CONST:
		idx := chunk.ReadU16(offset + 1)
		if idx < len(chunk.Constants) {
			fmt.Fprintf(sb, "%-16s %d (%s)\n", op, idx, constantRepr(chunk.Constants[idx]))
		} else {
			fmt.Fprintf(sb, "%-16s %d (out of range)\n", op, idx)
		}
	case OP_LOAD, OP_STORE:
		fmt.Fprintf(sb, "%-16s slot %d\n", op, chunk.Code[offset+1])
	case OP_JUMP, OP_JUMP_IF_FALSE:
		fmt.Fprintf(sb, "%-16s -> %04d\n", op, chunk.ReadU16(offset+1))
	case OP_CALL:
		fmt.Fprintf(sb, "%-16s fn %d, %d args\n", op, chunk.ReadU16(offset+1), chunk.Code[offset+3])
	case OP_CALL_BUILTIN:
		idx := int(chunk.Code[offset+1])
		name := fmt.Sprintf("%d", idx)
		if idx < len(Builtins) {
			name = Builtins[idx].Name
		}
		fmt.Fprintf(sb, "%-16s %s, %d args\n", op, name, chunk.Code[offset+2])
	default:
		fmt.Fprintf(sb, "%s\n", op)
	}
	return offset + 1 + width
}

func constantRepr(v Value) string {
	if v.Kind == KindString {
		return fmt.Sprintf("%q", v.Str)
	}
	return v.String()
}
