package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleProgram(t *testing.T) {
	out := DisassembleProgram(testProgram())

	// Chunks listed in index order.
	addAt := strings.Index(out, "== add (index=0, arity=2, locals=2) ==")
	mainAt := strings.Index(out, "== main (index=1, arity=0, locals=0) ==")
	if addAt == -1 || mainAt == -1 {
		t.Fatalf("missing chunk headers in output:\n%s", out)
	}
	if addAt > mainAt {
		t.Error("chunks not listed in index order")
	}

	for _, want := range []string{
		"ADD_INT",
		"RET",
		"LOAD",
		"slot 0",
		"CALL",
		"fn 0, 2 args",
		"CALL_BUILTIN",
		"print, 1 args",
		`"done"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDisassembleOperands(t *testing.T) {
	c := &Chunk{}
	c.WriteOp(OP_CONST, 1)
	c.WriteU16(c.AddConstant(IntValue(7)), 1)
	c.WriteOp(OP_JUMP_IF_FALSE, 2)
	c.WriteU16(9, 2)

	out := Disassemble(c)
	if !strings.Contains(out, "CONST") || !strings.Contains(out, "(7)") {
		t.Errorf("constant operand missing:\n%s", out)
	}
	if !strings.Contains(out, "-> 0009") {
		t.Errorf("jump target missing:\n%s", out)
	}
}

func TestDisassembleDoesNotPanicOnBadCode(t *testing.T) {
	// Unknown opcode, then a truncated instruction.
	c := &Chunk{Code: []byte{200, byte(OP_CONST), 0x00}}
	out := Disassemble(c)
	if !strings.Contains(out, "???") {
		t.Errorf("unknown opcode marker missing:\n%s", out)
	}
	if !strings.Contains(out, "<truncated>") {
		t.Errorf("truncation marker missing:\n%s", out)
	}
}
