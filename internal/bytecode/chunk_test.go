package bytecode

import "testing"

func TestOpcodeWidths(t *testing.T) {
	tests := []struct {
		op    Opcode
		width int
	}{
		{OP_CONST, 2},
		{OP_LOAD, 1},
		{OP_STORE, 1},
		{OP_POP, 0},
		{OP_ADD_INT, 0},
		{OP_ADD_STR, 0},
		{OP_JUMP, 2},
		{OP_JUMP_IF_FALSE, 2},
		{OP_CALL, 3},
		{OP_CALL_BUILTIN, 2},
		{OP_RET, 0},
	}
	for _, tt := range tests {
		if got := tt.op.OperandWidth(); got != tt.width {
			t.Errorf("%s width wrong. got=%d, want=%d", tt.op, got, tt.width)
		}
	}

	if Opcode(200).IsValid() {
		t.Error("opcode 200 should be invalid")
	}
	if Opcode(200).OperandWidth() != -1 {
		t.Error("invalid opcode should have width -1")
	}
}

// The numeric opcode values are part of the wire format.
func TestOpcodeValuesAreStable(t *testing.T) {
	stable := map[Opcode]byte{
		OP_CONST: 0, OP_LOAD: 1, OP_STORE: 2, OP_POP: 3,
		OP_ADD_INT: 10, OP_SUB_INT: 11, OP_MUL_INT: 12, OP_MOD_INT: 13,
		OP_ADD_STR:    20,
		OP_CMP_EQ_INT: 30, OP_CMP_NE_INT: 31, OP_CMP_LT_INT: 32,
		OP_CMP_GT_INT: 33, OP_CMP_LE_INT: 34, OP_CMP_GE_INT: 35,
		OP_CMP_EQ_BOOL: 40, OP_CMP_NE_BOOL: 41,
		OP_CMP_EQ_STR: 50, OP_CMP_NE_STR: 51,
		OP_JUMP: 60, OP_JUMP_IF_FALSE: 61,
		OP_CALL: 70, OP_CALL_BUILTIN: 71, OP_RET: 72,
	}
	for op, want := range stable {
		if byte(op) != want {
			t.Errorf("%s renumbered. got=%d, want=%d", op, byte(op), want)
		}
	}
}

func TestWriteAndReadU16(t *testing.T) {
	c := &Chunk{}
	c.WriteOp(OP_JUMP, 1)
	c.WriteU16(0x1234, 1)

	if c.Len() != 3 {
		t.Fatalf("code length wrong. got=%d, want=3", c.Len())
	}
	if got := c.ReadU16(1); got != 0x1234 {
		t.Errorf("ReadU16 wrong. got=%#x, want=0x1234", got)
	}

	c.PatchU16(1, 0xbeef)
	if got := c.ReadU16(1); got != 0xbeef {
		t.Errorf("PatchU16 wrong. got=%#x, want=0xbeef", got)
	}
}

func TestAddConstantDeduplicates(t *testing.T) {
	c := &Chunk{}

	a := c.AddConstant(IntValue(42))
	b := c.AddConstant(StringValue("x"))
	again := c.AddConstant(IntValue(42))

	if a != again {
		t.Errorf("equal constants got different indices: %d vs %d", a, again)
	}
	if a == b {
		t.Errorf("distinct constants share index %d", a)
	}
	if len(c.Constants) != 2 {
		t.Errorf("pool size wrong. got=%d, want=2", len(c.Constants))
	}

	// Same payload, different kind: distinct entries.
	zero := c.AddConstant(IntValue(0))
	falsy := c.AddConstant(BoolValue(false))
	if zero == falsy {
		t.Error("int 0 and bool false should not share a pool entry")
	}
}

func TestLineTable(t *testing.T) {
	c := &Chunk{}
	c.WriteOp(OP_POP, 3)
	c.WriteOp(OP_RET, 7)

	if got := c.Line(0); got != 3 {
		t.Errorf("line at 0 wrong. got=%d, want=3", got)
	}
	if got := c.Line(1); got != 7 {
		t.Errorf("line at 1 wrong. got=%d, want=7", got)
	}
	if got := c.Line(99); got != 0 {
		t.Errorf("line past end wrong. got=%d, want=0", got)
	}
}

func minimalProgram() *Program {
	main := &Chunk{}
	main.WriteOp(OP_CONST, 1)
	main.WriteU16(main.AddConstant(IntValue(0)), 1)
	main.WriteOp(OP_RET, 1)
	return &Program{
		Chunks:        []*Chunk{main},
		FunctionIndex: map[string]int{"main": 0},
	}
}

func TestValidate(t *testing.T) {
	if err := minimalProgram().Validate(); err != nil {
		t.Fatalf("minimal program invalid: %s", err)
	}

	noMain := minimalProgram()
	noMain.FunctionIndex = map[string]int{"other": 0}
	if err := noMain.Validate(); err == nil {
		t.Error("expected error for missing main")
	}

	mainWithArity := minimalProgram()
	mainWithArity.Chunks[0].Arity = 1
	if err := mainWithArity.Validate(); err == nil {
		t.Error("expected error for main with parameters")
	}

	badIndex := minimalProgram()
	badIndex.FunctionIndex["main"] = 5
	if err := badIndex.Validate(); err == nil {
		t.Error("expected error for out-of-range chunk index")
	}

	countMismatch := minimalProgram()
	countMismatch.FunctionIndex["extra"] = 0
	if err := countMismatch.Validate(); err == nil {
		t.Error("expected error for index/chunk count mismatch")
	}
}

func TestFunctionName(t *testing.T) {
	p := &Program{
		Chunks:        []*Chunk{{}, {}},
		FunctionIndex: map[string]int{"main": 0, "helper": 1},
	}
	if got := p.FunctionName(1); got != "helper" {
		t.Errorf("FunctionName(1) wrong. got=%q", got)
	}
	if got := p.FunctionName(9); got != "" {
		t.Errorf("FunctionName(9) wrong. got=%q, want empty", got)
	}
}

func TestBuiltinTable(t *testing.T) {
	// Positions are part of the wire format.
	if Builtins[0].Name != "print" || Builtins[1].Name != "now" {
		t.Fatalf("builtin order wrong: %v", Builtins)
	}
	idx, ok := BuiltinIndex("print")
	if !ok || idx != 0 {
		t.Errorf("BuiltinIndex(print) wrong. got=%d,%v", idx, ok)
	}
	if _, ok := BuiltinIndex("missing"); ok {
		t.Error("BuiltinIndex(missing) should not resolve")
	}
	if !IsBuiltin("now") || IsBuiltin("later") {
		t.Error("IsBuiltin wrong")
	}
}
