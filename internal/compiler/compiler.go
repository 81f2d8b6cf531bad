// Package compiler translates a validated syntax tree into a bytecode
// program.
//
// Compilation is two-pass: function signatures are collected over the whole
// program first so forward references resolve, then bodies are emitted one
// chunk per function. The input is assumed to have passed semantic analysis;
// anything that should have been caught there surfaces here as an internal
// contract error, never as silently wrong bytecode.
package compiler

import (
	"fmt"

	"github.com/zerolang/zero/internal/ast"
	"github.com/zerolang/zero/internal/bytecode"
	"github.com/zerolang/zero/internal/config"
)

// local is a named slot in the function being compiled.
type local struct {
	slot int
	typ  string
}

// loopLabels is one entry of the active-loop stack: where the condition
// starts (continue target) and the forward jumps waiting for the loop's
// end address (break targets).
type loopLabels struct {
	conditionPos int
	breakJumps   []int
}

// funcCompiler emits one chunk.
type funcCompiler struct {
	chunk         *bytecode.Chunk
	locals        map[string]local
	nextSlot      int
	loopStack     []loopLabels
	functionIndex map[string]int
	returnTypes   map[string]string
	funcName      string
}

// Compile produces a validated bytecode program from a checked AST.
func Compile(program *ast.Program) (*bytecode.Program, error) {
	// First pass: assign chunk indices and record signatures so bodies can
	// call functions declared later in the source.
	functionIndex := make(map[string]int, len(program.Functions))
	returnTypes := make(map[string]string, len(program.Functions))
	for i, fn := range program.Functions {
		functionIndex[fn.Name] = i
		if fn.ReturnType != "" {
			returnTypes[fn.Name] = fn.ReturnType
		} else {
			returnTypes[fn.Name] = config.IntTypeName
		}
	}

	// Second pass: emit bodies.
	chunks := make([]*bytecode.Chunk, 0, len(program.Functions))
	for _, fn := range program.Functions {
		fc := &funcCompiler{
			chunk:         &bytecode.Chunk{},
			locals:        make(map[string]local),
			functionIndex: functionIndex,
			returnTypes:   returnTypes,
			funcName:      fn.Name,
		}
		chunk, err := fc.compileFunction(fn)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	compiled := &bytecode.Program{Chunks: chunks, FunctionIndex: functionIndex}
	if err := compiled.Validate(); err != nil {
		return nil, fmt.Errorf("internal: compiler produced invalid program: %w", err)
	}
	return compiled, nil
}

// internalf reports a contract violation: the input tree was not validated.
func (fc *funcCompiler) internalf(span ast.Span, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("internal compiler error in %s at line %d:%d: %s", fc.funcName, span.StartLine, span.StartColumn, msg)
}

func (fc *funcCompiler) compileFunction(fn *ast.Function) (*bytecode.Chunk, error) {
	for _, param := range fn.Params {
		if _, err := fc.declareLocal(param.Name, param.Type, param.Span); err != nil {
			return nil, err
		}
	}
	fc.chunk.Arity = len(fn.Params)

	for _, stmt := range fn.Body {
		if err := fc.compileStmt(stmt); err != nil {
			return nil, err
		}
	}

	// Every chunk ends with an explicit return so control flow can never
	// run off the end of the instruction stream. Functions without a
	// trailing return yield their return type's zero value.
	endLine := fn.Span.EndLine
	zero := typedZero(fn.ReturnType)
	fc.emitConst(zero, endLine)
	fc.emitOp(bytecode.OP_RET, endLine)

	if fc.chunk.Len() > bytecode.MaxCodeSize {
		return nil, fmt.Errorf("function %s compiles to %d bytes, limit %d", fn.Name, fc.chunk.Len(), bytecode.MaxCodeSize)
	}
	fc.chunk.Locals = fc.nextSlot
	return fc.chunk, nil
}

func typedZero(returnType string) bytecode.Value {
	switch returnType {
	case config.BoolTypeName:
		return bytecode.BoolValue(false)
	case config.StringTypeName:
		return bytecode.StringValue("")
	default:
		return bytecode.IntValue(0)
	}
}

// --- emission helpers ---

func (fc *funcCompiler) emitOp(op bytecode.Opcode, line int) {
	fc.chunk.WriteOp(op, line)
}

func (fc *funcCompiler) emitConst(value bytecode.Value, line int) {
	idx := fc.chunk.AddConstant(value)
	fc.chunk.WriteOp(bytecode.OP_CONST, line)
	fc.chunk.WriteU16(idx, line)
}

// emitJump writes op with a placeholder target and returns the operand
// offset for later patching.
func (fc *funcCompiler) emitJump(op bytecode.Opcode, line int) int {
	fc.chunk.WriteOp(op, line)
	operandAt := fc.chunk.Len()
	fc.chunk.WriteU16(0xffff, line)
	return operandAt
}

// patchJump points a reserved jump operand at the current end of code.
func (fc *funcCompiler) patchJump(operandAt int) {
	fc.chunk.PatchU16(operandAt, fc.chunk.Len())
}

func (fc *funcCompiler) declareLocal(name, typ string, span ast.Span) (int, error) {
	if fc.nextSlot >= bytecode.MaxLocalSlots {
		return 0, fc.internalf(span, "too many locals (limit %d)", bytecode.MaxLocalSlots)
	}
	slot := fc.nextSlot
	fc.nextSlot++
	fc.locals[name] = local{slot: slot, typ: typ}
	return slot, nil
}

// --- statements ---

func (fc *funcCompiler) compileStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		if _, err := fc.compileExpr(s.Expr); err != nil {
			return err
		}
		fc.emitOp(bytecode.OP_RET, s.Span.StartLine)
		return nil

	case *ast.ExprStmt:
		if _, err := fc.compileExpr(s.Expr); err != nil {
			return err
		}
		// Statement expressions always leave exactly one value; drop it.
		fc.emitOp(bytecode.OP_POP, s.Span.StartLine)
		return nil

	case *ast.VarDecl:
		if _, err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		// Slots grow monotonically; a redeclared name gets a fresh slot
		// and the old one stays allocated for the rest of the function.
		slot, err := fc.declareLocal(s.Name, s.Type, s.Span)
		if err != nil {
			return err
		}
		fc.emitOp(bytecode.OP_STORE, s.Span.StartLine)
		fc.chunk.Write(byte(slot), s.Span.StartLine)
		return nil

	case *ast.Assignment:
		loc, ok := fc.locals[s.Name]
		if !ok {
			return fc.internalf(s.Span, "assignment to undefined variable %s", s.Name)
		}
		if _, err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.emitOp(bytecode.OP_STORE, s.Span.StartLine)
		fc.chunk.Write(byte(loc.slot), s.Span.StartLine)
		return nil

	case *ast.IfStmt:
		return fc.compileIf(s)

	case *ast.ForStmt:
		return fc.compileFor(s)

	case *ast.BreakStmt:
		if len(fc.loopStack) == 0 {
			return fc.internalf(s.Span, "break outside of loop")
		}
		// Target unknown until the loop ends; record for patching.
		top := &fc.loopStack[len(fc.loopStack)-1]
		top.breakJumps = append(top.breakJumps, fc.emitJump(bytecode.OP_JUMP, s.Span.StartLine))
		return nil

	case *ast.ContinueStmt:
		if len(fc.loopStack) == 0 {
			return fc.internalf(s.Span, "continue outside of loop")
		}
		top := fc.loopStack[len(fc.loopStack)-1]
		fc.emitOp(bytecode.OP_JUMP, s.Span.StartLine)
		fc.chunk.WriteU16(top.conditionPos, s.Span.StartLine)
		return nil
	}
	return fc.internalf(stmt.GetSpan(), "unhandled statement %T", stmt)
}

func (fc *funcCompiler) compileIf(s *ast.IfStmt) error {
	if err := fc.compileCondition(s.Condition); err != nil {
		return err
	}
	elseJump := fc.emitJump(bytecode.OP_JUMP_IF_FALSE, s.Span.StartLine)

	for _, stmt := range s.ThenBody {
		if err := fc.compileStmt(stmt); err != nil {
			return err
		}
	}

	if s.ElseBody == nil {
		fc.patchJump(elseJump)
		return nil
	}

	endJump := fc.emitJump(bytecode.OP_JUMP, s.Span.StartLine)
	fc.patchJump(elseJump)
	for _, stmt := range s.ElseBody {
		if err := fc.compileStmt(stmt); err != nil {
			return err
		}
	}
	fc.patchJump(endJump)
	return nil
}

func (fc *funcCompiler) compileFor(s *ast.ForStmt) error {
	conditionPos := fc.chunk.Len()
	fc.loopStack = append(fc.loopStack, loopLabels{conditionPos: conditionPos})

	if err := fc.compileCondition(s.Condition); err != nil {
		return err
	}
	exitJump := fc.emitJump(bytecode.OP_JUMP_IF_FALSE, s.Span.StartLine)

	for _, stmt := range s.Body {
		if err := fc.compileStmt(stmt); err != nil {
			return err
		}
	}

	fc.emitOp(bytecode.OP_JUMP, s.Span.EndLine)
	fc.chunk.WriteU16(conditionPos, s.Span.EndLine)

	fc.patchJump(exitJump)
	for _, breakJump := range fc.loopStack[len(fc.loopStack)-1].breakJumps {
		fc.patchJump(breakJump)
	}
	fc.loopStack = fc.loopStack[:len(fc.loopStack)-1]
	return nil
}

func (fc *funcCompiler) compileCondition(cond ast.Expr) error {
	typ, err := fc.compileExpr(cond)
	if err != nil {
		return err
	}
	if typ != config.BoolTypeName {
		return fc.internalf(cond.GetSpan(), "condition has type %s", typ)
	}
	return nil
}

// --- expressions ---

// compileExpr emits post-order code for expr and returns its static type,
// which drives opcode selection in the callers.
func (fc *funcCompiler) compileExpr(expr ast.Expr) (string, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		fc.emitConst(bytecode.IntValue(e.Value), e.Span.StartLine)
		return config.IntTypeName, nil

	case *ast.BoolLiteral:
		fc.emitConst(bytecode.BoolValue(e.Value), e.Span.StartLine)
		return config.BoolTypeName, nil

	case *ast.StringLiteral:
		fc.emitConst(bytecode.StringValue(e.Value), e.Span.StartLine)
		return config.StringTypeName, nil

	case *ast.Identifier:
		loc, ok := fc.locals[e.Name]
		if !ok {
			return "", fc.internalf(e.Span, "undefined variable %s", e.Name)
		}
		fc.emitOp(bytecode.OP_LOAD, e.Span.StartLine)
		fc.chunk.Write(byte(loc.slot), e.Span.StartLine)
		return loc.typ, nil

	case *ast.UnaryExpr:
		// -x compiles as 0 - x; there is no dedicated negate opcode.
		fc.emitConst(bytecode.IntValue(0), e.Span.StartLine)
		typ, err := fc.compileExpr(e.Operand)
		if err != nil {
			return "", err
		}
		if typ != config.IntTypeName {
			return "", fc.internalf(e.Span, "unary %s applied to %s", e.Op, typ)
		}
		fc.emitOp(bytecode.OP_SUB_INT, e.Span.StartLine)
		return config.IntTypeName, nil

	case *ast.BinaryExpr:
		return fc.compileBinary(e)

	case *ast.Call:
		return fc.compileCall(e)
	}
	return "", fc.internalf(expr.GetSpan(), "unhandled expression %T", expr)
}

// binaryOpcodes maps (operator, operand type) to the specialized opcode and
// its result type.
var binaryOpcodes = map[string]map[string]struct {
	op     bytecode.Opcode
	result string
}{
	"+": {
		config.IntTypeName:    {bytecode.OP_ADD_INT, config.IntTypeName},
		config.StringTypeName: {bytecode.OP_ADD_STR, config.StringTypeName},
	},
	"-": {
		config.IntTypeName: {bytecode.OP_SUB_INT, config.IntTypeName},
	},
	"*": {
		config.IntTypeName: {bytecode.OP_MUL_INT, config.IntTypeName},
	},
	"%": {
		config.IntTypeName: {bytecode.OP_MOD_INT, config.IntTypeName},
	},
	"==": {
		config.IntTypeName:    {bytecode.OP_CMP_EQ_INT, config.BoolTypeName},
		config.BoolTypeName:   {bytecode.OP_CMP_EQ_BOOL, config.BoolTypeName},
		config.StringTypeName: {bytecode.OP_CMP_EQ_STR, config.BoolTypeName},
	},
	"!=": {
		config.IntTypeName:    {bytecode.OP_CMP_NE_INT, config.BoolTypeName},
		config.BoolTypeName:   {bytecode.OP_CMP_NE_BOOL, config.BoolTypeName},
		config.StringTypeName: {bytecode.OP_CMP_NE_STR, config.BoolTypeName},
	},
	"<": {
		config.IntTypeName: {bytecode.OP_CMP_LT_INT, config.BoolTypeName},
	},
	">": {
		config.IntTypeName: {bytecode.OP_CMP_GT_INT, config.BoolTypeName},
	},
	"<=": {
		config.IntTypeName: {bytecode.OP_CMP_LE_INT, config.BoolTypeName},
	},
	">=": {
		config.IntTypeName: {bytecode.OP_CMP_GE_INT, config.BoolTypeName},
	},
}

func (fc *funcCompiler) compileBinary(e *ast.BinaryExpr) (string, error) {
	leftType, err := fc.compileExpr(e.Left)
	if err != nil {
		return "", err
	}
	rightType, err := fc.compileExpr(e.Right)
	if err != nil {
		return "", err
	}
	if leftType != rightType {
		return "", fc.internalf(e.Span, "operator %s has operands %s and %s", e.Op, leftType, rightType)
	}

	byType, ok := binaryOpcodes[e.Op]
	if !ok {
		return "", fc.internalf(e.Span, "unknown operator %s", e.Op)
	}
	selected, ok := byType[leftType]
	if !ok {
		return "", fc.internalf(e.Span, "operator %s not defined for %s", e.Op, leftType)
	}
	fc.emitOp(selected.op, e.Span.StartLine)
	return selected.result, nil
}

func (fc *funcCompiler) compileCall(e *ast.Call) (string, error) {
	if len(e.Args) > 255 {
		return "", fc.internalf(e.Span, "call to %s has %d arguments, limit 255", e.Name, len(e.Args))
	}

	// Arguments push left to right, so the first argument lands in the
	// callee's slot 0.
	for _, arg := range e.Args {
		if _, err := fc.compileExpr(arg); err != nil {
			return "", err
		}
	}

	if builtinIdx, ok := bytecode.BuiltinIndex(e.Name); ok {
		sig := bytecode.Builtins[builtinIdx]
		if len(e.Args) != sig.Arity {
			return "", fc.internalf(e.Span, "builtin %s called with %d args, wants %d", e.Name, len(e.Args), sig.Arity)
		}
		fc.emitOp(bytecode.OP_CALL_BUILTIN, e.Span.StartLine)
		fc.chunk.Write(byte(builtinIdx), e.Span.StartLine)
		fc.chunk.Write(byte(len(e.Args)), e.Span.StartLine)
		return sig.ReturnType, nil
	}

	funcIdx, ok := fc.functionIndex[e.Name]
	if !ok {
		return "", fc.internalf(e.Span, "call to undefined function %s", e.Name)
	}
	fc.emitOp(bytecode.OP_CALL, e.Span.StartLine)
	fc.chunk.WriteU16(funcIdx, e.Span.StartLine)
	fc.chunk.Write(byte(len(e.Args)), e.Span.StartLine)
	return fc.returnTypes[e.Name], nil
}
