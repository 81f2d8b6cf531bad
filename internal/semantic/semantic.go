// Package semantic validates a parsed program before compilation: name
// resolution, type checks, entry-point shape and loop-context rules.
// The compiler assumes its input has passed Analyze and treats any
// violation it still encounters as an internal contract error.
package semantic

import (
	"fmt"

	"github.com/zerolang/zero/internal/ast"
	"github.com/zerolang/zero/internal/bytecode"
	"github.com/zerolang/zero/internal/config"
)

// Error is a source-positioned validation failure.
type Error struct {
	Message string
	Span    ast.Span
}

func (e *Error) Error() string {
	if e.Span.IsZero() {
		return e.Message
	}
	return fmt.Sprintf("line %d:%d: %s", e.Span.StartLine, e.Span.StartColumn, e.Message)
}

func errorf(span ast.Span, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Span: span}
}

var validTypes = map[string]bool{
	config.IntTypeName:    true,
	config.BoolTypeName:   true,
	config.StringTypeName: true,
}

type funcSig struct {
	params     []string
	returnType string
}

type checker struct {
	functions map[string]funcSig
}

type funcScope struct {
	vars      map[string]string // name -> type
	returnTyp string
	loopDepth int
}

// Analyze validates the whole program. The first violation found is
// returned; a nil result means the tree satisfies every precondition the
// compiler relies on.
func Analyze(program *ast.Program) error {
	c := &checker{functions: make(map[string]funcSig)}

	for _, fn := range program.Functions {
		if _, dup := c.functions[fn.Name]; dup {
			return errorf(fn.NameSpan, "duplicate function: %s", fn.Name)
		}
		if bytecode.IsBuiltin(fn.Name) {
			return errorf(fn.NameSpan, "function %s shadows a builtin", fn.Name)
		}
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			if !validTypes[p.Type] {
				return errorf(p.Span, "unknown type: %s", p.Type)
			}
			params[i] = p.Type
		}
		returnType := fn.ReturnType
		if returnType == "" {
			// A function without a declared return type yields int 0.
			returnType = config.IntTypeName
		} else if !validTypes[returnType] {
			return errorf(fn.Span, "unknown return type: %s", fn.ReturnType)
		}
		c.functions[fn.Name] = funcSig{params: params, returnType: returnType}
	}

	main, ok := c.functions[config.EntryFuncName]
	if !ok {
		return errorf(program.Span, "missing %s function", config.EntryFuncName)
	}
	if len(main.params) > 0 {
		return errorf(program.Span, "%s must not accept parameters", config.EntryFuncName)
	}
	for _, fn := range program.Functions {
		if fn.Name == config.EntryFuncName && fn.ReturnType != "" {
			return errorf(fn.Span, "%s must not have a return type", config.EntryFuncName)
		}
	}

	for _, fn := range program.Functions {
		if err := c.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkFunction(fn *ast.Function) error {
	scope := &funcScope{
		vars:      make(map[string]string),
		returnTyp: c.functions[fn.Name].returnType,
	}
	seen := make(map[string]bool)
	for _, p := range fn.Params {
		if seen[p.Name] {
			return errorf(p.Span, "duplicate parameter: %s", p.Name)
		}
		seen[p.Name] = true
		scope.vars[p.Name] = p.Type
	}
	return c.checkBlock(fn.Body, scope)
}

func (c *checker) checkBlock(body []ast.Stmt, scope *funcScope) error {
	for _, stmt := range body {
		if err := c.checkStmt(stmt, scope); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) checkStmt(stmt ast.Stmt, scope *funcScope) error {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		typ, err := c.inferExpr(s.Expr, scope)
		if err != nil {
			return err
		}
		if typ != scope.returnTyp {
			return errorf(s.Span, "cannot return %s from a function returning %s", typ, scope.returnTyp)
		}
		return nil

	case *ast.ExprStmt:
		_, err := c.inferExpr(s.Expr, scope)
		return err

	case *ast.VarDecl:
		if !validTypes[s.Type] {
			return errorf(s.Span, "unknown type: %s", s.Type)
		}
		typ, err := c.inferExpr(s.Value, scope)
		if err != nil {
			return err
		}
		if typ != s.Type {
			return errorf(s.Span, "cannot initialize %s %s with %s value", s.Type, s.Name, typ)
		}
		// Redeclaration rebinds the name to a fresh slot; the previous
		// variable simply becomes unreachable.
		scope.vars[s.Name] = s.Type
		return nil

	case *ast.Assignment:
		varType, ok := scope.vars[s.Name]
		if !ok {
			return errorf(s.Span, "undefined variable: %s", s.Name)
		}
		typ, err := c.inferExpr(s.Value, scope)
		if err != nil {
			return err
		}
		if typ != varType {
			return errorf(s.Span, "cannot assign %s value to %s %s", typ, varType, s.Name)
		}
		return nil

	case *ast.IfStmt:
		if err := c.checkCondition(s.Condition, scope); err != nil {
			return err
		}
		if err := c.checkBlock(s.ThenBody, scope); err != nil {
			return err
		}
		return c.checkBlock(s.ElseBody, scope)

	case *ast.ForStmt:
		if err := c.checkCondition(s.Condition, scope); err != nil {
			return err
		}
		scope.loopDepth++
		err := c.checkBlock(s.Body, scope)
		scope.loopDepth--
		return err

	case *ast.BreakStmt:
		if scope.loopDepth == 0 {
			return errorf(s.Span, "break outside of loop")
		}
		return nil

	case *ast.ContinueStmt:
		if scope.loopDepth == 0 {
			return errorf(s.Span, "continue outside of loop")
		}
		return nil
	}
	return errorf(stmt.GetSpan(), "internal: unhandled statement %T", stmt)
}

func (c *checker) checkCondition(cond ast.Expr, scope *funcScope) error {
	typ, err := c.inferExpr(cond, scope)
	if err != nil {
		return err
	}
	if typ != config.BoolTypeName {
		return errorf(cond.GetSpan(), "condition must be %s, got %s", config.BoolTypeName, typ)
	}
	return nil
}

func (c *checker) inferExpr(expr ast.Expr, scope *funcScope) (string, error) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return config.IntTypeName, nil
	case *ast.BoolLiteral:
		return config.BoolTypeName, nil
	case *ast.StringLiteral:
		return config.StringTypeName, nil

	case *ast.Identifier:
		typ, ok := scope.vars[e.Name]
		if !ok {
			return "", errorf(e.Span, "undefined variable: %s", e.Name)
		}
		return typ, nil

	case *ast.UnaryExpr:
		typ, err := c.inferExpr(e.Operand, scope)
		if err != nil {
			return "", err
		}
		if typ != config.IntTypeName {
			return "", errorf(e.Span, "unary %s expects %s, got %s", e.Op, config.IntTypeName, typ)
		}
		return config.IntTypeName, nil

	case *ast.BinaryExpr:
		return c.inferBinary(e, scope)

	case *ast.Call:
		return c.inferCall(e, scope)
	}
	return "", errorf(expr.GetSpan(), "internal: unhandled expression %T", expr)
}

func (c *checker) inferBinary(e *ast.BinaryExpr, scope *funcScope) (string, error) {
	left, err := c.inferExpr(e.Left, scope)
	if err != nil {
		return "", err
	}
	right, err := c.inferExpr(e.Right, scope)
	if err != nil {
		return "", err
	}
	if left != right {
		return "", errorf(e.Span, "operator %s has mismatched operands: %s and %s", e.Op, left, right)
	}

	switch e.Op {
	case "+":
		if left == config.IntTypeName || left == config.StringTypeName {
			return left, nil
		}
	case "-", "*", "%":
		if left == config.IntTypeName {
			return left, nil
		}
	case "==", "!=":
		return config.BoolTypeName, nil
	case "<", ">", "<=", ">=":
		if left == config.IntTypeName {
			return config.BoolTypeName, nil
		}
	}
	return "", errorf(e.Span, "operator %s not defined for %s", e.Op, left)
}

func (c *checker) inferCall(e *ast.Call, scope *funcScope) (string, error) {
	if idx, ok := bytecode.BuiltinIndex(e.Name); ok {
		sig := bytecode.Builtins[idx]
		if len(e.Args) != sig.Arity {
			return "", errorf(e.Span, "%s expects %d arguments, got %d", e.Name, sig.Arity, len(e.Args))
		}
		// Builtin parameters are unconstrained; only the arguments
		// themselves need to be well-typed.
		for _, arg := range e.Args {
			if _, err := c.inferExpr(arg, scope); err != nil {
				return "", err
			}
		}
		return sig.ReturnType, nil
	}

	sig, ok := c.functions[e.Name]
	if !ok {
		return "", errorf(e.Span, "undefined function: %s", e.Name)
	}
	if len(e.Args) != len(sig.params) {
		return "", errorf(e.Span, "%s expects %d arguments, got %d", e.Name, len(sig.params), len(e.Args))
	}
	for i, arg := range e.Args {
		typ, err := c.inferExpr(arg, scope)
		if err != nil {
			return "", err
		}
		if typ != sig.params[i] {
			return "", errorf(arg.GetSpan(), "argument %d of %s must be %s, got %s", i+1, e.Name, sig.params[i], typ)
		}
	}
	return sig.returnType, nil
}
