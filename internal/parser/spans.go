package parser

import (
	"fmt"

	"github.com/zerolang/zero/internal/ast"
)

// validateSpans walks the tree and fails if any node is missing its span.
// The compiler and downstream tooling assume spans are always present.
func validateSpans(program *ast.Program) error {
	if program.Span.IsZero() {
		return fmt.Errorf("internal: program node missing span")
	}
	for _, fn := range program.Functions {
		if fn.Span.IsZero() || fn.NameSpan.IsZero() {
			return fmt.Errorf("internal: function %s missing span", fn.Name)
		}
		for _, param := range fn.Params {
			if param.Span.IsZero() {
				return fmt.Errorf("internal: parameter %s of %s missing span", param.Name, fn.Name)
			}
		}
		for _, stmt := range fn.Body {
			if err := validateStmtSpans(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateStmtSpans(stmt ast.Stmt) error {
	if stmt.GetSpan().IsZero() {
		return fmt.Errorf("internal: %T missing span", stmt)
	}

	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		return validateExprSpans(s.Expr)
	case *ast.ExprStmt:
		return validateExprSpans(s.Expr)
	case *ast.VarDecl:
		return validateExprSpans(s.Value)
	case *ast.Assignment:
		return validateExprSpans(s.Value)
	case *ast.IfStmt:
		if err := validateExprSpans(s.Condition); err != nil {
			return err
		}
		for _, inner := range s.ThenBody {
			if err := validateStmtSpans(inner); err != nil {
				return err
			}
		}
		for _, inner := range s.ElseBody {
			if err := validateStmtSpans(inner); err != nil {
				return err
			}
		}
	case *ast.ForStmt:
		if err := validateExprSpans(s.Condition); err != nil {
			return err
		}
		for _, inner := range s.Body {
			if err := validateStmtSpans(inner); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateExprSpans(expr ast.Expr) error {
	if expr.GetSpan().IsZero() {
		return fmt.Errorf("internal: %T missing span", expr)
	}

	switch e := expr.(type) {
	case *ast.BinaryExpr:
		if err := validateExprSpans(e.Left); err != nil {
			return err
		}
		return validateExprSpans(e.Right)
	case *ast.UnaryExpr:
		return validateExprSpans(e.Operand)
	case *ast.Call:
		for _, arg := range e.Args {
			if err := validateExprSpans(arg); err != nil {
				return err
			}
		}
	}
	return nil
}
