// Package ast defines the span-annotated syntax tree the compiler consumes.
//
// The statement and expression families are closed: the compiler type-switches
// over them exhaustively, and an unknown node is an internal error.
package ast

// Span covers a source region, inclusive on both ends. Lines and columns
// are 1-based.
type Span struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// IsZero reports whether the span was never set.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Node is the base interface for all AST nodes.
type Node interface {
	GetSpan() Span
}

// Stmt is a Node that represents a statement.
type Stmt interface {
	Node
	statementNode()
}

// Expr is a Node that represents an expression.
type Expr interface {
	Node
	expressionNode()
}

// --- Expressions ---

type IntLiteral struct {
	Value int64
	Span  Span
}

type BoolLiteral struct {
	Value bool
	Span  Span
}

type StringLiteral struct {
	Value string
	Span  Span
}

type Identifier struct {
	Name string
	Span Span
}

// BinaryExpr is a binary operation; Op is the surface operator
// ("+", "-", "*", "%", "==", "!=", "<", ">", "<=", ">=").
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Span  Span
}

// UnaryExpr is currently only unary minus.
type UnaryExpr struct {
	Op      string
	Operand Expr
	Span    Span
}

// Call invokes a user function or a builtin by name.
type Call struct {
	Name string
	Args []Expr
	Span Span
}

func (e *IntLiteral) expressionNode()    {}
func (e *BoolLiteral) expressionNode()   {}
func (e *StringLiteral) expressionNode() {}
func (e *Identifier) expressionNode()    {}
func (e *BinaryExpr) expressionNode()    {}
func (e *UnaryExpr) expressionNode()     {}
func (e *Call) expressionNode()          {}

func (e *IntLiteral) GetSpan() Span    { return e.Span }
func (e *BoolLiteral) GetSpan() Span   { return e.Span }
func (e *StringLiteral) GetSpan() Span { return e.Span }
func (e *Identifier) GetSpan() Span    { return e.Span }
func (e *BinaryExpr) GetSpan() Span    { return e.Span }
func (e *UnaryExpr) GetSpan() Span     { return e.Span }
func (e *Call) GetSpan() Span          { return e.Span }

// --- Statements ---

type ReturnStmt struct {
	Expr Expr
	Span Span
}

type ExprStmt struct {
	Expr Expr
	Span Span
}

// VarDecl declares a new local: name: type = value
type VarDecl struct {
	Name  string
	Type  string
	Value Expr
	Span  Span
}

type Assignment struct {
	Name  string
	Value Expr
	Span  Span
}

type IfStmt struct {
	Condition Expr
	ThenBody  []Stmt
	ElseBody  []Stmt // nil when there is no else branch
	Span      Span
}

// ForStmt is a condition loop: for (cond) { body }
type ForStmt struct {
	Condition Expr
	Body      []Stmt
	Span      Span
}

type BreakStmt struct {
	Span Span
}

type ContinueStmt struct {
	Span Span
}

func (s *ReturnStmt) statementNode()   {}
func (s *ExprStmt) statementNode()     {}
func (s *VarDecl) statementNode()      {}
func (s *Assignment) statementNode()   {}
func (s *IfStmt) statementNode()       {}
func (s *ForStmt) statementNode()      {}
func (s *BreakStmt) statementNode()    {}
func (s *ContinueStmt) statementNode() {}

func (s *ReturnStmt) GetSpan() Span   { return s.Span }
func (s *ExprStmt) GetSpan() Span     { return s.Span }
func (s *VarDecl) GetSpan() Span      { return s.Span }
func (s *Assignment) GetSpan() Span   { return s.Span }
func (s *IfStmt) GetSpan() Span       { return s.Span }
func (s *ForStmt) GetSpan() Span      { return s.Span }
func (s *BreakStmt) GetSpan() Span    { return s.Span }
func (s *ContinueStmt) GetSpan() Span { return s.Span }

// --- Declarations ---

// Param is a function parameter with its declared type.
type Param struct {
	Name string
	Type string
	Span Span
}

// Function is one declared function. ReturnType is "" when the function
// returns nothing meaningful (it still yields int 0 at runtime).
type Function struct {
	Name       string
	Params     []Param
	ReturnType string
	Body       []Stmt
	Span       Span
	NameSpan   Span
}

// Program is the root node: the ordered list of declared functions.
type Program struct {
	Functions []*Function
	Span      Span
}
