// Package parser builds a span-annotated AST from a token stream.
//
// Grammar sketch:
//
//	program    = function*
//	function   = "fn" IDENT "(" params ")" [":" IDENT] block
//	statement  = return | if | for | break | continue | vardecl |
//	             assignment | compound-assignment | exprstmt
//	expression = comparison ; comparison is single-level, non-associative
package parser

import (
	"fmt"
	"strconv"

	"github.com/zerolang/zero/internal/ast"
	"github.com/zerolang/zero/internal/token"
)

type Parser struct {
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse consumes the token stream and returns the program AST. After a
// successful parse every node has its span set; the compiler relies on this.
func Parse(tokens []token.Token) (*ast.Program, error) {
	program, err := New(tokens).ParseProgram()
	if err != nil {
		return nil, err
	}
	if err := validateSpans(program); err != nil {
		return nil, err
	}
	return program, nil
}

func (p *Parser) current() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) token.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[pos]
}

func (p *Parser) advance() token.Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) check(t token.Type) bool {
	return p.current().Type == t
}

func (p *Parser) match(t token.Type) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t token.Type, message string) (token.Token, error) {
	if !p.check(t) {
		cur := p.current()
		return token.Token{}, fmt.Errorf("line %d:%d: %s, got %s", cur.Line, cur.Column, message, cur.Type)
	}
	return p.advance(), nil
}

func (p *Parser) atEnd() bool {
	return p.check(token.EOF)
}

// tokenSpan is the span of a single token with a known lexeme width.
func tokenSpan(tok token.Token) ast.Span {
	width := len(tok.Lexeme)
	if width == 0 {
		width = 1
	}
	return ast.Span{
		StartLine:   tok.Line,
		StartColumn: tok.Column,
		EndLine:     tok.Line,
		EndColumn:   tok.Column + width - 1,
	}
}

// spanFrom covers from a start token through the end of an expression.
func spanFrom(start token.Token, end ast.Expr) ast.Span {
	es := end.GetSpan()
	return ast.Span{
		StartLine:   start.Line,
		StartColumn: start.Column,
		EndLine:     es.EndLine,
		EndColumn:   es.EndColumn,
	}
}

// spanBetween covers both operands of a binary expression.
func spanBetween(left, right ast.Expr) ast.Span {
	ls, rs := left.GetSpan(), right.GetSpan()
	return ast.Span{
		StartLine:   ls.StartLine,
		StartColumn: ls.StartColumn,
		EndLine:     rs.EndLine,
		EndColumn:   rs.EndColumn,
	}
}

// ParseProgram parses a sequence of function declarations until EOF.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	start := p.current()
	var functions []*ast.Function

	for !p.atEnd() {
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}

	span := ast.Span{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1}
	if len(functions) > 0 {
		last := functions[len(functions)-1]
		span = ast.Span{
			StartLine:   max(start.Line, 1),
			StartColumn: max(start.Column, 1),
			EndLine:     last.Span.EndLine,
			EndColumn:   last.Span.EndColumn,
		}
	}
	return &ast.Program{Functions: functions, Span: span}, nil
}

func (p *Parser) parseFunction() (*ast.Function, error) {
	fnTok, err := p.expect(token.FN, "expected 'fn'")
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT, "expected function name")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(token.LPAREN, "expected '(' after function name"); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, "expected ')' after parameters"); err != nil {
		return nil, err
	}

	returnType := ""
	if p.match(token.COLON) {
		typeTok, err := p.expect(token.IDENT, "expected return type")
		if err != nil {
			return nil, err
		}
		returnType = typeTok.Lexeme
	}

	if _, err := p.expect(token.LBRACE, "expected '{' before function body"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	rbrace, err := p.expect(token.RBRACE, "expected '}' after function body")
	if err != nil {
		return nil, err
	}

	return &ast.Function{
		Name:       nameTok.Lexeme,
		Params:     params,
		ReturnType: returnType,
		Body:       body,
		Span: ast.Span{
			StartLine:   fnTok.Line,
			StartColumn: fnTok.Column,
			EndLine:     rbrace.Line,
			EndColumn:   rbrace.Column,
		},
		NameSpan: tokenSpan(nameTok),
	}, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	if p.check(token.RPAREN) || p.check(token.EOF) {
		return params, nil
	}

	for {
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if !p.match(token.COMMA) {
			return params, nil
		}
	}
}

func (p *Parser) parseParam() (ast.Param, error) {
	nameTok, err := p.expect(token.IDENT, "expected parameter name")
	if err != nil {
		return ast.Param{}, err
	}
	if _, err := p.expect(token.COLON, "expected ':' after parameter name"); err != nil {
		return ast.Param{}, err
	}
	typeTok, err := p.expect(token.IDENT, "expected parameter type")
	if err != nil {
		return ast.Param{}, err
	}
	return ast.Param{
		Name: nameTok.Lexeme,
		Type: typeTok.Lexeme,
		Span: ast.Span{
			StartLine:   nameTok.Line,
			StartColumn: nameTok.Column,
			EndLine:     typeTok.Line,
			EndColumn:   typeTok.Column + len(typeTok.Lexeme) - 1,
		},
	}, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	var statements []ast.Stmt
	for !p.check(token.RBRACE) && !p.atEnd() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch {
	case p.check(token.RETURN):
		returnTok := p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Expr: expr, Span: spanFrom(returnTok, expr)}, nil

	case p.check(token.IF):
		return p.parseIf()

	case p.check(token.FOR):
		return p.parseFor()

	case p.check(token.BREAK):
		tok := p.advance()
		return &ast.BreakStmt{Span: tokenSpan(tok)}, nil

	case p.check(token.CONTINUE):
		tok := p.advance()
		return &ast.ContinueStmt{Span: tokenSpan(tok)}, nil

	case p.check(token.IDENT) && p.peek(1).Type == token.COLON:
		return p.parseVarDecl()

	case p.check(token.IDENT) && p.peek(1).Type == token.ASSIGN:
		nameTok := p.advance()
		p.advance() // consume '='
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Name: nameTok.Lexeme, Value: value, Span: spanFrom(nameTok, value)}, nil

	case p.check(token.IDENT) && p.peek(1).Type == token.PLUS_ASSIGN:
		return p.parseCompoundAssign("+")

	case p.check(token.IDENT) && p.peek(1).Type == token.MINUS_ASSIGN:
		return p.parseCompoundAssign("-")
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: expr, Span: expr.GetSpan()}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	ifTok := p.advance()
	if _, err := p.expect(token.LPAREN, "expected '(' after 'if'"); err != nil {
		return nil, err
	}
	condition, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, "expected ')' after condition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "expected '{' before then block"); err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.RBRACE, "expected '}' after then block")
	if err != nil {
		return nil, err
	}

	var elseBody []ast.Stmt
	if p.match(token.ELSE) {
		if _, err := p.expect(token.LBRACE, "expected '{' before else block"); err != nil {
			return nil, err
		}
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
		endTok, err = p.expect(token.RBRACE, "expected '}' after else block")
		if err != nil {
			return nil, err
		}
		if elseBody == nil {
			elseBody = []ast.Stmt{}
		}
	}

	return &ast.IfStmt{
		Condition: condition,
		ThenBody:  thenBody,
		ElseBody:  elseBody,
		Span: ast.Span{
			StartLine:   ifTok.Line,
			StartColumn: ifTok.Column,
			EndLine:     endTok.Line,
			EndColumn:   endTok.Column,
		},
	}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	forTok := p.advance()
	if _, err := p.expect(token.LPAREN, "expected '(' after 'for'"); err != nil {
		return nil, err
	}
	condition, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN, "expected ')' after condition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE, "expected '{' before loop body"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.RBRACE, "expected '}' after loop body")
	if err != nil {
		return nil, err
	}

	return &ast.ForStmt{
		Condition: condition,
		Body:      body,
		Span: ast.Span{
			StartLine:   forTok.Line,
			StartColumn: forTok.Column,
			EndLine:     endTok.Line,
			EndColumn:   endTok.Column,
		},
	}, nil
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	nameTok := p.advance()
	p.advance() // consume ':'
	typeTok, err := p.expect(token.IDENT, "expected type")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN, "expected '=' in variable declaration"); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ast.VarDecl{
		Name:  nameTok.Lexeme,
		Type:  typeTok.Lexeme,
		Value: value,
		Span:  spanFrom(nameTok, value),
	}, nil
}

// parseCompoundAssign desugars x += e into x = x + e (and -= likewise).
func (p *Parser) parseCompoundAssign(op string) (ast.Stmt, error) {
	nameTok := p.advance()
	p.advance() // consume += or -=
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	identSpan := tokenSpan(nameTok)
	stmtSpan := spanFrom(nameTok, value)
	return &ast.Assignment{
		Name: nameTok.Lexeme,
		Value: &ast.BinaryExpr{
			Op:    op,
			Left:  &ast.Identifier{Name: nameTok.Lexeme, Span: identSpan},
			Right: value,
			Span:  stmtSpan,
		},
		Span: stmtSpan,
	}, nil
}

func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseComparison()
}

var comparisonOps = map[token.Type]string{
	token.EQ: "==",
	token.NE: "!=",
	token.LT: "<",
	token.GT: ">",
	token.LE: "<=",
	token.GE: ">=",
}

// parseComparison is deliberately non-associative: a < b < c is a parse error
// downstream because only one comparison operator is consumed.
func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op, ok := comparisonOps[p.current().Type]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: spanBetween(left, right)}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.check(token.PLUS) || p.check(token.MINUS) {
		op := "+"
		if p.advance().Type == token.MINUS {
			op = "-"
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: spanBetween(left, right)}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.check(token.STAR) || p.check(token.PERCENT) {
		op := "*"
		if p.advance().Type == token.PERCENT {
			op = "%"
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Span: spanBetween(left, right)}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.check(token.MINUS) {
		minusTok := p.advance()
		operand, err := p.parseUnary() // right-associative
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "-", Operand: operand, Span: spanFrom(minusTok, operand)}, nil
	}
	return p.parseCall()
}

func (p *Parser) parseCall() (ast.Expr, error) {
	startTok := p.current()
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if ident, ok := expr.(*ast.Identifier); ok && p.match(token.LPAREN) {
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		rparen, err := p.expect(token.RPAREN, "expected ')' after arguments")
		if err != nil {
			return nil, err
		}
		return &ast.Call{
			Name: ident.Name,
			Args: args,
			Span: ast.Span{
				StartLine:   startTok.Line,
				StartColumn: startTok.Column,
				EndLine:     rparen.Line,
				EndColumn:   rparen.Column,
			},
		}, nil
	}
	return expr, nil
}

func (p *Parser) parseArguments() ([]ast.Expr, error) {
	var args []ast.Expr
	if p.check(token.RPAREN) {
		return args, nil
	}

	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(token.COMMA) {
			return args, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.current()

	switch tok.Type {
	case token.INT:
		p.advance()
		value, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: integer literal out of range: %s", tok.Line, tok.Column, tok.Lexeme)
		}
		return &ast.IntLiteral{Value: value, Span: tokenSpan(tok)}, nil

	case token.TRUE:
		p.advance()
		return &ast.BoolLiteral{Value: true, Span: tokenSpan(tok)}, nil

	case token.FALSE:
		p.advance()
		return &ast.BoolLiteral{Value: false, Span: tokenSpan(tok)}, nil

	case token.STRING:
		p.advance()
		// The lexeme is the unquoted value; the span covers the quotes too.
		span := tokenSpan(tok)
		span.EndColumn += 2
		return &ast.StringLiteral{Value: tok.Lexeme, Span: span}, nil

	case token.IDENT:
		p.advance()
		return &ast.Identifier{Name: tok.Lexeme, Span: tokenSpan(tok)}, nil

	case token.LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN, "expected ')' after expression"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, fmt.Errorf("line %d:%d: unexpected token %s", tok.Line, tok.Column, tok.Type)
}
