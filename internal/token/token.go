// Package token defines the lexical tokens of the Zero language.
package token

// Type identifies the kind of a token.
type Type int

const (
	ILLEGAL Type = iota
	EOF

	// Identifiers and literals
	IDENT
	INT
	STRING

	// Keywords
	FN
	RETURN
	IF
	ELSE
	FOR
	BREAK
	CONTINUE
	TRUE
	FALSE

	// Operators
	PLUS
	MINUS
	STAR
	PERCENT
	ASSIGN
	PLUS_ASSIGN
	MINUS_ASSIGN
	EQ
	NE
	LT
	GT
	LE
	GE

	// Delimiters
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COLON
	COMMA
)

var typeNames = map[Type]string{
	ILLEGAL:      "ILLEGAL",
	EOF:          "EOF",
	IDENT:        "IDENT",
	INT:          "INT",
	STRING:       "STRING",
	FN:           "fn",
	RETURN:       "return",
	IF:           "if",
	ELSE:         "else",
	FOR:          "for",
	BREAK:        "break",
	CONTINUE:     "continue",
	TRUE:         "true",
	FALSE:        "false",
	PLUS:         "+",
	MINUS:        "-",
	STAR:         "*",
	PERCENT:      "%",
	ASSIGN:       "=",
	PLUS_ASSIGN:  "+=",
	MINUS_ASSIGN: "-=",
	EQ:           "==",
	NE:           "!=",
	LT:           "<",
	GT:           ">",
	LE:           "<=",
	GE:           ">=",
	LPAREN:       "(",
	RPAREN:       ")",
	LBRACE:       "{",
	RBRACE:       "}",
	COLON:        ":",
	COMMA:        ",",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is a single lexical token with its source position.
type Token struct {
	Type   Type
	Lexeme string // raw text; string literals hold the unquoted value
	Line   int    // 1-based
	Column int    // 1-based
}

var keywords = map[string]Type{
	"fn":       FN,
	"return":   RETURN,
	"if":       IF,
	"else":     ELSE,
	"for":      FOR,
	"break":    BREAK,
	"continue": CONTINUE,
	"true":     TRUE,
	"false":    FALSE,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) Type {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return IDENT
}
