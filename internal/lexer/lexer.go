// Package lexer turns Zero source text into a token stream.
package lexer

import (
	"fmt"

	"github.com/zerolang/zero/internal/token"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() (token.Token, error) {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Line: line, Column: col}, nil
	case '(':
		return l.single(token.LPAREN, line, col), nil
	case ')':
		return l.single(token.RPAREN, line, col), nil
	case '{':
		return l.single(token.LBRACE, line, col), nil
	case '}':
		return l.single(token.RBRACE, line, col), nil
	case ':':
		return l.single(token.COLON, line, col), nil
	case ',':
		return l.single(token.COMMA, line, col), nil
	case '*':
		return l.single(token.STAR, line, col), nil
	case '%':
		return l.single(token.PERCENT, line, col), nil
	case '+':
		if l.peekChar() == '=' {
			return l.double(token.PLUS_ASSIGN, "+=", line, col), nil
		}
		return l.single(token.PLUS, line, col), nil
	case '-':
		if l.peekChar() == '=' {
			return l.double(token.MINUS_ASSIGN, "-=", line, col), nil
		}
		return l.single(token.MINUS, line, col), nil
	case '=':
		if l.peekChar() == '=' {
			return l.double(token.EQ, "==", line, col), nil
		}
		return l.single(token.ASSIGN, line, col), nil
	case '!':
		if l.peekChar() == '=' {
			return l.double(token.NE, "!=", line, col), nil
		}
		return token.Token{}, fmt.Errorf("line %d:%d: unexpected character %q", line, col, string(l.ch))
	case '<':
		if l.peekChar() == '=' {
			return l.double(token.LE, "<=", line, col), nil
		}
		return l.single(token.LT, line, col), nil
	case '>':
		if l.peekChar() == '=' {
			return l.double(token.GE, ">=", line, col), nil
		}
		return l.single(token.GT, line, col), nil
	case '"':
		return l.readString(line, col)
	}

	if isDigit(l.ch) {
		return l.readNumber(line, col), nil
	}
	if isLetter(l.ch) {
		return l.readIdentifier(line, col), nil
	}
	return token.Token{}, fmt.Errorf("line %d:%d: unexpected character %q", line, col, string(l.ch))
}

// Tokenize scans the whole input, ending with an EOF token.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	var tokens []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) single(t token.Type, line, col int) token.Token {
	lexeme := string(l.ch)
	l.readChar()
	return token.Token{Type: t, Lexeme: lexeme, Line: line, Column: col}
}

func (l *Lexer) double(t token.Type, lexeme string, line, col int) token.Token {
	l.readChar()
	l.readChar()
	return token.Token{Type: t, Lexeme: lexeme, Line: line, Column: col}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readNumber(line, col int) token.Token {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return token.Token{Type: token.INT, Lexeme: l.input[start:l.position], Line: line, Column: col}
}

func (l *Lexer) readIdentifier(line, col int) token.Token {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lexeme := l.input[start:l.position]
	return token.Token{Type: token.LookupIdent(lexeme), Lexeme: lexeme, Line: line, Column: col}
}

func (l *Lexer) readString(line, col int) (token.Token, error) {
	l.readChar() // consume opening quote
	start := l.position
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return token.Token{}, fmt.Errorf("line %d:%d: unterminated string literal", line, col)
		}
		l.readChar()
	}
	value := l.input[start:l.position]
	l.readChar() // consume closing quote
	return token.Token{Type: token.STRING, Lexeme: value, Line: line, Column: col}, nil
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
