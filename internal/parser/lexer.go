package parser

import (
	"fmt"
	"strings"
)

type TokenKind int

const (
	TokenIdent TokenKind = iota + 1
	TokenNumber
	TokenString
	TokenSymbol
	TokenEOF
)

// Token is one lexical unit. Pos is the byte offset of the token's first
// character in the statement.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// LexError reports an unscannable character sequence with its position.
type LexError struct {
	Pos     int
	Message string
}

func (e LexError) Error() string {
	return fmt.Sprintf("lex error at position %d: %s", e.Pos, e.Message)
}

// ParseError reports a grammar violation with the offending token's
// position.
type ParseError struct {
	Pos     int
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Message)
}

// lexer scans tokens on demand; the parser pulls one at a time.
type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) next() (Token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos += 1
	}
	if l.pos >= len(l.input) {
		return Token{Kind: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos += 1
		}
		return Token{Kind: TokenIdent, Text: l.input[start:l.pos], Pos: start}, nil

	case isDigit(c):
		return l.scanNumber(start)

	case c == '\'':
		return l.scanString(start)
	}

	// Two character operators first
	if l.pos+1 < len(l.input) {
		pair := l.input[l.pos : l.pos+2]
		switch pair {
		case "<=", ">=", "!=", "<>":
			l.pos += 2
			return Token{Kind: TokenSymbol, Text: pair, Pos: start}, nil
		}
	}
	switch c {
	case '(', ')', ',', ';', '*', '=', '<', '>', '-', '.':
		l.pos += 1
		return Token{Kind: TokenSymbol, Text: string(c), Pos: start}, nil
	}

	return Token{}, LexError{Pos: start, Message: fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) scanNumber(start int) (Token, error) {
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos += 1
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos += 1
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			return Token{}, LexError{Pos: start, Message: "malformed number"}
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos += 1
		}
	}
	return Token{Kind: TokenNumber, Text: l.input[start:l.pos], Pos: start}, nil
}

// scanString scans a single quoted string literal; a doubled quote is an
// escaped quote. The token text is the unescaped value.
func (l *lexer) scanString(start int) (Token, error) {
	var sb strings.Builder
	l.pos += 1
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c != '\'' {
			sb.WriteByte(c)
			l.pos += 1
			continue
		}
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
			sb.WriteByte('\'')
			l.pos += 2
			continue
		}
		l.pos += 1
		return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
	}
	return Token{}, LexError{Pos: start, Message: "unterminated string literal"}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
