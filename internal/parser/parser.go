package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/reldb/reldb/internal/reldb"
)

// Parser turns SQL text into statements by recursive descent over a
// pulled token stream. A Parser is stateless between calls and safe for
// reuse.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse parses exactly one statement, optionally terminated by a
// semicolon.
func (p *Parser) Parse(ctx context.Context, sql string) (reldb.Statement, error) {
	s := &session{lex: newLexer(sql)}
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}

	var (
		stmt reldb.Statement
		err  error
	)
	switch {
	case s.isKeyword("CREATE"):
		stmt, err = s.parseCreate()
	case s.isKeyword("INSERT"):
		stmt, err = s.parseInsert()
	case s.isKeyword("SELECT"):
		stmt, err = s.parseSelect()
	case s.isKeyword("UPDATE"):
		stmt, err = s.parseUpdate()
	case s.isKeyword("DELETE"):
		stmt, err = s.parseDelete()
	default:
		return reldb.Statement{}, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected a statement, got %q", s.tok.Text)}
	}
	if err != nil {
		return reldb.Statement{}, err
	}

	if s.tok.Kind == TokenSymbol && s.tok.Text == ";" {
		if err := s.advance(); err != nil {
			return reldb.Statement{}, err
		}
	}
	if s.tok.Kind != TokenEOF {
		return reldb.Statement{}, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("unexpected trailing input %q", s.tok.Text)}
	}
	return stmt, nil
}

// session is the per-call parse state: the lexer plus one token of
// lookahead.
type session struct {
	lex *lexer
	tok Token
}

func (s *session) advance() error {
	tok, err := s.lex.next()
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}

func (s *session) isKeyword(keyword string) bool {
	return s.tok.Kind == TokenIdent && strings.EqualFold(s.tok.Text, keyword)
}

// expectKeyword consumes the given keyword or fails.
func (s *session) expectKeyword(keyword string) error {
	if !s.isKeyword(keyword) {
		return ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected %s, got %q", keyword, s.tok.Text)}
	}
	return s.advance()
}

// acceptKeyword consumes the keyword if present.
func (s *session) acceptKeyword(keyword string) (bool, error) {
	if !s.isKeyword(keyword) {
		return false, nil
	}
	return true, s.advance()
}

// expectSymbol consumes the given symbol or fails.
func (s *session) expectSymbol(symbol string) error {
	if s.tok.Kind != TokenSymbol || s.tok.Text != symbol {
		return ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected %q, got %q", symbol, s.tok.Text)}
	}
	return s.advance()
}

// acceptSymbol consumes the symbol if present.
func (s *session) acceptSymbol(symbol string) (bool, error) {
	if s.tok.Kind != TokenSymbol || s.tok.Text != symbol {
		return false, nil
	}
	return true, s.advance()
}

// expectIdent consumes and returns an identifier.
func (s *session) expectIdent(what string) (string, error) {
	if s.tok.Kind != TokenIdent {
		return "", ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected %s, got %q", what, s.tok.Text)}
	}
	name := s.tok.Text
	return name, s.advance()
}

// parseLiteral parses an integer, real, string, boolean or NULL literal,
// including a leading minus on numbers.
func (s *session) parseLiteral() (any, error) {
	// The sign is folded into the parsed text so the full int64 range,
	// minimum value included, parses in one call.
	sign := ""
	if s.tok.Kind == TokenSymbol && s.tok.Text == "-" {
		sign = "-"
		if err := s.advance(); err != nil {
			return nil, err
		}
		if s.tok.Kind != TokenNumber {
			return nil, ParseError{Pos: s.tok.Pos, Message: "expected a number after minus sign"}
		}
	}

	switch {
	case s.tok.Kind == TokenNumber:
		text := sign + s.tok.Text
		pos := s.tok.Pos
		if err := s.advance(); err != nil {
			return nil, err
		}
		if strings.Contains(text, ".") {
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, ParseError{Pos: pos, Message: fmt.Sprintf("invalid number %q", text)}
			}
			return value, nil
		}
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, ParseError{Pos: pos, Message: fmt.Sprintf("invalid number %q", text)}
		}
		return value, nil

	case s.tok.Kind == TokenString:
		value := s.tok.Text
		return value, s.advance()

	case s.isKeyword("TRUE"):
		return true, s.advance()
	case s.isKeyword("FALSE"):
		return false, s.advance()
	case s.isKeyword("NULL"):
		return nil, s.advance()
	}

	return nil, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected a literal value, got %q", s.tok.Text)}
}

// isLiteralStart reports whether the current token can begin a literal.
func (s *session) isLiteralStart() bool {
	if s.tok.Kind == TokenNumber || s.tok.Kind == TokenString {
		return true
	}
	if s.tok.Kind == TokenSymbol && s.tok.Text == "-" {
		return true
	}
	return s.isKeyword("TRUE") || s.isKeyword("FALSE") || s.isKeyword("NULL")
}
