package parser

import (
	"fmt"

	"github.com/reldb/reldb/internal/reldb"
)

// parseWhere parses a boolean expression. AND binds tighter than OR;
// parentheses override.
func (s *session) parseWhere() (reldb.Expr, error) {
	return s.parseOr()
}

func (s *session) parseOr() (reldb.Expr, error) {
	left, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		or, err := s.acceptKeyword("OR")
		if err != nil {
			return nil, err
		}
		if !or {
			return left, nil
		}
		right, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		left = reldb.Or{Left: left, Right: right}
	}
}

func (s *session) parseAnd() (reldb.Expr, error) {
	left, err := s.parsePredicate()
	if err != nil {
		return nil, err
	}
	for {
		and, err := s.acceptKeyword("AND")
		if err != nil {
			return nil, err
		}
		if !and {
			return left, nil
		}
		right, err := s.parsePredicate()
		if err != nil {
			return nil, err
		}
		left = reldb.And{Left: left, Right: right}
	}
}

func (s *session) parsePredicate() (reldb.Expr, error) {
	open, err := s.acceptSymbol("(")
	if err != nil {
		return nil, err
	}
	if open {
		inner, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if err := s.expectSymbol(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}

	left, err := s.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := s.parseCompareOp()
	if err != nil {
		return nil, err
	}
	right, err := s.parseOperand()
	if err != nil {
		return nil, err
	}
	return reldb.Comparison{Left: left, Right: right, Op: op}, nil
}

func (s *session) parseOperand() (reldb.Operand, error) {
	if s.isLiteralStart() {
		value, err := s.parseLiteral()
		if err != nil {
			return reldb.Operand{}, err
		}
		return reldb.Operand{Literal: value}, nil
	}
	if s.tok.Kind == TokenIdent {
		column := s.tok.Text
		if err := s.advance(); err != nil {
			return reldb.Operand{}, err
		}
		return reldb.Operand{Column: column, IsColumn: true}, nil
	}
	return reldb.Operand{}, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected a column or literal, got %q", s.tok.Text)}
}

func (s *session) parseCompareOp() (reldb.CompareOp, error) {
	if s.tok.Kind != TokenSymbol {
		return 0, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected a comparison operator, got %q", s.tok.Text)}
	}
	var op reldb.CompareOp
	switch s.tok.Text {
	case "=":
		op = reldb.Eq
	case "!=", "<>":
		op = reldb.Ne
	case "<":
		op = reldb.Lt
	case ">":
		op = reldb.Gt
	case "<=":
		op = reldb.Le
	case ">=":
		op = reldb.Ge
	default:
		return 0, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("unknown comparison operator %q", s.tok.Text)}
	}
	return op, s.advance()
}
