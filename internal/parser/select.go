package parser

import (
	"strconv"

	"github.com/reldb/reldb/internal/reldb"
)

func (s *session) parseSelect() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}

	stmt := reldb.Statement{Kind: reldb.Select}

	star, err := s.acceptSymbol("*")
	if err != nil {
		return reldb.Statement{}, err
	}
	if !star {
		for {
			field, err := s.expectIdent("column name")
			if err != nil {
				return reldb.Statement{}, err
			}
			stmt.Fields = append(stmt.Fields, field)
			more, err := s.acceptSymbol(",")
			if err != nil {
				return reldb.Statement{}, err
			}
			if !more {
				break
			}
		}
	}

	if err := s.expectKeyword("FROM"); err != nil {
		return reldb.Statement{}, err
	}
	if stmt.TableName, err = s.expectIdent("table name"); err != nil {
		return reldb.Statement{}, err
	}

	hasWhere, err := s.acceptKeyword("WHERE")
	if err != nil {
		return reldb.Statement{}, err
	}
	if hasWhere {
		if stmt.Where, err = s.parseWhere(); err != nil {
			return reldb.Statement{}, err
		}
	}

	hasOrder, err := s.acceptKeyword("ORDER")
	if err != nil {
		return reldb.Statement{}, err
	}
	if hasOrder {
		if err := s.expectKeyword("BY"); err != nil {
			return reldb.Statement{}, err
		}
		if stmt.OrderBy, err = s.expectIdent("column name"); err != nil {
			return reldb.Statement{}, err
		}
		desc, err := s.acceptKeyword("DESC")
		if err != nil {
			return reldb.Statement{}, err
		}
		stmt.OrderDesc = desc
		if !desc {
			if _, err := s.acceptKeyword("ASC"); err != nil {
				return reldb.Statement{}, err
			}
		}
	}

	hasLimit, err := s.acceptKeyword("LIMIT")
	if err != nil {
		return reldb.Statement{}, err
	}
	if hasLimit {
		if s.tok.Kind != TokenNumber {
			return reldb.Statement{}, ParseError{Pos: s.tok.Pos, Message: "expected a number after LIMIT"}
		}
		limit, err := strconv.ParseInt(s.tok.Text, 10, 64)
		if err != nil {
			return reldb.Statement{}, ParseError{Pos: s.tok.Pos, Message: "invalid LIMIT value"}
		}
		if err := s.advance(); err != nil {
			return reldb.Statement{}, err
		}
		stmt.Limit = limit
		stmt.HasLimit = true
	}

	return stmt, nil
}
