package parser

import (
	"fmt"

	"github.com/reldb/reldb/internal/reldb"
)

func (s *session) parseUpdate() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	tableName, err := s.expectIdent("table name")
	if err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectKeyword("SET"); err != nil {
		return reldb.Statement{}, err
	}

	stmt := reldb.Statement{
		Kind:      reldb.Update,
		TableName: tableName,
		Updates:   make(map[string]any),
	}
	for {
		pos := s.tok.Pos
		column, err := s.expectIdent("column name")
		if err != nil {
			return reldb.Statement{}, err
		}
		if _, ok := stmt.Updates[column]; ok {
			return reldb.Statement{}, ParseError{Pos: pos, Message: fmt.Sprintf("column %q assigned twice", column)}
		}
		if err := s.expectSymbol("="); err != nil {
			return reldb.Statement{}, err
		}
		value, err := s.parseLiteral()
		if err != nil {
			return reldb.Statement{}, err
		}
		stmt.Updates[column] = value

		more, err := s.acceptSymbol(",")
		if err != nil {
			return reldb.Statement{}, err
		}
		if !more {
			break
		}
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

	return stmt, nil
}
