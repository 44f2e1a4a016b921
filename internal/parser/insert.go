package parser

import (
	"github.com/reldb/reldb/internal/reldb"
)

func (s *session) parseInsert() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectKeyword("INTO"); err != nil {
		return reldb.Statement{}, err
	}
	tableName, err := s.expectIdent("table name")
	if err != nil {
		return reldb.Statement{}, err
	}

	stmt := reldb.Statement{
		Kind:      reldb.Insert,
		TableName: tableName,
	}

	// Optional column list; without one values follow schema order
	open, err := s.acceptSymbol("(")
	if err != nil {
		return reldb.Statement{}, err
	}
	if open {
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
		if err := s.expectSymbol(")"); err != nil {
			return reldb.Statement{}, err
		}
	}

	if err := s.expectKeyword("VALUES"); err != nil {
		return reldb.Statement{}, err
	}
	for {
		if err := s.expectSymbol("("); err != nil {
			return reldb.Statement{}, err
		}
		var values []any
		for {
			value, err := s.parseLiteral()
			if err != nil {
				return reldb.Statement{}, err
			}
			values = append(values, value)
			more, err := s.acceptSymbol(",")
			if err != nil {
				return reldb.Statement{}, err
			}
			if !more {
				break
			}
		}
		if err := s.expectSymbol(")"); err != nil {
			return reldb.Statement{}, err
		}
		stmt.Inserts = append(stmt.Inserts, values)

		more, err := s.acceptSymbol(",")
		if err != nil {
			return reldb.Statement{}, err
		}
		if !more {
			break
		}
	}

	return stmt, nil
}
