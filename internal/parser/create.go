package parser

import (
	"fmt"
	"strings"

	"github.com/reldb/reldb/internal/reldb"
)

func (s *session) parseCreate() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	if s.isKeyword("TABLE") {
		return s.parseCreateTable()
	}
	unique, err := s.acceptKeyword("UNIQUE")
	if err != nil {
		return reldb.Statement{}, err
	}
	if s.isKeyword("INDEX") {
		return s.parseCreateIndex(unique)
	}
	return reldb.Statement{}, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected TABLE or INDEX, got %q", s.tok.Text)}
}

func (s *session) parseCreateTable() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	tableName, err := s.expectIdent("table name")
	if err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectSymbol("("); err != nil {
		return reldb.Statement{}, err
	}

	stmt := reldb.Statement{
		Kind:      reldb.CreateTable,
		TableName: tableName,
	}
	for {
		aColumn, err := s.parseColumnDef()
		if err != nil {
			return reldb.Statement{}, err
		}
		stmt.Columns = append(stmt.Columns, aColumn)

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
	return stmt, nil
}

func (s *session) parseColumnDef() (reldb.Column, error) {
	name, err := s.expectIdent("column name")
	if err != nil {
		return reldb.Column{}, err
	}
	kind, err := s.parseColumnKind()
	if err != nil {
		return reldb.Column{}, err
	}

	aColumn := reldb.Column{
		Name:     name,
		Kind:     kind,
		Nullable: true,
	}
	for {
		switch {
		case s.isKeyword("PRIMARY"):
			if err := s.advance(); err != nil {
				return reldb.Column{}, err
			}
			if err := s.expectKeyword("KEY"); err != nil {
				return reldb.Column{}, err
			}
			aColumn.PrimaryKey = true
			aColumn.Nullable = false
		case s.isKeyword("UNIQUE"):
			if err := s.advance(); err != nil {
				return reldb.Column{}, err
			}
			aColumn.Unique = true
		case s.isKeyword("NOT"):
			if err := s.advance(); err != nil {
				return reldb.Column{}, err
			}
			if err := s.expectKeyword("NULL"); err != nil {
				return reldb.Column{}, err
			}
			aColumn.Nullable = false
		case s.isKeyword("NULL"):
			if err := s.advance(); err != nil {
				return reldb.Column{}, err
			}
		default:
			return aColumn, nil
		}
	}
}

// parseColumnKind accepts the type name and its aliases; a VARCHAR length
// is parsed and discarded since text storage is unbounded.
func (s *session) parseColumnKind() (reldb.ColumnKind, error) {
	if s.tok.Kind != TokenIdent {
		return 0, ParseError{Pos: s.tok.Pos, Message: fmt.Sprintf("expected a column type, got %q", s.tok.Text)}
	}
	typeName := strings.ToUpper(s.tok.Text)
	pos := s.tok.Pos
	if err := s.advance(); err != nil {
		return 0, err
	}

	switch typeName {
	case "INT", "INTEGER":
		return reldb.Int, nil
	case "REAL", "FLOAT", "DOUBLE":
		return reldb.Real, nil
	case "BOOLEAN", "BOOL":
		return reldb.Boolean, nil
	case "TEXT":
		return reldb.Text, nil
	case "VARCHAR":
		open, err := s.acceptSymbol("(")
		if err != nil {
			return 0, err
		}
		if open {
			if s.tok.Kind != TokenNumber {
				return 0, ParseError{Pos: s.tok.Pos, Message: "expected a length after VARCHAR("}
			}
			if err := s.advance(); err != nil {
				return 0, err
			}
			if err := s.expectSymbol(")"); err != nil {
				return 0, err
			}
		}
		return reldb.Text, nil
	}
	return 0, ParseError{Pos: pos, Message: fmt.Sprintf("unknown column type %q", typeName)}
}

func (s *session) parseCreateIndex(unique bool) (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	indexName, err := s.expectIdent("index name")
	if err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectKeyword("ON"); err != nil {
		return reldb.Statement{}, err
	}
	tableName, err := s.expectIdent("table name")
	if err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectSymbol("("); err != nil {
		return reldb.Statement{}, err
	}
	column, err := s.expectIdent("column name")
	if err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectSymbol(")"); err != nil {
		return reldb.Statement{}, err
	}

	return reldb.Statement{
		Kind:        reldb.CreateIndex,
		TableName:   tableName,
		IndexName:   indexName,
		IndexColumn: column,
		IndexUnique: unique,
	}, nil
}
