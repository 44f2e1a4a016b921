package parser

import (
	"github.com/reldb/reldb/internal/reldb"
)

func (s *session) parseDelete() (reldb.Statement, error) {
	if err := s.advance(); err != nil {
		return reldb.Statement{}, err
	}
	if err := s.expectKeyword("FROM"); err != nil {
		return reldb.Statement{}, err
	}
	tableName, err := s.expectIdent("table name")
	if err != nil {
		return reldb.Statement{}, err
	}

	stmt := reldb.Statement{
		Kind:      reldb.Delete,
		TableName: tableName,
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
