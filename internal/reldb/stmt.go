package reldb

import (
	"context"
)

type StatementKind int

const (
	CreateTable StatementKind = iota + 1
	CreateIndex
	Insert
	Select
	Update
	Delete
)

// Statement is the parsed form of a single SQL statement. Only the fields
// relevant to the Kind are populated.
type Statement struct {
	Kind      StatementKind
	TableName string

	// CREATE TABLE
	Columns []Column

	// CREATE INDEX
	IndexName   string
	IndexColumn string
	IndexUnique bool

	// INSERT; Fields is also the SELECT projection, nil meaning *
	Fields  []string
	Inserts [][]any

	// UPDATE
	Updates map[string]any

	// SELECT / UPDATE / DELETE
	Where Expr

	// SELECT
	Limit     int64
	HasLimit  bool
	OrderBy   string
	OrderDesc bool
}

// Row is a single result row. Key carries the tree key the row was stored
// under so that mutating executors can address it.
type Row struct {
	Columns []Column
	Values  []any
	Key     []byte
}

// ColumnValue returns the row's value for the named column.
func (r Row) ColumnValue(name string) (any, bool) {
	for i, aColumn := range r.Columns {
		if aColumn.Name == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// RowIterator pulls rows one at a time, returning ErrNoMoreRows at the end.
type RowIterator func(ctx context.Context) (Row, error)

// StatementResult is what executing a statement produces. Rows is non-nil
// only for SELECT.
type StatementResult struct {
	Columns      []string
	Rows         RowIterator
	RowsAffected int
}
