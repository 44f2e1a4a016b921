package reldb

import (
	"context"
)

const (
	// PageSize is the fixed size of every on-disk page.
	PageSize = 4096

	// CatalogTableName is the reserved system table holding schema records.
	CatalogTableName = "reldb_catalog"

	MaxColumns = 64

	// MaxTableDDL bounds the SQL text stored per catalog record so a schema
	// record always fits a single leaf entry.
	MaxTableDDL = 500

	// DefaultMinDegree is the minimum degree for primary table trees.
	DefaultMinDegree = 4
	// DefaultIndexMinDegree is the minimum degree for secondary index trees
	// whose entries are small (encoded key plus row key).
	DefaultIndexMinDegree = 8
)

type ColumnKind int

const (
	Int ColumnKind = iota + 1
	Real
	Text
	Boolean
)

func (k ColumnKind) String() string {
	switch k {
	case Int:
		return "INT"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Boolean:
		return "BOOLEAN"
	default:
		return "Unknown"
	}
}

type Column struct {
	Name       string
	Kind       ColumnKind
	Nullable   bool
	PrimaryKey bool
	Unique     bool
}

// StatementParser turns raw SQL into a statement AST. Implemented by
// internal/parser; the catalog uses it to rebuild schemas from stored DDL.
type StatementParser interface {
	Parse(ctx context.Context, sql string) (Statement, error)
}
