package reldb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Table is the runtime view of a catalog table: its schema plus handles
// to the primary tree and any secondary index trees.
type Table struct {
	Name       string
	Columns    []Column
	RootPage   uint32
	PrimaryKey string // empty when rows are keyed by hidden row ID
	Indexes    []*IndexInfo

	tree   *BTree
	logger *zap.Logger
}

// IndexInfo is a secondary index over a single column. For a unique index
// the tree key is just the encoded column value; for a non-unique one the
// primary key is appended so equal column values stay distinct and scan in
// insertion order.
type IndexInfo struct {
	Name     string
	Column   string
	Unique   bool
	RootPage uint32

	tree *BTree
}

func (t *Table) ColumnByName(name string) (Column, int, bool) {
	for i, aColumn := range t.Columns {
		if aColumn.Name == name {
			return aColumn, i, true
		}
	}
	return Column{}, 0, false
}

func (t *Table) IndexByName(name string) (*IndexInfo, bool) {
	for _, anIndex := range t.Indexes {
		if anIndex.Name == name {
			return anIndex, true
		}
	}
	return nil, false
}

// IndexOnColumn returns an index covering the column, preferring a unique
// one when several exist.
func (t *Table) IndexOnColumn(column string) (*IndexInfo, bool) {
	var found *IndexInfo
	for _, anIndex := range t.Indexes {
		if anIndex.Column != column {
			continue
		}
		if anIndex.Unique {
			return anIndex, true
		}
		if found == nil {
			found = anIndex
		}
	}
	return found, found != nil
}

// RowKey computes the tree key for a row's values, either the encoded
// primary key column or a fresh hidden row ID.
func (t *Table) RowKey(ctx context.Context, aPager *Pager, values []any) ([]byte, error) {
	if t.PrimaryKey == "" {
		rowID, err := aPager.NextRowID(ctx)
		if err != nil {
			return nil, err
		}
		return EncodeRowID(rowID), nil
	}
	aColumn, idx, ok := t.ColumnByName(t.PrimaryKey)
	if !ok {
		return nil, fmt.Errorf("%w: primary key %q", ErrColumnNotFound, t.PrimaryKey)
	}
	if values[idx] == nil {
		return nil, fmt.Errorf("%w: primary key %q cannot be NULL", ErrConstraintViolation, t.PrimaryKey)
	}
	return EncodeKeyValue(aColumn.Kind, values[idx])
}

// entryKey computes the secondary tree key for a column value and the
// row's primary key bytes.
func (i *IndexInfo) entryKey(kind ColumnKind, value any, primaryKey []byte) ([]byte, error) {
	encoded, err := EncodeKeyValue(kind, value)
	if err != nil {
		return nil, err
	}
	if i.Unique {
		return encoded, nil
	}
	return append(encoded, primaryKey...), nil
}
