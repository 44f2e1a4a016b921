package reldb

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// executeInsert validates, keys and stores each row, fanning the row out
// to every secondary index. Rows are committed one at a time; a failing
// row is fully undone but rows stored before it stay.
func (d *Database) executeInsert(ctx context.Context, stmt Statement) (StatementResult, error) {
	aTable, err := d.catalog.LookupTable(stmt.TableName)
	if err != nil {
		return StatementResult{}, err
	}

	inserted := 0
	for _, fieldValues := range stmt.Inserts {
		values, err := orderValues(aTable, stmt.Fields, fieldValues)
		if err != nil {
			return StatementResult{RowsAffected: inserted}, err
		}
		if err := d.insertRow(ctx, aTable, values); err != nil {
			return StatementResult{RowsAffected: inserted}, err
		}
		inserted += 1
	}

	d.logger.Sugar().With("table", aTable.Name, "rows", inserted).Debug("inserted rows")
	return StatementResult{RowsAffected: inserted}, nil
}

// orderValues lays field values out in schema order, filling unnamed
// columns with NULL, and coerces literal types to the column kinds.
func orderValues(aTable *Table, fields []string, fieldValues []any) ([]any, error) {
	if fields == nil {
		if len(fieldValues) != len(aTable.Columns) {
			return nil, fmt.Errorf("%w: expected %d values, got %d", ErrSchemaMismatch, len(aTable.Columns), len(fieldValues))
		}
		values := make([]any, len(fieldValues))
		for i, aColumn := range aTable.Columns {
			values[i] = coerceValue(aColumn.Kind, fieldValues[i])
		}
		return values, nil
	}

	if len(fields) != len(fieldValues) {
		return nil, fmt.Errorf("%w: %d fields but %d values", ErrSchemaMismatch, len(fields), len(fieldValues))
	}
	values := make([]any, len(aTable.Columns))
	for i, field := range fields {
		aColumn, idx, ok := aTable.ColumnByName(field)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, field)
		}
		values[idx] = coerceValue(aColumn.Kind, fieldValues[i])
	}
	return values, nil
}

// coerceValue widens int literals for real columns; everything else is
// left for the record codec to type check.
func coerceValue(kind ColumnKind, value any) any {
	if kind == Real {
		if v, ok := value.(int64); ok {
			return float64(v)
		}
	}
	return value
}

// insertRow stores the record under its primary key, then fans out to the
// secondary indexes. If any index insert fails, the primary record and
// the index entries written so far are removed again so the row leaves no
// trace.
func (d *Database) insertRow(ctx context.Context, aTable *Table, values []any) error {
	record, err := MarshalRecord(aTable.Columns, values)
	if err != nil {
		return err
	}
	primaryKey, err := aTable.RowKey(ctx, d.pager, values)
	if err != nil {
		return err
	}

	if err := aTable.tree.Insert(ctx, primaryKey, record); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return fmt.Errorf("%w: duplicate primary key in table %q", ErrConstraintViolation, aTable.Name)
		}
		return err
	}

	var written []*IndexInfo
	for _, anIndex := range aTable.Indexes {
		entryKey, entryValue, skip, err := indexEntry(aTable, anIndex, values, primaryKey)
		if err != nil {
			return d.undoInsert(ctx, aTable, written, values, primaryKey, err)
		}
		if skip {
			continue
		}
		if err := anIndex.tree.Insert(ctx, entryKey, entryValue); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				err = fmt.Errorf("%w: duplicate value for unique index %q", ErrConstraintViolation, anIndex.Name)
			}
			return d.undoInsert(ctx, aTable, written, values, primaryKey, err)
		}
		written = append(written, anIndex)
	}

	return nil
}

// indexEntry computes the index tree entry for a row; NULL column values
// are not indexed.
func indexEntry(aTable *Table, anIndex *IndexInfo, values []any, primaryKey []byte) ([]byte, []byte, bool, error) {
	aColumn, idx, ok := aTable.ColumnByName(anIndex.Column)
	if !ok {
		return nil, nil, false, fmt.Errorf("%w: index column %q", ErrColumnNotFound, anIndex.Column)
	}
	if values[idx] == nil {
		return nil, nil, true, nil
	}
	entryKey, err := anIndex.entryKey(aColumn.Kind, values[idx], primaryKey)
	if err != nil {
		return nil, nil, false, err
	}
	return entryKey, primaryKey, false, nil
}

// undoInsert compensates a failed row by deleting the primary record and
// the index entries already written. Compensation failures are reported
// alongside the original error.
func (d *Database) undoInsert(ctx context.Context, aTable *Table, written []*IndexInfo, values []any, primaryKey []byte, cause error) error {
	result := cause
	for _, anIndex := range written {
		entryKey, _, skip, err := indexEntry(aTable, anIndex, values, primaryKey)
		if err != nil {
			result = multierr.Append(result, err)
			continue
		}
		if skip {
			continue
		}
		if err := anIndex.tree.Delete(ctx, entryKey); err != nil {
			result = multierr.Append(result, fmt.Errorf("undo index %q entry: %w", anIndex.Name, err))
		}
	}
	if err := aTable.tree.Delete(ctx, primaryKey); err != nil {
		result = multierr.Append(result, fmt.Errorf("undo row: %w", err))
	}
	d.logger.Sugar().With("table", aTable.Name).Debug("compensated failed insert")
	return result
}
