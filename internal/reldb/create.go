package reldb

import (
	"bytes"
	"context"
	"fmt"
	"sort"
)

// executeCreateTable registers the table and an implicit unique index for
// every UNIQUE column. The statement text itself is persisted as the
// table's DDL so the schema survives reopening the file.
func (d *Database) executeCreateTable(ctx context.Context, sql string, stmt Statement) (StatementResult, error) {
	if err := validateColumns(stmt.Columns); err != nil {
		return StatementResult{}, err
	}

	aTable, err := d.catalog.DefineTable(ctx, stmt.TableName, stmt.Columns, sql)
	if err != nil {
		return StatementResult{}, err
	}

	for _, aColumn := range stmt.Columns {
		if !aColumn.Unique || aColumn.PrimaryKey {
			continue
		}
		indexName := fmt.Sprintf("%s_%s_key", stmt.TableName, aColumn.Name)
		ddl := fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", indexName, stmt.TableName, aColumn.Name)
		if _, err := d.catalog.DefineIndex(ctx, stmt.TableName, indexName, aColumn.Name, true, ddl); err != nil {
			return StatementResult{}, err
		}
	}

	d.logger.Sugar().With("table", aTable.Name, "columns", len(aTable.Columns)).Debug("created table")
	return StatementResult{}, nil
}

func validateColumns(columns []Column) error {
	seen := make(map[string]struct{}, len(columns))
	primaryKeys := 0
	for _, aColumn := range columns {
		if _, ok := seen[aColumn.Name]; ok {
			return fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, aColumn.Name)
		}
		seen[aColumn.Name] = struct{}{}
		if aColumn.PrimaryKey {
			primaryKeys += 1
		}
	}
	if primaryKeys > 1 {
		return fmt.Errorf("%w: at most one PRIMARY KEY column", ErrSchemaMismatch)
	}
	return nil
}

// executeCreateIndex builds a secondary index over the table's existing
// rows. For a unique index duplicates are detected before anything is
// written, so a failed statement leaves the catalog untouched.
func (d *Database) executeCreateIndex(ctx context.Context, sql string, stmt Statement) (StatementResult, error) {
	aTable, err := d.catalog.LookupTable(stmt.TableName)
	if err != nil {
		return StatementResult{}, err
	}
	aColumn, colIdx, ok := aTable.ColumnByName(stmt.IndexColumn)
	if !ok {
		return StatementResult{}, fmt.Errorf("%w: %q", ErrColumnNotFound, stmt.IndexColumn)
	}

	type pendingEntry struct {
		key   []byte
		value []byte
	}
	var entries []pendingEntry

	aCursor, err := aTable.tree.Scan(ctx, nil, nil, false)
	if err != nil {
		return StatementResult{}, err
	}
	for {
		primaryKey, record, err := aCursor.Next(ctx)
		if err == ErrNoMoreRows {
			break
		}
		if err != nil {
			return StatementResult{}, err
		}
		values, err := UnmarshalRecord(aTable.Columns, record)
		if err != nil {
			return StatementResult{}, err
		}
		if values[colIdx] == nil {
			continue
		}
		encoded, err := EncodeKeyValue(aColumn.Kind, values[colIdx])
		if err != nil {
			return StatementResult{}, err
		}
		entryKey := encoded
		if !stmt.IndexUnique {
			entryKey = append(encoded, primaryKey...)
		}
		entries = append(entries, pendingEntry{key: entryKey, value: primaryKey})
	}

	if stmt.IndexUnique {
		sorted := make([]pendingEntry, len(entries))
		copy(sorted, entries)
		sort.Slice(sorted, func(i, j int) bool {
			return bytes.Compare(sorted[i].key, sorted[j].key) < 0
		})
		for i := 1; i < len(sorted); i++ {
			if bytes.Equal(sorted[i].key, sorted[i-1].key) {
				return StatementResult{}, fmt.Errorf("%w: column %q has duplicate values", ErrConstraintViolation, stmt.IndexColumn)
			}
		}
	}

	anIndex, err := d.catalog.DefineIndex(ctx, stmt.TableName, stmt.IndexName, stmt.IndexColumn, stmt.IndexUnique, sql)
	if err != nil {
		return StatementResult{}, err
	}
	for _, anEntry := range entries {
		if err := anIndex.tree.Insert(ctx, anEntry.key, anEntry.value); err != nil {
			return StatementResult{}, fmt.Errorf("backfill index %q: %w", anIndex.Name, err)
		}
	}

	d.logger.Sugar().With("index", anIndex.Name, "entries", len(entries)).Debug("created index")
	return StatementResult{}, nil
}
