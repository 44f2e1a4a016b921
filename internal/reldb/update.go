package reldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// executeUpdate materialises the matching rows first, then rewrites them,
// so the scan never observes its own writes. A row whose primary key
// changes is moved; otherwise the record is rewritten in place under the
// same key.
func (d *Database) executeUpdate(ctx context.Context, stmt Statement) (StatementResult, error) {
	aTable, err := d.catalog.LookupTable(stmt.TableName)
	if err != nil {
		return StatementResult{}, err
	}
	updates, err := coerceUpdates(aTable, stmt.Updates)
	if err != nil {
		return StatementResult{}, err
	}

	plan := planQuery(d.logger, aTable, stmt)
	iterate, err := d.scanRows(ctx, aTable, plan)
	if err != nil {
		return StatementResult{}, err
	}
	rows, err := materializeRows(ctx, iterate)
	if err != nil {
		return StatementResult{}, err
	}

	updated := 0
	for _, aRow := range rows {
		if err := d.updateRow(ctx, aTable, aRow, updates); err != nil {
			return StatementResult{RowsAffected: updated}, err
		}
		updated += 1
	}

	d.logger.Sugar().With("table", aTable.Name, "rows", updated).Debug("updated rows")
	return StatementResult{RowsAffected: updated}, nil
}

func coerceUpdates(aTable *Table, updates map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(updates))
	for name, value := range updates {
		aColumn, _, ok := aTable.ColumnByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		coerced[name] = coerceValue(aColumn.Kind, value)
	}
	return coerced, nil
}

func (d *Database) updateRow(ctx context.Context, aTable *Table, aRow Row, updates map[string]any) error {
	newValues := make([]any, len(aRow.Values))
	copy(newValues, aRow.Values)
	for i, aColumn := range aTable.Columns {
		if value, ok := updates[aColumn.Name]; ok {
			newValues[i] = value
		}
	}

	record, err := MarshalRecord(aTable.Columns, newValues)
	if err != nil {
		return err
	}

	oldKey := aRow.Key
	newKey := oldKey
	if aTable.PrimaryKey != "" {
		if _, ok := updates[aTable.PrimaryKey]; ok {
			pkColumn, pkIdx, _ := aTable.ColumnByName(aTable.PrimaryKey)
			if newValues[pkIdx] == nil {
				return fmt.Errorf("%w: primary key %q cannot be NULL", ErrConstraintViolation, aTable.PrimaryKey)
			}
			if newKey, err = EncodeKeyValue(pkColumn.Kind, newValues[pkIdx]); err != nil {
				return err
			}
		}
	}
	keyChanged := !bytes.Equal(oldKey, newKey)

	// Check unique indexes before touching anything
	for _, anIndex := range aTable.Indexes {
		if !anIndex.Unique {
			continue
		}
		aColumn, idx, _ := aTable.ColumnByName(anIndex.Column)
		changed, err := compareNullable(aRow.Values[idx], newValues[idx])
		if err != nil {
			return err
		}
		if changed == 0 || newValues[idx] == nil {
			continue
		}
		entryKey, err := EncodeKeyValue(aColumn.Kind, newValues[idx])
		if err != nil {
			return err
		}
		if _, err := anIndex.tree.Search(ctx, entryKey); err == nil {
			return fmt.Errorf("%w: duplicate value for unique index %q", ErrConstraintViolation, anIndex.Name)
		} else if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
	}
	if keyChanged {
		if _, err := aTable.tree.Search(ctx, newKey); err == nil {
			return fmt.Errorf("%w: duplicate primary key in table %q", ErrConstraintViolation, aTable.Name)
		} else if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
	}

	// Size check every entry the rewrite will insert before any tree is
	// mutated, so a rejected row is left exactly as it was.
	if err := aTable.tree.CheckEntry(newKey, record); err != nil {
		return err
	}
	type indexRewrite struct {
		index            *IndexInfo
		oldKey, newKey   []byte
		oldSkip, newSkip bool
	}
	rewrites := make([]indexRewrite, 0, len(aTable.Indexes))
	for _, anIndex := range aTable.Indexes {
		oldEntryKey, _, oldSkip, err := indexEntry(aTable, anIndex, aRow.Values, oldKey)
		if err != nil {
			return err
		}
		newEntryKey, _, newSkip, err := indexEntry(aTable, anIndex, newValues, newKey)
		if err != nil {
			return err
		}
		if !oldSkip && !newSkip && bytes.Equal(oldEntryKey, newEntryKey) && !keyChanged {
			continue
		}
		if !newSkip {
			if err := anIndex.tree.CheckEntry(newEntryKey, newKey); err != nil {
				return fmt.Errorf("index %q: %w", anIndex.Name, err)
			}
		}
		rewrites = append(rewrites, indexRewrite{
			index:   anIndex,
			oldKey:  oldEntryKey,
			newKey:  newEntryKey,
			oldSkip: oldSkip,
			newSkip: newSkip,
		})
	}

	if keyChanged {
		if err := aTable.tree.Delete(ctx, oldKey); err != nil {
			return err
		}
		if err := aTable.tree.Insert(ctx, newKey, record); err != nil {
			return err
		}
	} else {
		if err := aTable.tree.Update(ctx, oldKey, record); err != nil {
			return err
		}
	}

	for _, aRewrite := range rewrites {
		if !aRewrite.oldSkip {
			if err := aRewrite.index.tree.Delete(ctx, aRewrite.oldKey); err != nil {
				return fmt.Errorf("index %q: %w", aRewrite.index.Name, err)
			}
		}
		if !aRewrite.newSkip {
			if err := aRewrite.index.tree.Insert(ctx, aRewrite.newKey, newKey); err != nil {
				return fmt.Errorf("index %q: %w", aRewrite.index.Name, err)
			}
		}
	}

	return nil
}
