package reldb

import (
	"context"
	"fmt"
)

// executeDelete materialises the matching rows, then removes each one
// from the secondary indexes before the primary tree.
func (d *Database) executeDelete(ctx context.Context, stmt Statement) (StatementResult, error) {
	aTable, err := d.catalog.LookupTable(stmt.TableName)
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

	deleted := 0
	for _, aRow := range rows {
		for _, anIndex := range aTable.Indexes {
			entryKey, _, skip, err := indexEntry(aTable, anIndex, aRow.Values, aRow.Key)
			if err != nil {
				return StatementResult{RowsAffected: deleted}, err
			}
			if skip {
				continue
			}
			if err := anIndex.tree.Delete(ctx, entryKey); err != nil {
				return StatementResult{RowsAffected: deleted}, fmt.Errorf("index %q: %w", anIndex.Name, err)
			}
		}
		if err := aTable.tree.Delete(ctx, aRow.Key); err != nil {
			return StatementResult{RowsAffected: deleted}, err
		}
		deleted += 1
	}

	d.logger.Sugar().With("table", aTable.Name, "rows", deleted).Debug("deleted rows")
	return StatementResult{RowsAffected: deleted}, nil
}
