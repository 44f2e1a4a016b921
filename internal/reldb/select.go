package reldb

import (
	"context"
	"fmt"
	"sort"
)

// executeSelect plans the statement, streams matching rows through the
// optional sort and limit, and projects the requested fields.
func (d *Database) executeSelect(ctx context.Context, stmt Statement) (StatementResult, error) {
	aTable, err := d.catalog.LookupTable(stmt.TableName)
	if err != nil {
		return StatementResult{}, err
	}

	fields, fieldIdx, err := resolveProjection(aTable, stmt.Fields)
	if err != nil {
		return StatementResult{}, err
	}

	plan := planQuery(d.logger, aTable, stmt)
	iterate, err := d.scanRows(ctx, aTable, plan)
	if err != nil {
		return StatementResult{}, err
	}

	if plan.SortInMemory {
		if iterate, err = sortRows(ctx, aTable, plan, iterate); err != nil {
			return StatementResult{}, err
		}
	}
	if stmt.HasLimit {
		iterate = limitRows(iterate, stmt.Limit)
	}
	iterate = projectRows(iterate, fieldIdx)

	return StatementResult{
		Columns: fields,
		Rows:    iterate,
	}, nil
}

// resolveProjection maps the field list to column positions; a nil list
// means every column in schema order.
func resolveProjection(aTable *Table, fields []string) ([]string, []int, error) {
	if fields == nil {
		names := make([]string, 0, len(aTable.Columns))
		idx := make([]int, 0, len(aTable.Columns))
		for i, aColumn := range aTable.Columns {
			names = append(names, aColumn.Name)
			idx = append(idx, i)
		}
		return names, idx, nil
	}
	idx := make([]int, 0, len(fields))
	for _, field := range fields {
		_, i, ok := aTable.ColumnByName(field)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrColumnNotFound, field)
		}
		idx = append(idx, i)
	}
	return fields, idx, nil
}

// scanRows turns a query plan into a stream of filtered rows.
func (d *Database) scanRows(ctx context.Context, aTable *Table, plan queryPlan) (RowIterator, error) {
	if plan.Type == scanIndexPoint {
		return d.scanViaIndex(ctx, aTable, plan)
	}

	aCursor, err := aTable.tree.Scan(ctx, plan.Low, plan.High, plan.Reverse)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Row, error) {
		for {
			key, value, err := aCursor.Next(ctx)
			if err != nil {
				return Row{}, err
			}
			aRow, keep, err := decodeAndFilter(aTable, plan.Filter, key, value)
			if err != nil {
				return Row{}, err
			}
			if keep {
				return aRow, nil
			}
		}
	}, nil
}

// scanViaIndex walks index entries and resolves each primary key against
// the table tree.
func (d *Database) scanViaIndex(ctx context.Context, aTable *Table, plan queryPlan) (RowIterator, error) {
	aCursor, err := plan.Index.tree.Scan(ctx, plan.Low, plan.High, plan.Reverse)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (Row, error) {
		for {
			_, primaryKey, err := aCursor.Next(ctx)
			if err != nil {
				return Row{}, err
			}
			value, err := aTable.tree.Search(ctx, primaryKey)
			if err != nil {
				return Row{}, fmt.Errorf("index %q points at missing row: %w", plan.Index.Name, err)
			}
			aRow, keep, err := decodeAndFilter(aTable, plan.Filter, primaryKey, value)
			if err != nil {
				return Row{}, err
			}
			if keep {
				return aRow, nil
			}
		}
	}, nil
}

func decodeAndFilter(aTable *Table, filter Expr, key, value []byte) (Row, bool, error) {
	values, err := UnmarshalRecord(aTable.Columns, value)
	if err != nil {
		return Row{}, false, err
	}
	aRow := Row{
		Columns: aTable.Columns,
		Values:  values,
		Key:     key,
	}
	if filter == nil {
		return aRow, true, nil
	}
	matched, null, err := filter.Evaluate(aRow)
	if err != nil {
		return Row{}, false, err
	}
	return aRow, matched && !null, nil
}

// sortRows materialises the stream and orders it by the sort column.
// NULL sorts before every value.
func sortRows(ctx context.Context, aTable *Table, plan queryPlan, iterate RowIterator) (RowIterator, error) {
	if _, _, ok := aTable.ColumnByName(plan.SortColumn); !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, plan.SortColumn)
	}
	rows, err := materializeRows(ctx, iterate)
	if err != nil {
		return nil, err
	}

	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		left, _ := rows[i].ColumnValue(plan.SortColumn)
		right, _ := rows[j].ColumnValue(plan.SortColumn)
		cmp, err := compareNullable(left, right)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if plan.SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}

	idx := 0
	return func(ctx context.Context) (Row, error) {
		if idx >= len(rows) {
			return Row{}, ErrNoMoreRows
		}
		aRow := rows[idx]
		idx += 1
		return aRow, nil
	}, nil
}

func compareNullable(left, right any) (int, error) {
	switch {
	case left == nil && right == nil:
		return 0, nil
	case left == nil:
		return -1, nil
	case right == nil:
		return 1, nil
	}
	return compareValues(left, right)
}

func materializeRows(ctx context.Context, iterate RowIterator) ([]Row, error) {
	var rows []Row
	for {
		aRow, err := iterate(ctx)
		if err == ErrNoMoreRows {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, aRow)
	}
}

func limitRows(iterate RowIterator, limit int64) RowIterator {
	remaining := limit
	return func(ctx context.Context) (Row, error) {
		if remaining <= 0 {
			return Row{}, ErrNoMoreRows
		}
		aRow, err := iterate(ctx)
		if err != nil {
			return Row{}, err
		}
		remaining -= 1
		return aRow, nil
	}
}

func projectRows(iterate RowIterator, fieldIdx []int) RowIterator {
	return func(ctx context.Context) (Row, error) {
		aRow, err := iterate(ctx)
		if err != nil {
			return Row{}, err
		}
		columns := make([]Column, 0, len(fieldIdx))
		values := make([]any, 0, len(fieldIdx))
		for _, i := range fieldIdx {
			columns = append(columns, aRow.Columns[i])
			values = append(values, aRow.Values[i])
		}
		return Row{Columns: columns, Values: values, Key: aRow.Key}, nil
	}
}
