package reldb

import (
	"bytes"

	"go.uber.org/zap"
)

type scanType int

const (
	// scanSequential walks the whole primary tree in key order.
	scanSequential scanType = iota + 1
	// scanPrimaryPoint looks up a single primary key.
	scanPrimaryPoint
	// scanPrimaryRange walks a bounded slice of the primary tree.
	scanPrimaryRange
	// scanIndexPoint resolves primary keys through a secondary index.
	scanIndexPoint
)

func (s scanType) String() string {
	switch s {
	case scanSequential:
		return "sequential"
	case scanPrimaryPoint:
		return "primary point"
	case scanPrimaryRange:
		return "primary range"
	case scanIndexPoint:
		return "index point"
	}
	return "unknown"
}

// queryPlan describes how a statement's matching rows will be found. The
// access path only narrows the candidate set; Filter is always the whole
// WHERE clause, re-evaluated per row, so bounds may be conservative.
type queryPlan struct {
	Type  scanType
	Index *IndexInfo

	// Inclusive tree bounds; nil means unbounded. For index scans these
	// bound the index tree, otherwise the primary tree.
	Low  []byte
	High []byte

	Reverse bool
	Filter  Expr

	SortColumn   string
	SortDesc     bool
	SortInMemory bool
}

// conjunct is a comparison normalised to column OP literal.
type conjunct struct {
	column  string
	op      CompareOp
	literal any
}

// extractConjuncts flattens a pure AND tree of comparisons. Any OR, or any
// comparison not of the column/literal shape, makes the clause unusable
// for access path selection and returns nil.
func extractConjuncts(expr Expr) []conjunct {
	switch e := expr.(type) {
	case And:
		left := extractConjuncts(e.Left)
		if left == nil {
			return nil
		}
		right := extractConjuncts(e.Right)
		if right == nil {
			return nil
		}
		return append(left, right...)
	case Comparison:
		if e.Left.IsColumn && !e.Right.IsColumn {
			return []conjunct{{column: e.Left.Column, op: e.Op, literal: e.Right.Literal}}
		}
		if !e.Left.IsColumn && e.Right.IsColumn {
			return []conjunct{{column: e.Right.Column, op: flipOp(e.Op), literal: e.Left.Literal}}
		}
		return nil
	default:
		return nil
	}
}

func flipOp(op CompareOp) CompareOp {
	switch op {
	case Lt:
		return Gt
	case Gt:
		return Lt
	case Le:
		return Ge
	case Ge:
		return Le
	}
	return op
}

// planQuery picks an access path for a SELECT, UPDATE or DELETE. Order of
// preference: primary key point lookup, secondary index point lookup,
// primary key range, full scan.
func planQuery(logger *zap.Logger, aTable *Table, stmt Statement) queryPlan {
	plan := queryPlan{
		Type:       scanSequential,
		Filter:     stmt.Where,
		SortColumn: stmt.OrderBy,
		SortDesc:   stmt.OrderDesc,
	}

	if stmt.Where != nil {
		if conjuncts := extractConjuncts(stmt.Where); len(conjuncts) > 0 {
			choosePath(&plan, aTable, conjuncts)
		}
	}

	// ORDER BY on the primary key column rides a primary tree scan for
	// free; anything else sorts in memory.
	if stmt.OrderBy != "" {
		ridesScan := stmt.OrderBy == aTable.PrimaryKey && plan.Type != scanIndexPoint
		if ridesScan {
			plan.Reverse = stmt.OrderDesc
		} else {
			plan.SortInMemory = true
		}
	}

	logger.Sugar().With("table", aTable.Name, "scan", plan.Type.String()).Debug("planned query")
	return plan
}

func choosePath(plan *queryPlan, aTable *Table, conjuncts []conjunct) {
	pkColumn, _, hasPK := aTable.ColumnByName(aTable.PrimaryKey)

	// Primary key equality wins outright
	if hasPK {
		for _, aConjunct := range conjuncts {
			if aConjunct.column != aTable.PrimaryKey || aConjunct.op != Eq || aConjunct.literal == nil {
				continue
			}
			key := encodeBound(pkColumn.Kind, aConjunct.literal)
			if key == nil {
				continue // type mismatch never matches, leave it to the filter
			}
			plan.Type = scanPrimaryPoint
			plan.Low, plan.High = key, key
			return
		}
	}

	// Then equality through a secondary index
	for _, aConjunct := range conjuncts {
		if aConjunct.op != Eq || aConjunct.literal == nil {
			continue
		}
		anIndex, ok := aTable.IndexOnColumn(aConjunct.column)
		if !ok {
			continue
		}
		aColumn, _, _ := aTable.ColumnByName(aConjunct.column)
		prefix := encodeBound(aColumn.Kind, aConjunct.literal)
		if prefix == nil {
			continue
		}
		plan.Type = scanIndexPoint
		plan.Index = anIndex
		plan.Low = prefix
		if anIndex.Unique {
			plan.High = prefix
		} else {
			// Non-unique entries append the primary key, so every match is
			// strictly longer than the prefix and below its successor.
			plan.High = prefixSuccessor(prefix)
		}
		return
	}

	// Then primary key range bounds. Strict bounds stay inclusive here;
	// the row filter enforces strictness.
	if hasPK {
		var low, high []byte
		for _, aConjunct := range conjuncts {
			if aConjunct.column != aTable.PrimaryKey || aConjunct.literal == nil {
				continue
			}
			bound := encodeBound(pkColumn.Kind, aConjunct.literal)
			if bound == nil {
				continue
			}
			switch aConjunct.op {
			case Gt, Ge:
				if low == nil || bytes.Compare(bound, low) > 0 {
					low = bound
				}
			case Lt, Le:
				if high == nil || bytes.Compare(bound, high) < 0 {
					high = bound
				}
			}
		}
		if low != nil || high != nil {
			plan.Type = scanPrimaryRange
			plan.Low, plan.High = low, high
		}
	}
}

// encodeBound encodes a literal as a key bound, coercing int literals for
// real columns. A literal whose type cannot index the column returns nil.
func encodeBound(kind ColumnKind, literal any) []byte {
	if kind == Real {
		if v, ok := literal.(int64); ok {
			literal = float64(v)
		}
	}
	key, err := EncodeKeyValue(kind, literal)
	if err != nil {
		return nil
	}
	return key
}

// prefixSuccessor returns the smallest byte string greater than every
// string starting with the prefix.
func prefixSuccessor(prefix []byte) []byte {
	successor := append([]byte(nil), prefix...)
	for i := len(successor) - 1; i >= 0; i-- {
		if successor[i] != 0xFF {
			successor[i] += 1
			return successor[:i+1]
		}
	}
	return nil // all 0xFF, unbounded above
}
