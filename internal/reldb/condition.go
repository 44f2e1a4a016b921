package reldb

import (
	"fmt"
	"strings"
)

type CompareOp int

const (
	Eq CompareOp = iota + 1
	Ne
	Lt
	Gt
	Le
	Ge
)

func (o CompareOp) String() string {
	switch o {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Le:
		return "<="
	case Ge:
		return ">="
	}
	return "unknown"
}

// Operand is one side of a comparison, either a column reference or a
// literal value (int64, float64, string, bool or nil).
type Operand struct {
	Column   string
	Literal  any
	IsColumn bool
}

// Expr is a WHERE clause tree. The concrete types are Comparison, And
// and Or.
//
// Evaluation follows SQL three valued logic: a comparison against NULL is
// neither true nor false, and unknown results propagate through AND and
// OR the usual way. A row is kept only when the whole tree comes out
// true.
type Expr interface {
	// Evaluate returns (true, false) for a match, (false, false) for a
	// non-match and (_, true) for unknown.
	Evaluate(row Row) (bool, bool, error)
}

type Comparison struct {
	Left  Operand
	Right Operand
	Op    CompareOp
}

type And struct {
	Left  Expr
	Right Expr
}

type Or struct {
	Left  Expr
	Right Expr
}

func (o Operand) resolve(row Row) (any, error) {
	if !o.IsColumn {
		return o.Literal, nil
	}
	value, ok := row.ColumnValue(o.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, o.Column)
	}
	return value, nil
}

func (c Comparison) Evaluate(row Row) (bool, bool, error) {
	left, err := c.Left.resolve(row)
	if err != nil {
		return false, false, err
	}
	right, err := c.Right.resolve(row)
	if err != nil {
		return false, false, err
	}
	if left == nil || right == nil {
		return false, true, nil
	}

	cmp, err := compareValues(left, right)
	if err != nil {
		return false, false, err
	}
	switch c.Op {
	case Eq:
		return cmp == 0, false, nil
	case Ne:
		return cmp != 0, false, nil
	case Lt:
		return cmp < 0, false, nil
	case Gt:
		return cmp > 0, false, nil
	case Le:
		return cmp <= 0, false, nil
	case Ge:
		return cmp >= 0, false, nil
	}
	return false, false, fmt.Errorf("unknown comparison operator %d", c.Op)
}

func (a And) Evaluate(row Row) (bool, bool, error) {
	leftMatch, leftNull, err := a.Left.Evaluate(row)
	if err != nil {
		return false, false, err
	}
	if !leftNull && !leftMatch {
		return false, false, nil
	}
	rightMatch, rightNull, err := a.Right.Evaluate(row)
	if err != nil {
		return false, false, err
	}
	if !rightNull && !rightMatch {
		return false, false, nil
	}
	if leftNull || rightNull {
		return false, true, nil
	}
	return true, false, nil
}

func (o Or) Evaluate(row Row) (bool, bool, error) {
	leftMatch, leftNull, err := o.Left.Evaluate(row)
	if err != nil {
		return false, false, err
	}
	if !leftNull && leftMatch {
		return true, false, nil
	}
	rightMatch, rightNull, err := o.Right.Evaluate(row)
	if err != nil {
		return false, false, err
	}
	if !rightNull && rightMatch {
		return true, false, nil
	}
	if leftNull || rightNull {
		return false, true, nil
	}
	return false, false, nil
}

// compareValues orders two non-null values, coercing int64 against
// float64 so mixed numeric comparisons behave.
func compareValues(left, right any) (int, error) {
	switch l := left.(type) {
	case int64:
		switch r := right.(type) {
		case int64:
			return compareOrdered(l, r), nil
		case float64:
			return compareOrdered(float64(l), r), nil
		}
	case float64:
		switch r := right.(type) {
		case int64:
			return compareOrdered(l, float64(r)), nil
		case float64:
			return compareOrdered(l, r), nil
		}
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	case bool:
		if r, ok := right.(bool); ok {
			if l == r {
				return 0, nil
			}
			if !l {
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrSchemaMismatch, left, right)
}

func compareOrdered[T int64 | float64](l, r T) int {
	if l < r {
		return -1
	}
	if l > r {
		return 1
	}
	return 0
}
