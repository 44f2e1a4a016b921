package reldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRow(values ...any) Row {
	return Row{Columns: testColumns, Values: values}
}

func column(name string) Operand {
	return Operand{Column: name, IsColumn: true}
}

func literal(value any) Operand {
	return Operand{Literal: value}
}

func TestComparison_Operators(t *testing.T) {
	t.Parallel()

	aRow := testRow(int64(5), "a@b.c", "Alice", int64(30), 2.5, true)

	testCases := []struct {
		name    string
		expr    Expr
		matched bool
	}{
		{"eq match", Comparison{column("id"), literal(int64(5)), Eq}, true},
		{"eq miss", Comparison{column("id"), literal(int64(6)), Eq}, false},
		{"ne", Comparison{column("id"), literal(int64(6)), Ne}, true},
		{"lt", Comparison{column("id"), literal(int64(6)), Lt}, true},
		{"gt", Comparison{column("id"), literal(int64(4)), Gt}, true},
		{"le boundary", Comparison{column("id"), literal(int64(5)), Le}, true},
		{"ge miss", Comparison{column("id"), literal(int64(6)), Ge}, false},
		{"text eq", Comparison{column("name"), literal("Alice"), Eq}, true},
		{"text lt", Comparison{column("name"), literal("Bob"), Lt}, true},
		{"bool eq", Comparison{column("verified"), literal(true), Eq}, true},
		{"literal on the left", Comparison{literal(int64(6)), column("id"), Gt}, true},
		{"int against real column", Comparison{column("balance"), literal(int64(2)), Gt}, true},
		{"real against int column", Comparison{column("id"), literal(4.5), Gt}, true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			matched, null, err := tc.expr.Evaluate(aRow)
			require.NoError(t, err)
			assert.False(t, null)
			assert.Equal(t, tc.matched, matched)
		})
	}
}

func TestComparison_NullIsUnknown(t *testing.T) {
	t.Parallel()

	aRow := testRow(int64(5), nil, nil, nil, nil, nil)

	for _, op := range []CompareOp{Eq, Ne, Lt, Gt, Le, Ge} {
		_, null, err := Comparison{column("age"), literal(int64(30)), op}.Evaluate(aRow)
		require.NoError(t, err)
		assert.True(t, null, "op %s against NULL should be unknown", op)
	}

	// A NULL literal is unknown even against a non NULL column
	_, null, err := Comparison{column("id"), literal(nil), Eq}.Evaluate(aRow)
	require.NoError(t, err)
	assert.True(t, null)
}

func TestComparison_Errors(t *testing.T) {
	t.Parallel()

	aRow := testRow(int64(5), "a@b.c", "Alice", int64(30), 2.5, true)

	_, _, err := Comparison{column("nope"), literal(int64(1)), Eq}.Evaluate(aRow)
	assert.ErrorIs(t, err, ErrColumnNotFound)

	_, _, err = Comparison{column("name"), literal(int64(1)), Eq}.Evaluate(aRow)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestAndOr_ThreeValuedLogic(t *testing.T) {
	t.Parallel()

	aRow := testRow(int64(5), nil, "Alice", nil, nil, nil)

	isTrue := Comparison{column("id"), literal(int64(5)), Eq}
	isFalse := Comparison{column("id"), literal(int64(6)), Eq}
	isUnknown := Comparison{column("age"), literal(int64(30)), Eq}

	testCases := []struct {
		name    string
		expr    Expr
		matched bool
		null    bool
	}{
		{"true and true", And{isTrue, isTrue}, true, false},
		{"true and false", And{isTrue, isFalse}, false, false},
		{"true and unknown", And{isTrue, isUnknown}, false, true},
		{"false and unknown", And{isFalse, isUnknown}, false, false},
		{"unknown and false", And{isUnknown, isFalse}, false, false},
		{"true or unknown", Or{isTrue, isUnknown}, true, false},
		{"unknown or true", Or{isUnknown, isTrue}, true, false},
		{"false or unknown", Or{isFalse, isUnknown}, false, true},
		{"unknown or unknown", Or{isUnknown, isUnknown}, false, true},
		{"false or false", Or{isFalse, isFalse}, false, false},
		{"nested", And{Or{isFalse, isTrue}, isTrue}, true, false},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			matched, null, err := tc.expr.Evaluate(aRow)
			require.NoError(t, err)
			assert.Equal(t, tc.null, null)
			assert.Equal(t, tc.matched, matched)
		})
	}
}
