package reldb_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reldb/reldb/internal/parser"
	"github.com/reldb/reldb/internal/reldb"
)

func newTestDatabase(t *testing.T) *reldb.Database {
	t.Helper()
	aDatabase, _ := openTestDatabase(t, filepath.Join(t.TempDir(), "test.db"))
	return aDatabase
}

func openTestDatabase(t *testing.T, path string) (*reldb.Database, func()) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)

	aDatabase, err := reldb.OpenDatabase(context.Background(), zap.NewNop(), file, parser.New(), reldb.WithSyncWrites(false))
	require.NoError(t, err)

	closeAll := func() {
		require.NoError(t, aDatabase.Close())
		require.NoError(t, file.Close())
	}
	t.Cleanup(func() {
		file.Close()
	})
	return aDatabase, closeAll
}

func mustExecute(t *testing.T, aDatabase *reldb.Database, sql string) reldb.StatementResult {
	t.Helper()
	aResult, err := aDatabase.Execute(context.Background(), sql)
	require.NoError(t, err, "statement %q", sql)
	return aResult
}

func fetchAll(t *testing.T, aResult reldb.StatementResult) [][]any {
	t.Helper()
	require.NotNil(t, aResult.Rows)
	var rows [][]any
	for {
		aRow, err := aResult.Rows(context.Background())
		if err == reldb.ErrNoMoreRows {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, aRow.Values)
	}
}

func TestDatabase_CreateInsertSelect(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, age INT)")

	aResult := mustExecute(t, aDatabase, "INSERT INTO users VALUES (1, 'Alice', 30), (2, 'Bob', 25)")
	assert.Equal(t, 2, aResult.RowsAffected)

	aResult = mustExecute(t, aDatabase, "SELECT * FROM users")
	assert.Equal(t, []string{"id", "name", "age"}, aResult.Columns)
	rows := fetchAll(t, aResult)
	assert.Equal(t, [][]any{
		{int64(1), "Alice", int64(30)},
		{int64(2), "Bob", int64(25)},
	}, rows)

	aResult = mustExecute(t, aDatabase, "SELECT name FROM users WHERE id = 2")
	assert.Equal(t, []string{"name"}, aResult.Columns)
	assert.Equal(t, [][]any{{"Bob"}}, fetchAll(t, aResult))
}

func TestDatabase_DuplicatePrimaryKey(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1)")

	_, err := aDatabase.Execute(context.Background(), "INSERT INTO t VALUES (1)")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t"))
	assert.Len(t, rows, 1)
}

func TestDatabase_RangeQueryWithOrderBy(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (5), (3), (8), (1), (9), (2), (7)")

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t WHERE id > 2 AND id < 8 ORDER BY id"))
	assert.Equal(t, [][]any{{int64(3)}, {int64(5)}, {int64(7)}}, rows)

	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t WHERE id > 2 AND id < 8 ORDER BY id DESC"))
	assert.Equal(t, [][]any{{int64(7)}, {int64(5)}, {int64(3)}}, rows)

	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t ORDER BY id LIMIT 3"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
}

func TestDatabase_UpdateThenSelect(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1, 'a'), (2, 'b'), (3, 'c')")

	aResult := mustExecute(t, aDatabase, "UPDATE t SET name = 'z' WHERE id = 2")
	assert.Equal(t, 1, aResult.RowsAffected)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t WHERE name = 'z'"))
	assert.Equal(t, [][]any{{int64(2), "z"}}, rows)

	// The old value is gone
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t WHERE name = 'b'"))
	assert.Empty(t, rows)
}

func TestDatabase_UpdatePrimaryKeyMovesRow(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1, 'a'), (2, 'b')")

	mustExecute(t, aDatabase, "UPDATE t SET id = 9 WHERE id = 1")
	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t ORDER BY id"))
	assert.Equal(t, [][]any{{int64(2), "b"}, {int64(9), "a"}}, rows)

	// Moving onto an existing key is refused and changes nothing
	_, err := aDatabase.Execute(context.Background(), "UPDATE t SET id = 2 WHERE id = 9")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t ORDER BY id"))
	assert.Equal(t, [][]any{{int64(2), "b"}, {int64(9), "a"}}, rows)
}

func TestDatabase_DeleteRows(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1), (2), (3), (4)")

	aResult := mustExecute(t, aDatabase, "DELETE FROM t WHERE id > 2")
	assert.Equal(t, 2, aResult.RowsAffected)
	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t"))
	assert.Len(t, rows, 2)

	aResult = mustExecute(t, aDatabase, "DELETE FROM t")
	assert.Equal(t, 2, aResult.RowsAffected)
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t"))
	assert.Empty(t, rows)
}

func TestDatabase_NullSemantics(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY, age INT)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1, 30), (2, NULL), (3, 50)")

	// Rows with NULL age are neither matched nor mismatched
	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM t WHERE age > 20"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(3)}}, rows)

	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM t WHERE age != 30"))
	assert.Equal(t, [][]any{{int64(3)}}, rows)

	// Comparing against a NULL literal matches nothing
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM t WHERE age = NULL"))
	assert.Empty(t, rows)

	// But an OR branch can still rescue the row
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM t WHERE age > 20 OR id = 2"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
}

func TestDatabase_NotNullConstraint(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY, name TEXT NOT NULL)")

	_, err := aDatabase.Execute(context.Background(), "INSERT INTO t VALUES (1, NULL)")
	assert.ErrorIs(t, err, reldb.ErrSchemaMismatch)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM t"))
	assert.Empty(t, rows)
}

func TestDatabase_UniqueColumnCompensation(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE users (id INT PRIMARY KEY, email TEXT UNIQUE)")
	mustExecute(t, aDatabase, "INSERT INTO users VALUES (1, 'a@b.c')")

	// The unique index rejects the row; the primary record written before
	// the index entry must be gone as well
	_, err := aDatabase.Execute(context.Background(), "INSERT INTO users VALUES (2, 'a@b.c')")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM users WHERE id = 2"))
	assert.Empty(t, rows)
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM users"))
	assert.Len(t, rows, 1)

	// A different email is fine, and NULL never collides
	mustExecute(t, aDatabase, "INSERT INTO users VALUES (2, 'x@y.z')")
	mustExecute(t, aDatabase, "INSERT INTO users VALUES (3, NULL), (4, NULL)")
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM users"))
	assert.Len(t, rows, 4)
}

func TestDatabase_SecondaryIndexLookup(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE people (id INT PRIMARY KEY, city TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO people VALUES (1, 'Oslo'), (2, 'Prague'), (3, 'Oslo'), (4, 'Brno')")
	mustExecute(t, aDatabase, "CREATE INDEX people_city_idx ON people (city)")

	// Equal city values come back in insertion order
	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM people WHERE city = 'Oslo'"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(3)}}, rows)

	// Rows inserted after the index was built are indexed too
	mustExecute(t, aDatabase, "INSERT INTO people VALUES (5, 'Oslo')")
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM people WHERE city = 'Oslo'"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(3)}, {int64(5)}}, rows)

	// Updates move index entries
	mustExecute(t, aDatabase, "UPDATE people SET city = 'Brno' WHERE id = 3")
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM people WHERE city = 'Oslo'"))
	assert.Equal(t, [][]any{{int64(1)}, {int64(5)}}, rows)

	// Deletes remove them
	mustExecute(t, aDatabase, "DELETE FROM people WHERE city = 'Oslo'")
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM people WHERE city = 'Oslo'"))
	assert.Empty(t, rows)
}

func TestDatabase_UniqueIndexOnPopulatedTable(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY, code TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO t VALUES (1, 'a'), (2, 'b'), (3, 'a')")

	_, err := aDatabase.Execute(context.Background(), "CREATE UNIQUE INDEX t_code_key ON t (code)")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)

	mustExecute(t, aDatabase, "DELETE FROM t WHERE id = 3")
	mustExecute(t, aDatabase, "CREATE UNIQUE INDEX t_code_key ON t (code)")

	_, err = aDatabase.Execute(context.Background(), "INSERT INTO t VALUES (4, 'a')")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)
}

func TestDatabase_TableWithoutPrimaryKey(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE log (message TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO log VALUES ('first'), ('second'), ('third')")

	// Hidden row IDs keep insertion order
	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM log"))
	assert.Equal(t, [][]any{{"first"}, {"second"}, {"third"}}, rows)

	aResult := mustExecute(t, aDatabase, "DELETE FROM log WHERE message = 'second'")
	assert.Equal(t, 1, aResult.RowsAffected)
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM log"))
	assert.Equal(t, [][]any{{"first"}, {"third"}}, rows)
}

func TestDatabase_RealCoercionAndTypes(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE m (id INT PRIMARY KEY, score REAL, ok BOOLEAN)")
	mustExecute(t, aDatabase, "INSERT INTO m VALUES (1, 2, TRUE), (2, 2.5, FALSE), (3, -0.5, TRUE)")

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT score FROM m WHERE id = 1"))
	assert.Equal(t, [][]any{{2.0}}, rows)

	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM m WHERE score > 0 AND ok = TRUE"))
	assert.Equal(t, [][]any{{int64(1)}}, rows)

	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM m WHERE score < 0"))
	assert.Equal(t, [][]any{{int64(3)}}, rows)
}

func TestDatabase_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "test.db")
	aDatabase, closeAll := openTestDatabase(t, path)

	mustExecute(t, aDatabase, "CREATE TABLE users (id INT PRIMARY KEY, email TEXT UNIQUE, name TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO users VALUES (1, 'a@b.c', 'Alice'), (2, 'b@c.d', 'Bob')")
	closeAll()

	reopened, closeAll := openTestDatabase(t, path)
	defer closeAll()

	assert.Equal(t, []string{"users"}, reopened.TableNames())
	rows := fetchAll(t, mustExecute(t, reopened, "SELECT name FROM users ORDER BY id"))
	assert.Equal(t, [][]any{{"Alice"}, {"Bob"}}, rows)

	// The unique index survived too
	_, err := reopened.Execute(context.Background(), "INSERT INTO users VALUES (3, 'a@b.c', 'Eve')")
	assert.ErrorIs(t, err, reldb.ErrConstraintViolation)
}

func TestDatabase_BulkRoundTrip(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE users (id INT PRIMARY KEY, name TEXT, age INT)")

	gen := gofakeit.New(42)
	total := 500
	for i := 0; i < total; i++ {
		name := strings.ReplaceAll(gen.Name(), "'", "''")
		sql := fmt.Sprintf("INSERT INTO users VALUES (%d, '%s', %d)", i, name, gen.Number(18, 100))
		mustExecute(t, aDatabase, sql)
	}

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM users ORDER BY id"))
	require.Len(t, rows, total)
	for i, aRow := range rows {
		assert.Equal(t, int64(i), aRow[0])
	}

	aResult := mustExecute(t, aDatabase, "DELETE FROM users WHERE id >= 250")
	assert.Equal(t, 250, aResult.RowsAffected)
	rows = fetchAll(t, mustExecute(t, aDatabase, "SELECT id FROM users"))
	assert.Len(t, rows, 250)
}

func TestDatabase_Errors(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	ctx := context.Background()

	_, err := aDatabase.Execute(ctx, "SELECT * FROM missing")
	assert.ErrorIs(t, err, reldb.ErrTableNotFound)

	mustExecute(t, aDatabase, "CREATE TABLE t (id INT PRIMARY KEY)")
	_, err = aDatabase.Execute(ctx, "SELECT nope FROM t")
	assert.ErrorIs(t, err, reldb.ErrColumnNotFound)

	_, err = aDatabase.Execute(ctx, "UPDATE t SET nope = 1")
	assert.ErrorIs(t, err, reldb.ErrColumnNotFound)

	_, err = aDatabase.Execute(ctx, "CREATE TABLE t (id INT)")
	assert.ErrorIs(t, err, reldb.ErrTableExists)

	_, err = aDatabase.Execute(ctx, "INSERT INTO t VALUES ('text')")
	assert.ErrorIs(t, err, reldb.ErrSchemaMismatch)
}

func TestDatabase_OversizedUpdateLeavesRowIntact(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE docs (id INT PRIMARY KEY, body TEXT)")
	mustExecute(t, aDatabase, "INSERT INTO docs VALUES (3, 'a')")

	// The rewritten record exceeds the leaf entry budget; the statement
	// must fail without touching the stored row
	sql := fmt.Sprintf("UPDATE docs SET body = '%s' WHERE id = 3", strings.Repeat("x", 600))
	_, err := aDatabase.Execute(context.Background(), sql)
	require.ErrorIs(t, err, reldb.ErrEntryTooLarge)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM docs WHERE id = 3"))
	assert.Equal(t, [][]any{{int64(3), "a"}}, rows)
}

func TestDatabase_OversizedIndexEntryLeavesRowIntact(t *testing.T) {
	t.Parallel()

	aDatabase := newTestDatabase(t)
	mustExecute(t, aDatabase, "CREATE TABLE users (id INT PRIMARY KEY, email TEXT UNIQUE)")
	mustExecute(t, aDatabase, "INSERT INTO users VALUES (1, 'a@example.com')")

	// Fits the primary tree but not the narrower index tree, so the
	// rejection must happen before either tree is mutated
	sql := fmt.Sprintf("UPDATE users SET email = '%s' WHERE id = 1", strings.Repeat("x", 300))
	_, err := aDatabase.Execute(context.Background(), sql)
	require.ErrorIs(t, err, reldb.ErrEntryTooLarge)

	rows := fetchAll(t, mustExecute(t, aDatabase, "SELECT * FROM users WHERE email = 'a@example.com'"))
	assert.Equal(t, [][]any{{int64(1), "a@example.com"}}, rows)
}
