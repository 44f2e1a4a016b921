package reldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cannedParser returns pre-baked statements keyed by their DDL text, which
// is all the catalog needs to rebuild schemas.
type cannedParser struct {
	statements map[string]Statement
}

func (p *cannedParser) Parse(ctx context.Context, sql string) (Statement, error) {
	stmt, ok := p.statements[sql]
	if !ok {
		return Statement{}, fmt.Errorf("unexpected DDL %q", sql)
	}
	return stmt, nil
}

func usersDDL() (string, Statement) {
	ddl := "CREATE TABLE users (id INT PRIMARY KEY, name TEXT)"
	return ddl, Statement{
		Kind:      CreateTable,
		TableName: "users",
		Columns: []Column{
			{Name: "id", Kind: Int, PrimaryKey: true},
			{Name: "name", Kind: Text, Nullable: true},
		},
	}
}

func nameIndexDDL() (string, Statement) {
	ddl := "CREATE INDEX users_name_idx ON users (name)"
	return ddl, Statement{
		Kind:        CreateIndex,
		TableName:   "users",
		IndexName:   "users_name_idx",
		IndexColumn: "name",
	}
}

func newCannedParser() *cannedParser {
	p := &cannedParser{statements: make(map[string]Statement)}
	ddl, stmt := usersDDL()
	p.statements[ddl] = stmt
	ddl, stmt = nameIndexDDL()
	p.statements[ddl] = stmt
	return p
}

func TestCatalog_DefineAndLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager := newTestPager(t)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	_, err = aCatalog.LookupTable("users")
	assert.ErrorIs(t, err, ErrTableNotFound)

	ddl, stmt := usersDDL()
	aTable, err := aCatalog.DefineTable(ctx, "users", stmt.Columns, ddl)
	require.NoError(t, err)
	assert.Equal(t, "id", aTable.PrimaryKey)
	assert.NotZero(t, aTable.RootPage)

	found, err := aCatalog.LookupTable("users")
	require.NoError(t, err)
	assert.Same(t, aTable, found)

	_, err = aCatalog.DefineTable(ctx, "users", stmt.Columns, ddl)
	assert.ErrorIs(t, err, ErrTableExists)

	assert.Equal(t, []string{"users"}, aCatalog.TableNames())
}

func TestCatalog_ReservedAndInvalidTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager := newTestPager(t)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	_, err = aCatalog.DefineTable(ctx, CatalogTableName, testColumns, "ddl")
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = aCatalog.DefineTable(ctx, "empty", nil, "ddl")
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestCatalog_DefineIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager := newTestPager(t)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	tableDDL, tableStmt := usersDDL()
	aTable, err := aCatalog.DefineTable(ctx, "users", tableStmt.Columns, tableDDL)
	require.NoError(t, err)

	indexDDL, indexStmt := nameIndexDDL()
	anIndex, err := aCatalog.DefineIndex(ctx, "users", indexStmt.IndexName, indexStmt.IndexColumn, false, indexDDL)
	require.NoError(t, err)
	assert.Equal(t, "name", anIndex.Column)

	found, ok := aTable.IndexByName(indexStmt.IndexName)
	require.True(t, ok)
	assert.Same(t, anIndex, found)

	_, err = aCatalog.DefineIndex(ctx, "users", indexStmt.IndexName, "name", false, indexDDL)
	assert.ErrorIs(t, err, ErrIndexExists)

	_, err = aCatalog.DefineIndex(ctx, "missing", "idx", "name", false, "ddl")
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = aCatalog.DefineIndex(ctx, "users", "idx2", "missing_column", false, "ddl")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestCatalog_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	file, err := os.Create(path)
	require.NoError(t, err)

	aPager, err := OpenPager(zap.NewNop(), file, WithSyncWrites(false))
	require.NoError(t, err)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	tableDDL, tableStmt := usersDDL()
	aTable, err := aCatalog.DefineTable(ctx, "users", tableStmt.Columns, tableDDL)
	require.NoError(t, err)
	indexDDL, indexStmt := nameIndexDDL()
	_, err = aCatalog.DefineIndex(ctx, "users", indexStmt.IndexName, indexStmt.IndexColumn, false, indexDDL)
	require.NoError(t, err)

	require.NoError(t, aPager.Close())
	require.NoError(t, file.Close())

	file, err = os.OpenFile(path, os.O_RDWR, 0600)
	require.NoError(t, err)
	defer file.Close()

	reopenedPager, err := OpenPager(zap.NewNop(), file, WithSyncWrites(false))
	require.NoError(t, err)
	reopened, err := OpenCatalog(ctx, zap.NewNop(), reopenedPager, newCannedParser())
	require.NoError(t, err)

	found, err := reopened.LookupTable("users")
	require.NoError(t, err)
	assert.Equal(t, aTable.Columns, found.Columns)
	assert.Equal(t, aTable.RootPage, found.RootPage)
	assert.Equal(t, "id", found.PrimaryKey)
	require.Len(t, found.Indexes, 1)
	assert.Equal(t, "name", found.Indexes[0].Column)
}

func TestCatalog_TableNameCollidesWithIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager := newTestPager(t)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	tableDDL, tableStmt := usersDDL()
	_, err = aCatalog.DefineTable(ctx, "users", tableStmt.Columns, tableDDL)
	require.NoError(t, err)
	indexDDL, indexStmt := nameIndexDDL()
	_, err = aCatalog.DefineIndex(ctx, "users", indexStmt.IndexName, indexStmt.IndexColumn, false, indexDDL)
	require.NoError(t, err)

	// Tables and indexes share one namespace
	_, err = aCatalog.DefineTable(ctx, indexStmt.IndexName, tableStmt.Columns, tableDDL)
	assert.ErrorIs(t, err, ErrTableExists)
}

func TestCatalog_FailedDefineFreesRootPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	aPager := newTestPager(t)
	aCatalog, err := OpenCatalog(ctx, zap.NewNop(), aPager, newCannedParser())
	require.NoError(t, err)

	// A name this long cannot fit a catalog entry, so the definition fails
	// after its tree was already allocated
	longName := strings.Repeat("n", 2000)
	_, err = aCatalog.DefineTable(ctx, longName, testColumns, "ddl")
	require.ErrorIs(t, err, ErrEntryTooLarge)
	_, err = aCatalog.LookupTable(longName)
	assert.ErrorIs(t, err, ErrTableNotFound)

	// The orphaned root page went back on the free list, so the next
	// definition reuses it instead of extending the file
	pages := aPager.TotalPages()
	ddl, stmt := usersDDL()
	_, err = aCatalog.DefineTable(ctx, "users", stmt.Columns, ddl)
	require.NoError(t, err)
	assert.Equal(t, pages, aPager.TotalPages())
}
