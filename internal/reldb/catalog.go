package reldb

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	catalogTypeTable = int64(1)
	catalogTypeIndex = int64(2)

	// Catalog records carry up to MaxTableDDL bytes of SQL, so the catalog
	// tree needs a low fanout to keep its per entry budget large enough.
	catalogMinDegree = 2
)

// catalogColumns is the fixed schema of the system table. Each row
// describes one table or index, keyed by its name, and stores the DDL
// text the schema is rebuilt from at startup.
var catalogColumns = []Column{
	{Name: "type", Kind: Int},
	{Name: "name", Kind: Text},
	{Name: "table_name", Kind: Text},
	{Name: "root_page", Kind: Int},
	{Name: "sql", Kind: Text},
}

// Catalog tracks every table and index in the database. Definitions are
// persisted in a B tree of their own whose root page lives in the file
// header, so the catalog is recovered purely from the file on open.
type Catalog struct {
	pager  *Pager
	parser StatementParser
	logger *zap.Logger

	tree   *BTree
	tables map[string]*Table
}

// OpenCatalog loads the system table, creating it in a fresh database,
// and rebuilds every table schema by reparsing its stored DDL.
func OpenCatalog(ctx context.Context, logger *zap.Logger, aPager *Pager, aParser StatementParser) (*Catalog, error) {
	aCatalog := &Catalog{
		pager:  aPager,
		parser: aParser,
		logger: logger,
		tables: make(map[string]*Table),
	}

	rootPage := aPager.CatalogRoot()
	if rootPage == 0 {
		aTree, err := CreateBTree(ctx, logger, aPager, catalogMinDegree)
		if err != nil {
			return nil, fmt.Errorf("create catalog: %w", err)
		}
		if err := aPager.SetCatalogRoot(ctx, aTree.RootPage()); err != nil {
			return nil, fmt.Errorf("create catalog: %w", err)
		}
		aCatalog.tree = aTree
		return aCatalog, nil
	}

	aCatalog.tree = NewBTree(logger, aPager, rootPage, catalogMinDegree)
	if err := aCatalog.load(ctx); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return aCatalog, nil
}

type catalogEntry struct {
	entryType int64
	name      string
	tableName string
	rootPage  uint32
	ddl       string
}

func (c *Catalog) load(ctx context.Context) error {
	aCursor, err := c.tree.Scan(ctx, nil, nil, false)
	if err != nil {
		return err
	}
	// Entries are name ordered so an index can precede its table; collect
	// everything, then build tables, then attach indexes.
	var entries []catalogEntry
	for {
		_, value, err := aCursor.Next(ctx)
		if err == ErrNoMoreRows {
			break
		}
		if err != nil {
			return err
		}
		values, err := UnmarshalRecord(catalogColumns, value)
		if err != nil {
			return err
		}
		entries = append(entries, catalogEntry{
			entryType: values[0].(int64),
			name:      values[1].(string),
			tableName: values[2].(string),
			rootPage:  uint32(values[3].(int64)),
			ddl:       values[4].(string),
		})
	}

	for _, anEntry := range entries {
		if anEntry.entryType != catalogTypeTable {
			continue
		}
		stmt, err := c.parser.Parse(ctx, anEntry.ddl)
		if err != nil {
			return fmt.Errorf("table %q stored DDL: %w", anEntry.name, err)
		}
		aTable := c.newTable(anEntry.name, stmt.Columns, anEntry.rootPage)
		c.tables[anEntry.name] = aTable
	}
	for _, anEntry := range entries {
		if anEntry.entryType != catalogTypeIndex {
			continue
		}
		aTable, ok := c.tables[anEntry.tableName]
		if !ok {
			return fmt.Errorf("index %q references missing table %q", anEntry.name, anEntry.tableName)
		}
		stmt, err := c.parser.Parse(ctx, anEntry.ddl)
		if err != nil {
			return fmt.Errorf("index %q stored DDL: %w", anEntry.name, err)
		}
		aTable.Indexes = append(aTable.Indexes, &IndexInfo{
			Name:     anEntry.name,
			Column:   stmt.IndexColumn,
			Unique:   stmt.IndexUnique,
			RootPage: anEntry.rootPage,
			tree:     NewBTree(c.logger, c.pager, anEntry.rootPage, DefaultIndexMinDegree),
		})
	}

	c.logger.Sugar().With("tables", len(c.tables)).Debug("loaded catalog")
	return nil
}

func (c *Catalog) newTable(name string, columns []Column, rootPage uint32) *Table {
	aTable := &Table{
		Name:     name,
		Columns:  columns,
		RootPage: rootPage,
		logger:   c.logger,
		tree:     NewBTree(c.logger, c.pager, rootPage, DefaultMinDegree),
	}
	for _, aColumn := range columns {
		if aColumn.PrimaryKey {
			aTable.PrimaryKey = aColumn.Name
		}
	}
	return aTable
}

func (c *Catalog) store(ctx context.Context, anEntry catalogEntry) error {
	record, err := MarshalRecord(catalogColumns, []any{
		anEntry.entryType,
		anEntry.name,
		anEntry.tableName,
		int64(anEntry.rootPage),
		anEntry.ddl,
	})
	if err != nil {
		return err
	}
	key, err := EncodeKeyValue(Text, anEntry.name)
	if err != nil {
		return err
	}
	return c.tree.Insert(ctx, key, record)
}

// DefineTable creates a new table with its own tree and persists the
// definition.
func (c *Catalog) DefineTable(ctx context.Context, name string, columns []Column, ddl string) (*Table, error) {
	if name == CatalogTableName {
		return nil, fmt.Errorf("%w: %q is reserved", ErrTableExists, name)
	}
	if _, ok := c.tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
	}
	// Tables and indexes share the catalog namespace
	for _, other := range c.tables {
		if _, ok := other.IndexByName(name); ok {
			return nil, fmt.Errorf("%w: %q", ErrTableExists, name)
		}
	}
	if len(columns) == 0 || len(columns) > MaxColumns {
		return nil, fmt.Errorf("%w: table must have between 1 and %d columns", ErrSchemaMismatch, MaxColumns)
	}
	if len(ddl) > MaxTableDDL {
		return nil, fmt.Errorf("%w: DDL exceeds %d bytes", ErrSchemaMismatch, MaxTableDDL)
	}

	aTree, err := CreateBTree(ctx, c.logger, c.pager, DefaultMinDegree)
	if err != nil {
		return nil, fmt.Errorf("define table %q: %w", name, err)
	}
	if err := c.store(ctx, catalogEntry{
		entryType: catalogTypeTable,
		name:      name,
		tableName: name,
		rootPage:  aTree.RootPage(),
		ddl:       ddl,
	}); err != nil {
		err = fmt.Errorf("define table %q: %w", name, err)
		if freeErr := c.pager.FreePage(ctx, aTree.RootPage()); freeErr != nil {
			err = multierr.Append(err, freeErr)
		}
		return nil, err
	}

	aTable := c.newTable(name, columns, aTree.RootPage())
	c.tables[name] = aTable
	c.logger.Sugar().With("table", name, "root_page", aTable.RootPage).Debug("defined table")
	return aTable, nil
}

// DefineIndex creates a secondary index tree and persists the definition.
// The caller is responsible for backfilling existing rows.
func (c *Catalog) DefineIndex(ctx context.Context, tableName, indexName, column string, unique bool, ddl string) (*IndexInfo, error) {
	aTable, ok := c.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, tableName)
	}
	if _, _, ok := aTable.ColumnByName(column); !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	// Tables and indexes share the catalog namespace
	if _, ok := c.tables[indexName]; ok {
		return nil, fmt.Errorf("%w: %q", ErrIndexExists, indexName)
	}
	for _, other := range c.tables {
		if _, ok := other.IndexByName(indexName); ok {
			return nil, fmt.Errorf("%w: %q", ErrIndexExists, indexName)
		}
	}

	aTree, err := CreateBTree(ctx, c.logger, c.pager, DefaultIndexMinDegree)
	if err != nil {
		return nil, fmt.Errorf("define index %q: %w", indexName, err)
	}
	if err := c.store(ctx, catalogEntry{
		entryType: catalogTypeIndex,
		name:      indexName,
		tableName: tableName,
		rootPage:  aTree.RootPage(),
		ddl:       ddl,
	}); err != nil {
		err = fmt.Errorf("define index %q: %w", indexName, err)
		if freeErr := c.pager.FreePage(ctx, aTree.RootPage()); freeErr != nil {
			err = multierr.Append(err, freeErr)
		}
		return nil, err
	}

	anIndex := &IndexInfo{
		Name:     indexName,
		Column:   column,
		Unique:   unique,
		RootPage: aTree.RootPage(),
		tree:     aTree,
	}
	aTable.Indexes = append(aTable.Indexes, anIndex)
	c.logger.Sugar().With("index", indexName, "table", tableName, "unique", unique).Debug("defined index")
	return anIndex, nil
}

func (c *Catalog) LookupTable(name string) (*Table, error) {
	aTable, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return aTable, nil
}

func (c *Catalog) TableNames() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
