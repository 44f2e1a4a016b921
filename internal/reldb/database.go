package reldb

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// Database is the engine facade. A single mutex serialises statement
// execution; there are no overlapping transactions. Parsed statements
// are cached so repeated SQL skips the parser.
type Database struct {
	pager   *Pager
	catalog *Catalog
	parser  StatementParser
	logger  *zap.Logger

	stmtCache *ristretto.Cache[string, Statement]

	// Guards all statement execution
	mu sync.Mutex
}

// OpenDatabase opens or initialises a database file and loads its
// catalog.
func OpenDatabase(ctx context.Context, logger *zap.Logger, file DBFile, aParser StatementParser, opts ...PagerOption) (*Database, error) {
	aPager, err := OpenPager(logger, file, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	aCatalog, err := OpenCatalog(ctx, logger, aPager, aParser)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	stmtCache, err := ristretto.NewCache(&ristretto.Config[string, Statement]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Database{
		pager:     aPager,
		catalog:   aCatalog,
		parser:    aParser,
		logger:    logger,
		stmtCache: stmtCache,
	}, nil
}

// Execute parses and runs a single SQL statement. For SELECT the result
// carries a lazy row iterator; for everything else RowsAffected reports
// what the statement did.
func (d *Database) Execute(ctx context.Context, sql string) (StatementResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stmt, err := d.parse(ctx, sql)
	if err != nil {
		return StatementResult{}, err
	}

	switch stmt.Kind {
	case CreateTable:
		return d.executeCreateTable(ctx, sql, stmt)
	case CreateIndex:
		return d.executeCreateIndex(ctx, sql, stmt)
	case Insert:
		return d.executeInsert(ctx, stmt)
	case Select:
		return d.executeSelect(ctx, stmt)
	case Update:
		return d.executeUpdate(ctx, stmt)
	case Delete:
		return d.executeDelete(ctx, stmt)
	default:
		return StatementResult{}, fmt.Errorf("unknown statement kind %d", stmt.Kind)
	}
}

func (d *Database) parse(ctx context.Context, sql string) (Statement, error) {
	if stmt, ok := d.stmtCache.Get(sql); ok {
		return stmt, nil
	}
	stmt, err := d.parser.Parse(ctx, sql)
	if err != nil {
		return Statement{}, err
	}
	d.stmtCache.Set(sql, stmt, int64(len(sql)))
	return stmt, nil
}

// TableNames lists the user tables in the catalog.
func (d *Database) TableNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.catalog.TableNames()
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stmtCache.Close()
	return d.pager.Close()
}
