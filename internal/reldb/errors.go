package reldb

import (
	"errors"
)

var (
	// ErrInvalidPage is returned for page numbers outside the file bounds.
	ErrInvalidPage = errors.New("page number out of bounds")
	// ErrKeyNotFound is returned when a key is absent from a tree.
	ErrKeyNotFound = errors.New("key not found")
	// ErrDuplicateKey is returned when inserting an existing key.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrEntryTooLarge is returned when a key/value pair cannot fit a node.
	ErrEntryTooLarge = errors.New("entry too large for page")

	ErrSchemaMismatch = errors.New("values do not match table schema")
	ErrCorruptRecord  = errors.New("corrupt record data")

	ErrTableNotFound  = errors.New("table does not exist")
	ErrTableExists    = errors.New("table already exists")
	ErrIndexExists    = errors.New("index already exists")
	ErrColumnNotFound = errors.New("column does not exist")

	// ErrConstraintViolation is returned when a primary key or unique index
	// rejects a row.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNoMoreRows signals iterator exhaustion.
	ErrNoMoreRows = errors.New("no more rows")
)
