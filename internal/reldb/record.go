package reldb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/reldb/reldb/pkg/bitwise"
)

// Record layout: a uint64 null bitmask followed by one encoded value per
// non-null column in schema order. INT and REAL take 8 bytes, BOOLEAN one
// byte, TEXT a uint32 length prefix plus raw bytes.

// MarshalRecord encodes values against the column list.
func MarshalRecord(columns []Column, values []any) ([]byte, error) {
	if len(values) != len(columns) {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrSchemaMismatch, len(columns), len(values))
	}

	var nullBitmask uint64
	size := 8
	for i, aColumn := range columns {
		if values[i] == nil {
			if !aColumn.Nullable {
				return nil, fmt.Errorf("%w: column %q cannot be NULL", ErrSchemaMismatch, aColumn.Name)
			}
			nullBitmask = bitwise.Set(nullBitmask, i)
			continue
		}
		switch aColumn.Kind {
		case Int, Real:
			size += 8
		case Boolean:
			size += 1
		case Text:
			value, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("%w: column %q expects text, got %T", ErrSchemaMismatch, aColumn.Name, values[i])
			}
			size += 4 + len(value)
		default:
			return nil, fmt.Errorf("%w: column %q has unknown kind", ErrSchemaMismatch, aColumn.Name)
		}
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], nullBitmask)
	offset := 8

	for i, aColumn := range columns {
		if bitwise.IsSet(nullBitmask, i) {
			continue
		}
		switch aColumn.Kind {
		case Int:
			value, ok := values[i].(int64)
			if !ok {
				return nil, fmt.Errorf("%w: column %q expects int, got %T", ErrSchemaMismatch, aColumn.Name, values[i])
			}
			binary.LittleEndian.PutUint64(buf[offset:offset+8], uint64(value))
			offset += 8
		case Real:
			value, ok := values[i].(float64)
			if !ok {
				return nil, fmt.Errorf("%w: column %q expects real, got %T", ErrSchemaMismatch, aColumn.Name, values[i])
			}
			binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(value))
			offset += 8
		case Boolean:
			value, ok := values[i].(bool)
			if !ok {
				return nil, fmt.Errorf("%w: column %q expects boolean, got %T", ErrSchemaMismatch, aColumn.Name, values[i])
			}
			if value {
				buf[offset] = 1
			}
			offset += 1
		case Text:
			value := values[i].(string)
			binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(value)))
			offset += 4
			copy(buf[offset:], value)
			offset += len(value)
		}
	}

	return buf, nil
}

// UnmarshalRecord decodes stored bytes against the column list.
func UnmarshalRecord(columns []Column, buf []byte) ([]any, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: record shorter than null bitmask", ErrCorruptRecord)
	}
	nullBitmask := binary.LittleEndian.Uint64(buf[0:8])
	offset := 8

	values := make([]any, 0, len(columns))
	for i, aColumn := range columns {
		if bitwise.IsSet(nullBitmask, i) {
			values = append(values, nil)
			continue
		}
		switch aColumn.Kind {
		case Int:
			if offset+8 > len(buf) {
				return nil, fmt.Errorf("%w: truncated int column %q", ErrCorruptRecord, aColumn.Name)
			}
			values = append(values, int64(binary.LittleEndian.Uint64(buf[offset:offset+8])))
			offset += 8
		case Real:
			if offset+8 > len(buf) {
				return nil, fmt.Errorf("%w: truncated real column %q", ErrCorruptRecord, aColumn.Name)
			}
			values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:offset+8])))
			offset += 8
		case Boolean:
			if offset+1 > len(buf) {
				return nil, fmt.Errorf("%w: truncated boolean column %q", ErrCorruptRecord, aColumn.Name)
			}
			values = append(values, buf[offset] == 1)
			offset += 1
		case Text:
			if offset+4 > len(buf) {
				return nil, fmt.Errorf("%w: truncated text length for column %q", ErrCorruptRecord, aColumn.Name)
			}
			length := int(binary.LittleEndian.Uint32(buf[offset : offset+4]))
			offset += 4
			if offset+length > len(buf) {
				return nil, fmt.Errorf("%w: truncated text column %q", ErrCorruptRecord, aColumn.Name)
			}
			values = append(values, string(buf[offset:offset+length]))
			offset += length
		default:
			return nil, fmt.Errorf("%w: column %q has unknown kind", ErrCorruptRecord, aColumn.Name)
		}
	}

	return values, nil
}
