package reldb

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Key encoding is order preserving: if a < b as typed values then the
// encoded bytes compare the same way under bytes.Compare.
//
//   - INT: sign bit flipped, big endian
//   - REAL: IEEE-754 bits, whole word inverted for negatives, sign bit set
//     for positives, big endian
//   - BOOLEAN: single byte
//   - TEXT: raw bytes with 0x00 escaped as 0x00 0xFF and a 0x00 0x01
//     terminator, so shorter strings sort before their extensions and
//     trailing segments never interleave
//
// Composite keys concatenate encoded segments; the text terminator keeps
// segment boundaries unambiguous in any position.

const (
	textEscape     = 0xFF
	textTerminator = 0x01
)

// EncodeKeyValue encodes a single non-null value of the given kind.
func EncodeKeyValue(kind ColumnKind, value any) ([]byte, error) {
	switch kind {
	case Int:
		v, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: key expects int, got %T", ErrSchemaMismatch, value)
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v)^(1<<63))
		return buf, nil
	case Real:
		v, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: key expects real, got %T", ErrSchemaMismatch, value)
		}
		bits := math.Float64bits(v)
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, bits)
		return buf, nil
	case Boolean:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: key expects boolean, got %T", ErrSchemaMismatch, value)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Text:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: key expects text, got %T", ErrSchemaMismatch, value)
		}
		buf := make([]byte, 0, len(v)+2)
		for i := 0; i < len(v); i++ {
			if v[i] == 0x00 {
				buf = append(buf, 0x00, textEscape)
				continue
			}
			buf = append(buf, v[i])
		}
		buf = append(buf, 0x00, textTerminator)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown key kind %d", ErrSchemaMismatch, kind)
	}
}

// EncodeRowID encodes the hidden monotonic row ID used by tables without a
// declared primary key.
func EncodeRowID(rowID uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rowID)
	return buf
}

// EncodeKey encodes a composite key from column values in column order.
func EncodeKey(columns []Column, values []any) ([]byte, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%w: expected %d key values, got %d", ErrSchemaMismatch, len(columns), len(values))
	}
	key := make([]byte, 0, 16)
	for i, aColumn := range columns {
		if values[i] == nil {
			return nil, fmt.Errorf("%w: key column %q cannot be NULL", ErrSchemaMismatch, aColumn.Name)
		}
		segment, err := EncodeKeyValue(aColumn.Kind, values[i])
		if err != nil {
			return nil, fmt.Errorf("key column %q: %w", aColumn.Name, err)
		}
		key = append(key, segment...)
	}
	return key, nil
}
