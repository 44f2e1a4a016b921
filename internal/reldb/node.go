package reldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	pageTypeLeaf     = byte(1)
	pageTypeInternal = byte(2)
	pageTypeFree     = byte(3)

	leafHeaderSize     = 1 + 2 + 4 + 4 // type, cell count, next leaf, prev leaf
	internalHeaderSize = 1 + 2         // type, key count
	cellHeaderSize     = 2 + 2         // key length, value length
	keyHeaderSize      = 2             // key length
	childPointerSize   = 4
)

type leafCell struct {
	Key   []byte
	Value []byte
}

func (c leafCell) Size() int {
	return cellHeaderSize + len(c.Key) + len(c.Value)
}

// leafNode holds ordered key/value cells plus sibling links for range scans
// in either direction. Sibling page number 0 means no sibling.
type leafNode struct {
	Next  uint32
	Prev  uint32
	Cells []leafCell
}

func (n *leafNode) Marshal(buf []byte) error {
	size := leafHeaderSize
	for idx := range n.Cells {
		size += n.Cells[idx].Size()
	}
	if size > len(buf) {
		return fmt.Errorf("leaf node size %d exceeds page size %d", size, len(buf))
	}
	for i := range buf {
		buf[i] = 0
	}

	buf[0] = pageTypeLeaf
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(n.Cells)))
	binary.LittleEndian.PutUint32(buf[3:7], n.Next)
	binary.LittleEndian.PutUint32(buf[7:11], n.Prev)

	i := leafHeaderSize
	for idx := range n.Cells {
		aCell := n.Cells[idx]
		binary.LittleEndian.PutUint16(buf[i:i+2], uint16(len(aCell.Key)))
		binary.LittleEndian.PutUint16(buf[i+2:i+4], uint16(len(aCell.Value)))
		i += cellHeaderSize
		copy(buf[i:], aCell.Key)
		i += len(aCell.Key)
		copy(buf[i:], aCell.Value)
		i += len(aCell.Value)
	}

	return nil
}

func (n *leafNode) Unmarshal(buf []byte) error {
	if len(buf) < leafHeaderSize {
		return fmt.Errorf("%w: page shorter than leaf header", ErrCorruptRecord)
	}
	if buf[0] != pageTypeLeaf {
		return fmt.Errorf("%w: unrecognised leaf page type byte %d", ErrCorruptRecord, buf[0])
	}
	cells := int(binary.LittleEndian.Uint16(buf[1:3]))
	n.Next = binary.LittleEndian.Uint32(buf[3:7])
	n.Prev = binary.LittleEndian.Uint32(buf[7:11])

	n.Cells = make([]leafCell, 0, cells)
	i := leafHeaderSize
	for idx := 0; idx < cells; idx++ {
		if i+cellHeaderSize > len(buf) {
			return fmt.Errorf("%w: truncated leaf cell header", ErrCorruptRecord)
		}
		keyLen := int(binary.LittleEndian.Uint16(buf[i : i+2]))
		valLen := int(binary.LittleEndian.Uint16(buf[i+2 : i+4]))
		i += cellHeaderSize
		if i+keyLen+valLen > len(buf) {
			return fmt.Errorf("%w: truncated leaf cell", ErrCorruptRecord)
		}
		aCell := leafCell{
			Key:   make([]byte, keyLen),
			Value: make([]byte, valLen),
		}
		copy(aCell.Key, buf[i:i+keyLen])
		i += keyLen
		copy(aCell.Value, buf[i:i+valLen])
		i += valLen
		n.Cells = append(n.Cells, aCell)
	}

	return nil
}

// findCell returns the index of the first cell with key >= the given key
// and whether an exact match was found.
func (n *leafNode) findCell(key []byte) (int, bool) {
	idx := sort.Search(len(n.Cells), func(i int) bool {
		return bytes.Compare(n.Cells[i].Key, key) >= 0
	})
	found := idx < len(n.Cells) && bytes.Equal(n.Cells[idx].Key, key)
	return idx, found
}

func (n *leafNode) insertCellAt(idx int, aCell leafCell) {
	n.Cells = append(n.Cells, leafCell{})
	copy(n.Cells[idx+1:], n.Cells[idx:])
	n.Cells[idx] = aCell
}

func (n *leafNode) removeCellAt(idx int) leafCell {
	aCell := n.Cells[idx]
	n.Cells = append(n.Cells[:idx], n.Cells[idx+1:]...)
	return aCell
}

// internalNode holds separator keys and child page pointers; child i covers
// keys strictly below Keys[i], the last child covers the rest. A key equal
// to a separator lives in the right subtree.
type internalNode struct {
	Keys     [][]byte
	Children []uint32 // always len(Keys)+1
}

func (n *internalNode) Marshal(buf []byte) error {
	size := internalHeaderSize + len(n.Children)*childPointerSize
	for idx := range n.Keys {
		size += keyHeaderSize + len(n.Keys[idx])
	}
	if size > len(buf) {
		return fmt.Errorf("internal node size %d exceeds page size %d", size, len(buf))
	}
	if len(n.Children) != len(n.Keys)+1 {
		return fmt.Errorf("internal node has %d keys but %d children", len(n.Keys), len(n.Children))
	}
	for i := range buf {
		buf[i] = 0
	}

	buf[0] = pageTypeInternal
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(n.Keys)))

	i := internalHeaderSize
	for _, child := range n.Children {
		binary.LittleEndian.PutUint32(buf[i:i+4], child)
		i += childPointerSize
	}
	for _, key := range n.Keys {
		binary.LittleEndian.PutUint16(buf[i:i+2], uint16(len(key)))
		i += keyHeaderSize
		copy(buf[i:], key)
		i += len(key)
	}

	return nil
}

func (n *internalNode) Unmarshal(buf []byte) error {
	if len(buf) < internalHeaderSize {
		return fmt.Errorf("%w: page shorter than internal header", ErrCorruptRecord)
	}
	if buf[0] != pageTypeInternal {
		return fmt.Errorf("%w: unrecognised internal page type byte %d", ErrCorruptRecord, buf[0])
	}
	keys := int(binary.LittleEndian.Uint16(buf[1:3]))

	i := internalHeaderSize
	n.Children = make([]uint32, 0, keys+1)
	for idx := 0; idx < keys+1; idx++ {
		if i+childPointerSize > len(buf) {
			return fmt.Errorf("%w: truncated child pointer", ErrCorruptRecord)
		}
		n.Children = append(n.Children, binary.LittleEndian.Uint32(buf[i:i+4]))
		i += childPointerSize
	}
	n.Keys = make([][]byte, 0, keys)
	for idx := 0; idx < keys; idx++ {
		if i+keyHeaderSize > len(buf) {
			return fmt.Errorf("%w: truncated separator key header", ErrCorruptRecord)
		}
		keyLen := int(binary.LittleEndian.Uint16(buf[i : i+2]))
		i += keyHeaderSize
		if i+keyLen > len(buf) {
			return fmt.Errorf("%w: truncated separator key", ErrCorruptRecord)
		}
		key := make([]byte, keyLen)
		copy(key, buf[i:i+keyLen])
		i += keyLen
		n.Keys = append(n.Keys, key)
	}

	return nil
}

// childIndex returns the index of the child whose range contains the key.
func (n *internalNode) childIndex(key []byte) int {
	return sort.Search(len(n.Keys), func(i int) bool {
		return bytes.Compare(key, n.Keys[i]) < 0
	})
}

func (n *internalNode) insertKeyAt(idx int, key []byte, rightChild uint32) {
	n.Keys = append(n.Keys, nil)
	copy(n.Keys[idx+1:], n.Keys[idx:])
	n.Keys[idx] = key

	n.Children = append(n.Children, 0)
	copy(n.Children[idx+2:], n.Children[idx+1:])
	n.Children[idx+1] = rightChild
}

// removeKeyAt removes separator idx together with its right child pointer.
func (n *internalNode) removeKeyAt(idx int) {
	n.Keys = append(n.Keys[:idx], n.Keys[idx+1:]...)
	n.Children = append(n.Children[:idx+1], n.Children[idx+2:]...)
}

// nodePageType inspects the type byte of a marshaled page.
func nodePageType(buf []byte) (byte, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("%w: empty page", ErrCorruptRecord)
	}
	switch buf[0] {
	case pageTypeLeaf, pageTypeInternal, pageTypeFree:
		return buf[0], nil
	default:
		return 0, fmt.Errorf("%w: unrecognised page type byte %d", ErrCorruptRecord, buf[0])
	}
}
