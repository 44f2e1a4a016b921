package reldb

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BTree is a disk-backed B+ tree keyed by raw bytes. All records live in
// leaf pages linked into a doubly linked list; internal pages only hold
// separator keys. The root page number never changes for the lifetime of
// a tree, so it can be stored durably in the catalog.
//
// Occupancy is governed by the minimum degree t: every node except the
// root holds between t-1 and 2t-1 entries. Inserts split full nodes on
// the way down, deletes top up deficient nodes on the way down, so both
// finish in a single descent.
type BTree struct {
	pager     *Pager
	rootPage  uint32
	minDegree int
	logger    *zap.Logger
}

// CreateBTree allocates a fresh root leaf page.
func CreateBTree(ctx context.Context, logger *zap.Logger, aPager *Pager, minDegree int) (*BTree, error) {
	if minDegree < 2 {
		return nil, fmt.Errorf("minimum degree must be at least 2, got %d", minDegree)
	}
	rootPage, err := aPager.AllocatePage(ctx)
	if err != nil {
		return nil, fmt.Errorf("create btree: %w", err)
	}
	aTree := &BTree{
		pager:     aPager,
		rootPage:  rootPage,
		minDegree: minDegree,
		logger:    logger,
	}
	if err := aTree.writeLeaf(ctx, rootPage, &leafNode{}); err != nil {
		return nil, fmt.Errorf("create btree: %w", err)
	}
	logger.Sugar().With("root_page", rootPage, "min_degree", minDegree).Debug("created btree")
	return aTree, nil
}

// NewBTree attaches to an existing tree rooted at the given page.
func NewBTree(logger *zap.Logger, aPager *Pager, rootPage uint32, minDegree int) *BTree {
	return &BTree{
		pager:     aPager,
		rootPage:  rootPage,
		minDegree: minDegree,
		logger:    logger,
	}
}

func (t *BTree) RootPage() uint32 {
	return t.rootPage
}

func (t *BTree) maxEntries() int {
	return 2*t.minDegree - 1
}

func (t *BTree) minEntries() int {
	return t.minDegree - 1
}

// maxEntrySize caps key+value bytes per leaf cell so that any legal number
// of cells is guaranteed to fit a page.
func (t *BTree) maxEntrySize() int {
	return (t.pager.pageSize-leafHeaderSize)/t.maxEntries() - cellHeaderSize
}

// maxKeySize caps key bytes so a full internal node always fits a page.
func (t *BTree) maxKeySize() int {
	usable := t.pager.pageSize - internalHeaderSize - (t.maxEntries()+1)*childPointerSize
	return usable/t.maxEntries() - keyHeaderSize
}

func (t *BTree) readLeaf(ctx context.Context, pageNum uint32) (*leafNode, error) {
	buf, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return nil, err
	}
	aLeaf := new(leafNode)
	if err := aLeaf.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNum, err)
	}
	return aLeaf, nil
}

func (t *BTree) writeLeaf(ctx context.Context, pageNum uint32, aLeaf *leafNode) error {
	buf := make([]byte, t.pager.pageSize)
	if err := aLeaf.Marshal(buf); err != nil {
		return fmt.Errorf("page %d: %w", pageNum, err)
	}
	return t.pager.WritePage(ctx, pageNum, buf)
}

func (t *BTree) writeInternal(ctx context.Context, pageNum uint32, aNode *internalNode) error {
	buf := make([]byte, t.pager.pageSize)
	if err := aNode.Marshal(buf); err != nil {
		return fmt.Errorf("page %d: %w", pageNum, err)
	}
	return t.pager.WritePage(ctx, pageNum, buf)
}

// readNode loads a page as either a leaf or an internal node.
func (t *BTree) readNode(ctx context.Context, pageNum uint32) (*leafNode, *internalNode, error) {
	buf, err := t.pager.ReadPage(ctx, pageNum)
	if err != nil {
		return nil, nil, err
	}
	pageType, err := nodePageType(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("page %d: %w", pageNum, err)
	}
	switch pageType {
	case pageTypeLeaf:
		aLeaf := new(leafNode)
		if err := aLeaf.Unmarshal(buf); err != nil {
			return nil, nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		return aLeaf, nil, nil
	case pageTypeInternal:
		aNode := new(internalNode)
		if err := aNode.Unmarshal(buf); err != nil {
			return nil, nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		return nil, aNode, nil
	default:
		return nil, nil, fmt.Errorf("page %d: %w: page is on the free list", pageNum, ErrCorruptRecord)
	}
}

// Search returns the value stored under the key.
func (t *BTree) Search(ctx context.Context, key []byte) ([]byte, error) {
	pageNum := t.rootPage
	for {
		aLeaf, aNode, err := t.readNode(ctx, pageNum)
		if err != nil {
			return nil, err
		}
		if aNode != nil {
			pageNum = aNode.Children[aNode.childIndex(key)]
			continue
		}
		idx, found := aLeaf.findCell(key)
		if !found {
			return nil, ErrKeyNotFound
		}
		return aLeaf.Cells[idx].Value, nil
	}
}

// CheckEntry rejects key/value pairs that could overflow a page. Callers
// that rewrite several trees at once use it to validate every entry
// before mutating any of them.
func (t *BTree) CheckEntry(key, value []byte) error {
	if len(key)+len(value) > t.maxEntrySize() {
		return fmt.Errorf("entry of %d bytes: %w", len(key)+len(value), ErrEntryTooLarge)
	}
	if len(key) > t.maxKeySize() {
		return fmt.Errorf("key of %d bytes: %w", len(key), ErrEntryTooLarge)
	}
	return nil
}

// Insert stores the key/value pair, rejecting duplicates.
func (t *BTree) Insert(ctx context.Context, key, value []byte) error {
	if err := t.CheckEntry(key, value); err != nil {
		return err
	}

	aLeaf, aNode, err := t.readNode(ctx, t.rootPage)
	if err != nil {
		return err
	}
	if aLeaf != nil && len(aLeaf.Cells) == t.maxEntries() {
		if aNode, err = t.splitRootLeaf(ctx, aLeaf); err != nil {
			return err
		}
		aLeaf = nil
	} else if aNode != nil && len(aNode.Keys) == t.maxEntries() {
		if aNode, err = t.splitRootInternal(ctx, aNode); err != nil {
			return err
		}
	}

	pageNum := t.rootPage
	for {
		if aLeaf != nil {
			idx, found := aLeaf.findCell(key)
			if found {
				return fmt.Errorf("key %x: %w", key, ErrDuplicateKey)
			}
			aLeaf.insertCellAt(idx, leafCell{Key: key, Value: value})
			return t.writeLeaf(ctx, pageNum, aLeaf)
		}

		childIdx := aNode.childIndex(key)
		childPage := aNode.Children[childIdx]
		childLeaf, childNode, err := t.readNode(ctx, childPage)
		if err != nil {
			return err
		}

		if childLeaf != nil && len(childLeaf.Cells) == t.maxEntries() {
			separator, err := t.splitChildLeaf(ctx, aNode, pageNum, childIdx, childLeaf)
			if err != nil {
				return err
			}
			// Equal keys belong to the right half
			if bytes.Compare(key, separator) >= 0 {
				childPage = aNode.Children[childIdx+1]
			}
			childLeaf, childNode, err = t.readNode(ctx, childPage)
			if err != nil {
				return err
			}
		} else if childNode != nil && len(childNode.Keys) == t.maxEntries() {
			separator, err := t.splitChildInternal(ctx, aNode, pageNum, childIdx, childNode)
			if err != nil {
				return err
			}
			if bytes.Compare(key, separator) >= 0 {
				childPage = aNode.Children[childIdx+1]
			}
			childLeaf, childNode, err = t.readNode(ctx, childPage)
			if err != nil {
				return err
			}
		}

		pageNum = childPage
		aLeaf, aNode = childLeaf, childNode
	}
}

// splitRootLeaf turns a full root leaf into an internal root with two leaf
// children. The root keeps its page number.
func (t *BTree) splitRootLeaf(ctx context.Context, root *leafNode) (*internalNode, error) {
	leftPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}
	rightPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}

	mid := t.minEntries()
	left := &leafNode{
		Cells: root.Cells[:mid],
		Next:  rightPage,
	}
	right := &leafNode{
		Cells: root.Cells[mid:],
		Prev:  leftPage,
	}
	separator := right.Cells[0].Key

	if err := t.writeLeaf(ctx, leftPage, left); err != nil {
		return nil, err
	}
	if err := t.writeLeaf(ctx, rightPage, right); err != nil {
		return nil, err
	}

	newRoot := &internalNode{
		Keys:     [][]byte{separator},
		Children: []uint32{leftPage, rightPage},
	}
	if err := t.writeInternal(ctx, t.rootPage, newRoot); err != nil {
		return nil, err
	}
	t.logger.Sugar().With("root_page", t.rootPage).Debug("split root leaf")
	return newRoot, nil
}

// splitRootInternal grows the tree by one level, keeping the root page.
func (t *BTree) splitRootInternal(ctx context.Context, root *internalNode) (*internalNode, error) {
	leftPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}
	rightPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}

	mid := t.minEntries()
	separator := root.Keys[mid]
	left := &internalNode{
		Keys:     root.Keys[:mid],
		Children: root.Children[:mid+1],
	}
	right := &internalNode{
		Keys:     root.Keys[mid+1:],
		Children: root.Children[mid+1:],
	}

	if err := t.writeInternal(ctx, leftPage, left); err != nil {
		return nil, err
	}
	if err := t.writeInternal(ctx, rightPage, right); err != nil {
		return nil, err
	}

	newRoot := &internalNode{
		Keys:     [][]byte{separator},
		Children: []uint32{leftPage, rightPage},
	}
	if err := t.writeInternal(ctx, t.rootPage, newRoot); err != nil {
		return nil, err
	}
	t.logger.Sugar().With("root_page", t.rootPage).Debug("split root internal node")
	return newRoot, nil
}

// splitChildLeaf splits a full leaf child, copying the right half's first
// key into the parent as separator. Returns the separator.
func (t *BTree) splitChildLeaf(ctx context.Context, parent *internalNode, parentPage uint32, childIdx int, child *leafNode) ([]byte, error) {
	rightPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}

	mid := t.minEntries()
	right := &leafNode{
		Cells: append([]leafCell(nil), child.Cells[mid:]...),
		Next:  child.Next,
		Prev:  parent.Children[childIdx],
	}
	child.Cells = child.Cells[:mid]
	oldNext := child.Next
	child.Next = rightPage

	separator := right.Cells[0].Key
	parent.insertKeyAt(childIdx, separator, rightPage)

	if err := t.writeLeaf(ctx, rightPage, right); err != nil {
		return nil, err
	}
	if err := t.writeLeaf(ctx, parent.Children[childIdx], child); err != nil {
		return nil, err
	}
	if oldNext != 0 {
		after, err := t.readLeaf(ctx, oldNext)
		if err != nil {
			return nil, err
		}
		after.Prev = rightPage
		if err := t.writeLeaf(ctx, oldNext, after); err != nil {
			return nil, err
		}
	}
	if err := t.writeInternal(ctx, parentPage, parent); err != nil {
		return nil, err
	}
	return separator, nil
}

// splitChildInternal splits a full internal child, moving the median key
// up into the parent. Returns the separator.
func (t *BTree) splitChildInternal(ctx context.Context, parent *internalNode, parentPage uint32, childIdx int, child *internalNode) ([]byte, error) {
	rightPage, err := t.pager.AllocatePage(ctx)
	if err != nil {
		return nil, err
	}

	mid := t.minEntries()
	separator := child.Keys[mid]
	right := &internalNode{
		Keys:     append([][]byte(nil), child.Keys[mid+1:]...),
		Children: append([]uint32(nil), child.Children[mid+1:]...),
	}
	child.Keys = child.Keys[:mid]
	child.Children = child.Children[:mid+1]

	parent.insertKeyAt(childIdx, separator, rightPage)

	if err := t.writeInternal(ctx, rightPage, right); err != nil {
		return nil, err
	}
	if err := t.writeInternal(ctx, parent.Children[childIdx], child); err != nil {
		return nil, err
	}
	if err := t.writeInternal(ctx, parentPage, parent); err != nil {
		return nil, err
	}
	return separator, nil
}

// Update replaces the value stored under an existing key. The tree
// structure is untouched, so a rejected or missing entry leaves every
// page as it was.
func (t *BTree) Update(ctx context.Context, key, value []byte) error {
	if err := t.CheckEntry(key, value); err != nil {
		return err
	}
	pageNum := t.rootPage
	for {
		aLeaf, aNode, err := t.readNode(ctx, pageNum)
		if err != nil {
			return err
		}
		if aNode != nil {
			pageNum = aNode.Children[aNode.childIndex(key)]
			continue
		}
		idx, found := aLeaf.findCell(key)
		if !found {
			return ErrKeyNotFound
		}
		aLeaf.Cells[idx].Value = value
		return t.writeLeaf(ctx, pageNum, aLeaf)
	}
}

// Delete removes the key. A missing key returns ErrKeyNotFound and leaves
// every page byte for byte untouched.
func (t *BTree) Delete(ctx context.Context, key []byte) error {
	if _, err := t.Search(ctx, key); err != nil {
		return err
	}

	for {
		aLeaf, aNode, err := t.readNode(ctx, t.rootPage)
		if err != nil {
			return err
		}
		if aLeaf != nil {
			idx, found := aLeaf.findCell(key)
			if !found {
				return ErrKeyNotFound
			}
			aLeaf.removeCellAt(idx)
			return t.writeLeaf(ctx, t.rootPage, aLeaf)
		}

		pageNum := t.rootPage
		for {
			childIdx := aNode.childIndex(key)
			childPage, childLeaf, childNode, err := t.ensureChild(ctx, aNode, pageNum, childIdx)
			if err != nil {
				return err
			}

			if pageNum == t.rootPage && len(aNode.Keys) == 0 {
				// A merge collapsed the root's only separator. Pull the
				// merged child up into the root page and restart.
				if err := t.shrinkRoot(ctx, childPage, childLeaf, childNode); err != nil {
					return err
				}
				break
			}

			if childLeaf != nil {
				idx, found := childLeaf.findCell(key)
				if !found {
					return ErrKeyNotFound
				}
				childLeaf.removeCellAt(idx)
				return t.writeLeaf(ctx, childPage, childLeaf)
			}
			pageNum, aNode = childPage, childNode
		}
	}
}

// shrinkRoot copies the root's sole child into the root page and frees
// the child page, reducing tree height by one.
func (t *BTree) shrinkRoot(ctx context.Context, childPage uint32, childLeaf *leafNode, childNode *internalNode) error {
	if childLeaf != nil {
		if err := t.writeLeaf(ctx, t.rootPage, childLeaf); err != nil {
			return err
		}
	} else {
		if err := t.writeInternal(ctx, t.rootPage, childNode); err != nil {
			return err
		}
	}
	if err := t.pager.FreePage(ctx, childPage); err != nil {
		return err
	}
	t.logger.Sugar().With("root_page", t.rootPage, "freed_page", childPage).Debug("shrunk tree by one level")
	return nil
}

// ensureChild makes sure child childIdx of the parent holds more than the
// minimum entry count before the delete descends into it, borrowing from a
// sibling or merging with one when it does not. Returns the (possibly new)
// child page and its node; childIdx may shift left after a merge.
func (t *BTree) ensureChild(ctx context.Context, parent *internalNode, parentPage uint32, childIdx int) (uint32, *leafNode, *internalNode, error) {
	childPage := parent.Children[childIdx]
	childLeaf, childNode, err := t.readNode(ctx, childPage)
	if err != nil {
		return 0, nil, nil, err
	}
	count := len(parent.Keys) // reused below for sibling bounds
	entries := 0
	if childLeaf != nil {
		entries = len(childLeaf.Cells)
	} else {
		entries = len(childNode.Keys)
	}
	if entries > t.minEntries() {
		return childPage, childLeaf, childNode, nil
	}

	// Try borrowing from the left sibling
	if childIdx > 0 {
		leftPage := parent.Children[childIdx-1]
		leftLeaf, leftNode, err := t.readNode(ctx, leftPage)
		if err != nil {
			return 0, nil, nil, err
		}
		if leftLeaf != nil && len(leftLeaf.Cells) > t.minEntries() {
			moved := leftLeaf.removeCellAt(len(leftLeaf.Cells) - 1)
			childLeaf.insertCellAt(0, moved)
			parent.Keys[childIdx-1] = moved.Key
			if err := t.writeBorrow(ctx, leftPage, leftLeaf, nil, childPage, childLeaf, nil, parentPage, parent); err != nil {
				return 0, nil, nil, err
			}
			return childPage, childLeaf, childNode, nil
		}
		if leftNode != nil && len(leftNode.Keys) > t.minEntries() {
			last := len(leftNode.Keys) - 1
			childNode.Keys = append([][]byte{parent.Keys[childIdx-1]}, childNode.Keys...)
			childNode.Children = append([]uint32{leftNode.Children[last+1]}, childNode.Children...)
			parent.Keys[childIdx-1] = leftNode.Keys[last]
			leftNode.Keys = leftNode.Keys[:last]
			leftNode.Children = leftNode.Children[:last+1]
			if err := t.writeBorrow(ctx, leftPage, nil, leftNode, childPage, nil, childNode, parentPage, parent); err != nil {
				return 0, nil, nil, err
			}
			return childPage, childLeaf, childNode, nil
		}
	}

	// Try borrowing from the right sibling
	if childIdx < count {
		rightPage := parent.Children[childIdx+1]
		rightLeaf, rightNode, err := t.readNode(ctx, rightPage)
		if err != nil {
			return 0, nil, nil, err
		}
		if rightLeaf != nil && len(rightLeaf.Cells) > t.minEntries() {
			moved := rightLeaf.removeCellAt(0)
			childLeaf.insertCellAt(len(childLeaf.Cells), moved)
			parent.Keys[childIdx] = rightLeaf.Cells[0].Key
			if err := t.writeBorrow(ctx, rightPage, rightLeaf, nil, childPage, childLeaf, nil, parentPage, parent); err != nil {
				return 0, nil, nil, err
			}
			return childPage, childLeaf, childNode, nil
		}
		if rightNode != nil && len(rightNode.Keys) > t.minEntries() {
			childNode.Keys = append(childNode.Keys, parent.Keys[childIdx])
			childNode.Children = append(childNode.Children, rightNode.Children[0])
			parent.Keys[childIdx] = rightNode.Keys[0]
			rightNode.Keys = rightNode.Keys[1:]
			rightNode.Children = rightNode.Children[1:]
			if err := t.writeBorrow(ctx, rightPage, nil, rightNode, childPage, nil, childNode, parentPage, parent); err != nil {
				return 0, nil, nil, err
			}
			return childPage, childLeaf, childNode, nil
		}
	}

	// Merge with a sibling. Prefer absorbing into the left neighbour so the
	// surviving page is always the left one.
	if childIdx > 0 {
		return t.mergeChildren(ctx, parent, parentPage, childIdx-1)
	}
	return t.mergeChildren(ctx, parent, parentPage, childIdx)
}

// writeBorrow persists the three pages touched by a borrow.
func (t *BTree) writeBorrow(
	ctx context.Context,
	siblingPage uint32, siblingLeaf *leafNode, siblingNode *internalNode,
	childPage uint32, childLeaf *leafNode, childNode *internalNode,
	parentPage uint32, parent *internalNode,
) error {
	if siblingLeaf != nil {
		if err := t.writeLeaf(ctx, siblingPage, siblingLeaf); err != nil {
			return err
		}
	} else {
		if err := t.writeInternal(ctx, siblingPage, siblingNode); err != nil {
			return err
		}
	}
	if childLeaf != nil {
		if err := t.writeLeaf(ctx, childPage, childLeaf); err != nil {
			return err
		}
	} else {
		if err := t.writeInternal(ctx, childPage, childNode); err != nil {
			return err
		}
	}
	return t.writeInternal(ctx, parentPage, parent)
}

// mergeChildren merges children sepIdx and sepIdx+1 of the parent into the
// left page, dropping separator sepIdx and freeing the right page.
func (t *BTree) mergeChildren(ctx context.Context, parent *internalNode, parentPage uint32, sepIdx int) (uint32, *leafNode, *internalNode, error) {
	leftPage := parent.Children[sepIdx]
	rightPage := parent.Children[sepIdx+1]
	leftLeaf, leftNode, err := t.readNode(ctx, leftPage)
	if err != nil {
		return 0, nil, nil, err
	}
	rightLeaf, rightNode, err := t.readNode(ctx, rightPage)
	if err != nil {
		return 0, nil, nil, err
	}

	if leftLeaf != nil {
		leftLeaf.Cells = append(leftLeaf.Cells, rightLeaf.Cells...)
		leftLeaf.Next = rightLeaf.Next
		if rightLeaf.Next != 0 {
			after, err := t.readLeaf(ctx, rightLeaf.Next)
			if err != nil {
				return 0, nil, nil, err
			}
			after.Prev = leftPage
			if err := t.writeLeaf(ctx, rightLeaf.Next, after); err != nil {
				return 0, nil, nil, err
			}
		}
		if err := t.writeLeaf(ctx, leftPage, leftLeaf); err != nil {
			return 0, nil, nil, err
		}
	} else {
		// The separator is pulled down between the two halves
		leftNode.Keys = append(leftNode.Keys, parent.Keys[sepIdx])
		leftNode.Keys = append(leftNode.Keys, rightNode.Keys...)
		leftNode.Children = append(leftNode.Children, rightNode.Children...)
		if err := t.writeInternal(ctx, leftPage, leftNode); err != nil {
			return 0, nil, nil, err
		}
	}

	parent.removeKeyAt(sepIdx)
	if err := t.writeInternal(ctx, parentPage, parent); err != nil {
		return 0, nil, nil, err
	}
	if err := t.pager.FreePage(ctx, rightPage); err != nil {
		return 0, nil, nil, err
	}
	t.logger.Sugar().With("left_page", leftPage, "freed_page", rightPage).Debug("merged sibling pages")
	return leftPage, leftLeaf, leftNode, nil
}

// Cursor iterates leaf cells in key order, or reverse key order, within
// inclusive bounds.
type Cursor struct {
	tree    *BTree
	leaf    *leafNode
	page    uint32
	idx     int
	low     []byte // nil means unbounded
	high    []byte // nil means unbounded
	reverse bool
	done    bool
}

// Scan positions a cursor on the first cell within [low, high], walking
// forward, or on the last one walking backward when reverse is set. Nil
// bounds are unbounded.
func (t *BTree) Scan(ctx context.Context, low, high []byte, reverse bool) (*Cursor, error) {
	aCursor := &Cursor{
		tree:    t,
		low:     low,
		high:    high,
		reverse: reverse,
	}

	if !reverse {
		page, aLeaf, err := t.descendToLeaf(ctx, low, false)
		if err != nil {
			return nil, err
		}
		aCursor.page, aCursor.leaf = page, aLeaf
		if low == nil {
			aCursor.idx = 0
		} else {
			aCursor.idx, _ = aLeaf.findCell(low)
		}
		return aCursor, nil
	}

	page, aLeaf, err := t.descendToLeaf(ctx, high, true)
	if err != nil {
		return nil, err
	}
	aCursor.page, aCursor.leaf = page, aLeaf
	if high == nil {
		aCursor.idx = len(aLeaf.Cells) - 1
	} else {
		idx, found := aLeaf.findCell(high)
		if !found {
			idx -= 1 // first cell <= high
		}
		aCursor.idx = idx
	}
	return aCursor, nil
}

// descendToLeaf walks down to the leaf that would contain the key. A nil
// key selects the leftmost leaf, or the rightmost when last is set.
func (t *BTree) descendToLeaf(ctx context.Context, key []byte, last bool) (uint32, *leafNode, error) {
	pageNum := t.rootPage
	for {
		aLeaf, aNode, err := t.readNode(ctx, pageNum)
		if err != nil {
			return 0, nil, err
		}
		if aLeaf != nil {
			return pageNum, aLeaf, nil
		}
		if key != nil {
			pageNum = aNode.Children[aNode.childIndex(key)]
		} else if last {
			pageNum = aNode.Children[len(aNode.Children)-1]
		} else {
			pageNum = aNode.Children[0]
		}
	}
}

// Next returns the next key/value pair, or ErrNoMoreRows once the scan is
// exhausted. Returned slices are owned by the caller.
func (c *Cursor) Next(ctx context.Context) ([]byte, []byte, error) {
	if c.done {
		return nil, nil, ErrNoMoreRows
	}
	for {
		if c.idx >= 0 && c.idx < len(c.leaf.Cells) {
			aCell := c.leaf.Cells[c.idx]
			if !c.reverse && c.high != nil && bytes.Compare(aCell.Key, c.high) > 0 {
				c.done = true
				return nil, nil, ErrNoMoreRows
			}
			if c.reverse && c.low != nil && bytes.Compare(aCell.Key, c.low) < 0 {
				c.done = true
				return nil, nil, ErrNoMoreRows
			}
			if c.reverse {
				c.idx -= 1
			} else {
				c.idx += 1
			}
			return aCell.Key, aCell.Value, nil
		}

		var sibling uint32
		if c.reverse {
			sibling = c.leaf.Prev
		} else {
			sibling = c.leaf.Next
		}
		if sibling == 0 {
			c.done = true
			return nil, nil, ErrNoMoreRows
		}
		aLeaf, err := c.tree.readLeaf(ctx, sibling)
		if err != nil {
			return nil, nil, err
		}
		c.page, c.leaf = sibling, aLeaf
		if c.reverse {
			c.idx = len(aLeaf.Cells) - 1
		} else {
			c.idx = 0
		}
	}
}
