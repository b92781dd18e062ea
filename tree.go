package chidb

// This file implements the logical tree operations: Find (key-ordered
// descent), Insert (split-and-propagate with root promotion), and Split
// (the split primitive exposed for tests).
//
// The root-to-leaf path during insertion is an explicit []*Node built on
// descent, rather than a linked list threaded through the call stack.

// Find looks up key in the table B-Tree rooted at nroot and returns its
// data payload. Find is defined only for table trees; called on an index
// tree it returns ErrNotFound.
func Find(bt *BTree, nroot uint32, key uint32) ([]byte, error) {
	n, err := bt.GetNodeByPage(nroot)
	if err != nil {
		return nil, err
	}

	for n.Type() == TableInternal {
		next, err := descendChild(bt, n, key)
		if err != nil {
			return nil, err
		}
		n = next
	}

	if n.Type() != TableLeaf {
		return nil, ErrNotFound
	}

	for i := uint16(0); i < n.NumCells(); i++ {
		c, err := n.GetCell(i)
		if err != nil {
			return nil, err
		}
		if c.Key() == key {
			return c.(TableLeafCell).Data, nil
		}
	}
	return nil, ErrNotFound
}

// InsertInTable inserts a table row (key, data) into the table B-Tree
// rooted at nroot.
func InsertInTable(bt *BTree, nroot uint32, key uint32, data []byte) error {
	return insert(bt, nroot, NewTableLeafCell(key, data))
}

// InsertInIndex inserts an index entry into the index B-Tree rooted at
// nroot.
func InsertInIndex(bt *BTree, nroot uint32, keyIdx, keyPk uint32) error {
	return insert(bt, nroot, NewIndexLeafCell(keyIdx, keyPk))
}

// descendChild follows the choice rule shared by Find and Insert: the
// first child whose separating key is ≥ key, else the right pointer.
func descendChild(bt *BTree, n *Node, key uint32) (*Node, error) {
	for i := uint16(0); i < n.NumCells(); i++ {
		c, err := n.GetCell(i)
		if err != nil {
			return nil, err
		}
		if key <= c.Key() {
			return bt.GetNodeByPage(childPageOf(c))
		}
	}
	return bt.GetNodeByPage(n.RightPage())
}

// descendPath walks root-to-leaf recording every node visited, for use by
// Insert's split-propagation loop.
func descendPath(bt *BTree, nroot uint32, key uint32) ([]*Node, error) {
	root, err := bt.GetNodeByPage(nroot)
	if err != nil {
		return nil, err
	}
	path := []*Node{root}
	cur := root
	for cur.Type().isInternal() {
		child, err := descendChild(bt, cur, key)
		if err != nil {
			return nil, err
		}
		path = append(path, child)
		cur = child
	}
	return path, nil
}

func checkDuplicate(leaf *Node, key uint32) error {
	for i := uint16(0); i < leaf.NumCells(); i++ {
		c, err := leaf.GetCell(i)
		if err != nil {
			return err
		}
		if c.Key() == key {
			return ErrDuplicate
		}
	}
	return nil
}

// insert descends recording the path, rejects duplicates at the
// destination leaf, then repeatedly splits overfull nodes and propagates
// the promoted separator upward until some ancestor has room, or the path
// is exhausted and the root is split.
func insert(bt *BTree, nroot uint32, cell Cell) error {
	path, err := descendPath(bt, nroot, cell.Key())
	if err != nil {
		return err
	}
	leaf := path[len(path)-1]
	if err := checkDuplicate(leaf, cell.Key()); err != nil {
		return err
	}

	pending := cell
	var rightOfPrevSplit uint32
	haveRightOfPrevSplit := false

	for idx := len(path) - 1; ; idx-- {
		cur := path[idx]

		if cur.IsInsertable(pending) {
			return insertNonFull(bt, cur, pending, rightOfPrevSplit, haveRightOfPrevSplit)
		}

		isRoot := idx == 0
		leftPageNum := cur.PageNumber()
		if isRoot {
			// The root's page number must keep naming the tree's root: both
			// split halves get fresh pages, and a new internal node is
			// written into the original root page afterward.
			leftPageNum = bt.pager.AllocatePage()
		}

		left, right, promoted, err := performSplit(bt, cur, pending, rightOfPrevSplit, haveRightOfPrevSplit, leftPageNum)
		if err != nil {
			return err
		}
		_ = left

		if isRoot {
			return bt.promoteRoot(nroot, promoted, right.PageNumber())
		}

		pending = promoted
		rightOfPrevSplit = right.PageNumber()
		haveRightOfPrevSplit = true
	}
}

// insertNonFull inserts cell into btn, which the caller has established
// has room. When btn is an internal node receiving the separator promoted
// by a child split (haveRightChild), it also repairs the pointer that must
// now reference the split's new right sibling: either btn's right_page
// (if the separator becomes the last cell) or the child_page of the cell
// that follows it (mutated on the page in place, never through a
// decoded-then-discarded copy).
func insertNonFull(bt *BTree, btn *Node, cell Cell, rightChild uint32, haveRightChild bool) error {
	idx := btn.NumCells()
	for i := uint16(0); i < btn.NumCells(); i++ {
		c, err := btn.GetCell(i)
		if err != nil {
			return err
		}
		if cell.Key() < c.Key() {
			idx = i
			break
		}
	}

	if btn.Type().isInternal() && haveRightChild {
		if idx == btn.NumCells() {
			btn.SetRightPage(rightChild)
		} else if err := btn.setChildPage(idx, rightChild); err != nil {
			return err
		}
	}

	if err := btn.InsertCell(idx, cell); err != nil {
		return err
	}
	return btn.write(bt.pager)
}

// buildOverfullList merges btn's existing cells with pending, in key
// order, patching the child pointer of the cell that ends up immediately
// after pending (when btn is internal) to rightOfPrevSplit — the same
// repair insertNonFull performs, needed here because this merge happens
// one level below where insertNonFull would otherwise run.
func buildOverfullList(btn *Node, pending Cell, rightOfPrevSplit uint32, haveRightOfPrevSplit bool) ([]Cell, error) {
	n := btn.NumCells()
	list := make([]Cell, 0, n+1)
	inserted := false
	for i := uint16(0); i < n; i++ {
		c, err := btn.GetCell(i)
		if err != nil {
			return nil, err
		}
		if !inserted && pending.Key() < c.Key() {
			list = append(list, pending)
			if btn.Type().isInternal() && haveRightOfPrevSplit {
				c = withChildPage(c, rightOfPrevSplit)
			}
			list = append(list, c)
			inserted = true
		} else {
			list = append(list, c)
		}
	}
	if !inserted {
		list = append(list, pending)
	}
	return list, nil
}

// performSplit partitions btn's cells (plus pending) into two fresh nodes.
// leftPageNum is either btn's own page number (the common case: the left
// half keeps the original page so existing references to it stay valid)
// or a freshly allocated page (root split: see insert's isRoot branch).
func performSplit(bt *BTree, btn *Node, pending Cell, rightOfPrevSplit uint32, haveRightOfPrevSplit bool, leftPageNum uint32) (left, right *Node, promoted Cell, err error) {
	n := btn.NumCells()
	medianIndex := n / 2

	list, err := buildOverfullList(btn, pending, rightOfPrevSplit, haveRightOfPrevSplit)
	if err != nil {
		return nil, nil, nil, err
	}

	leftPage, err := bt.pager.ReadPage(leftPageNum)
	if err != nil {
		return nil, nil, nil, err
	}
	left = newEmptyNode(leftPage, bt.pager.PageSize(), btn.Type())

	rightPageNum := bt.pager.AllocatePage()
	rightPage, err := bt.pager.ReadPage(rightPageNum)
	if err != nil {
		return nil, nil, nil, err
	}
	right = newEmptyNode(rightPage, bt.pager.PageSize(), btn.Type())

	if btn.Type().isLeaf() {
		for i := uint16(0); i <= medianIndex; i++ {
			if err := left.InsertCell(i, list[i]); err != nil {
				return nil, nil, nil, err
			}
		}
		for i := medianIndex + 1; i < uint16(len(list)); i++ {
			if err := right.InsertCell(i-medianIndex-1, list[i]); err != nil {
				return nil, nil, nil, err
			}
		}
		promoted = promotedSeparator(btn.Type(), list[medianIndex], left.PageNumber())
	} else {
		for i := uint16(0); i < medianIndex; i++ {
			if err := left.InsertCell(i, list[i]); err != nil {
				return nil, nil, nil, err
			}
		}
		for i := medianIndex + 1; i < uint16(len(list)); i++ {
			if err := right.InsertCell(i-medianIndex-1, list[i]); err != nil {
				return nil, nil, nil, err
			}
		}
		median := list[medianIndex]
		left.SetRightPage(childPageOf(median))
		rightRightPage := btn.RightPage()
		if haveRightOfPrevSplit && list[len(list)-1].Key() == pending.Key() {
			// pending landed at the tail: the split child's new right half
			// takes over right_page, as in insertNonFull.
			rightRightPage = rightOfPrevSplit
		}
		right.SetRightPage(rightRightPage)
		promoted = promotedSeparator(btn.Type(), median, left.PageNumber())
	}

	// Children before parent: a failure writing the parent's promoted
	// cell (handled by the caller) leaves these pages allocated but
	// unreferenced rather than leaving a dangling pointer.
	if err := left.write(bt.pager); err != nil {
		return nil, nil, nil, err
	}
	if err := right.write(bt.pager); err != nil {
		return nil, nil, nil, err
	}

	return left, right, promoted, nil
}

// promoteRoot grows the tree by one level: the original root page is
// rewritten as a fresh internal node holding the single promoted
// separator, with right_page pointing at the split's right half. The
// advertised root page number (nroot) never changes.
func (bt *BTree) promoteRoot(nroot uint32, promoted Cell, rightPageNum uint32) error {
	rootPage, err := bt.pager.ReadPage(nroot)
	if err != nil {
		return err
	}

	rootType := TableInternal
	if _, ok := promoted.(IndexInternalCell); ok {
		rootType = IndexInternal
	}

	newRoot := newEmptyNode(rootPage, bt.pager.PageSize(), rootType)
	if err := newRoot.InsertCell(0, promoted); err != nil {
		return err
	}
	newRoot.SetRightPage(rightPageNum)

	bt.log.WithFields(map[string]interface{}{
		"root": nroot, "right": rightPageNum,
	}).Info("chidb: promoted new root, tree height increased")

	return newRoot.write(bt.pager)
}

// Split forces a split of the node at childPage into two nodes, promoting
// a separator into the node at parentPage, without requiring an
// accompanying logical insert. It is a primitive exposed for tests that
// want to commit to a split directly. parentCellIndex is accepted for
// signature parity with callers that already know where child sits in
// parent; the actual insertion position is always recomputed from the
// promoted key, since the parent's cell order is the source of truth, not
// a caller-supplied index.
func Split(bt *BTree, parentPage, childPage uint32, parentCellIndex uint16) (newRightChild uint32, err error) {
	_ = parentCellIndex

	parent, err := bt.GetNodeByPage(parentPage)
	if err != nil {
		return 0, err
	}
	child, err := bt.GetNodeByPage(childPage)
	if err != nil {
		return 0, err
	}

	n := child.NumCells()
	medianIndex := n / 2
	cells := make([]Cell, n)
	for i := uint16(0); i < n; i++ {
		c, err := child.GetCell(i)
		if err != nil {
			return 0, err
		}
		cells[i] = c
	}

	leftPage, err := bt.pager.ReadPage(childPage)
	if err != nil {
		return 0, err
	}
	left := newEmptyNode(leftPage, bt.pager.PageSize(), child.Type())

	rightPageNum := bt.pager.AllocatePage()
	rightPage, err := bt.pager.ReadPage(rightPageNum)
	if err != nil {
		return 0, err
	}
	right := newEmptyNode(rightPage, bt.pager.PageSize(), child.Type())

	var promoted Cell
	if child.Type().isLeaf() {
		for i := uint16(0); i <= medianIndex; i++ {
			if err := left.InsertCell(i, cells[i]); err != nil {
				return 0, err
			}
		}
		for i := medianIndex + 1; i < n; i++ {
			if err := right.InsertCell(i-medianIndex-1, cells[i]); err != nil {
				return 0, err
			}
		}
		promoted = promotedSeparator(child.Type(), cells[medianIndex], left.PageNumber())
	} else {
		for i := uint16(0); i < medianIndex; i++ {
			if err := left.InsertCell(i, cells[i]); err != nil {
				return 0, err
			}
		}
		for i := medianIndex + 1; i < n; i++ {
			if err := right.InsertCell(i-medianIndex-1, cells[i]); err != nil {
				return 0, err
			}
		}
		left.SetRightPage(childPageOf(cells[medianIndex]))
		right.SetRightPage(child.RightPage())
		promoted = promotedSeparator(child.Type(), cells[medianIndex], left.PageNumber())
	}

	if err := left.write(bt.pager); err != nil {
		return 0, err
	}
	if err := right.write(bt.pager); err != nil {
		return 0, err
	}
	if err := insertNonFull(bt, parent, promoted, right.PageNumber(), true); err != nil {
		return 0, err
	}

	return right.PageNumber(), nil
}

func promotedSeparator(origType NodeType, median Cell, leftPageNum uint32) Cell {
	if origType == TableLeaf || origType == TableInternal {
		return NewTableInternalCell(median.Key(), leftPageNum)
	}
	return NewIndexInternalCell(median.Key(), leftPageNum, keyPkOf(median))
}

func childPageOf(c Cell) uint32 {
	switch v := c.(type) {
	case TableInternalCell:
		return v.ChildPage
	case IndexInternalCell:
		return v.ChildPage
	default:
		return 0
	}
}

func keyPkOf(c Cell) uint32 {
	switch v := c.(type) {
	case IndexInternalCell:
		return v.KeyPk
	case IndexLeafCell:
		return v.KeyPk
	default:
		return 0
	}
}

func withChildPage(c Cell, newChild uint32) Cell {
	switch v := c.(type) {
	case TableInternalCell:
		v.ChildPage = newChild
		return v
	case IndexInternalCell:
		v.ChildPage = newChild
		return v
	default:
		return c
	}
}
