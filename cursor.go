package chidb

import "fmt"

type cursorFrame struct {
	node  *Node
	index uint16
}

// Cursor walks a B-Tree's leaves in key order. It holds a root-to-leaf
// stack of (node, child-index) frames rather than a linked list threaded
// through the call stack.
//
// Prev is the mirror image of Next (descend rightmost instead of
// leftmost, decrement instead of increment); Seek follows the same
// key-ordered descent Find uses, positioning at the leaf's first cell
// with key ≥ target.
type Cursor struct {
	bt    *BTree
	nroot uint32
	stack []cursorFrame
	eof   bool
}

// NewCursor creates a cursor over the tree rooted at nroot. The cursor is
// not positioned until Rewind or Seek is called.
func NewCursor(bt *BTree, nroot uint32) *Cursor {
	return &Cursor{bt: bt, nroot: nroot, eof: true}
}

// childAt returns the page number of node's child at index: cells
// 0..NumCells()-1 route through their own child_page, and index ==
// NumCells() routes through right_page.
func childAt(node *Node, index uint16) (uint32, error) {
	if index == node.NumCells() {
		return node.RightPage(), nil
	}
	cell, err := node.GetCell(index)
	if err != nil {
		return 0, err
	}
	return childPageOf(cell), nil
}

// Rewind positions the cursor at the first cell in key order.
func (c *Cursor) Rewind() error {
	node, err := c.bt.GetNodeByPage(c.nroot)
	if err != nil {
		return err
	}
	c.stack = c.stack[:0]
	return c.descendLeftmost(node)
}

func (c *Cursor) descendLeftmost(node *Node) error {
	for node.Type().isInternal() {
		c.stack = append(c.stack, cursorFrame{node: node, index: 0})
		childPage, err := childAt(node, 0)
		if err != nil {
			return err
		}
		child, err := c.bt.GetNodeByPage(childPage)
		if err != nil {
			return err
		}
		node = child
	}
	c.stack = append(c.stack, cursorFrame{node: node, index: 0})
	c.eof = node.NumCells() == 0
	return nil
}

func (c *Cursor) descendRightmost(node *Node) error {
	for node.Type().isInternal() {
		idx := node.NumCells()
		c.stack = append(c.stack, cursorFrame{node: node, index: idx})
		childPage, err := childAt(node, idx)
		if err != nil {
			return err
		}
		child, err := c.bt.GetNodeByPage(childPage)
		if err != nil {
			return err
		}
		node = child
	}
	if node.NumCells() == 0 {
		c.stack = append(c.stack, cursorFrame{node: node, index: 0})
		c.eof = true
		return nil
	}
	c.stack = append(c.stack, cursorFrame{node: node, index: node.NumCells() - 1})
	c.eof = false
	return nil
}

// Next advances the cursor to the next cell in key order. Calling Next
// when the cursor is at EOF (or unpositioned) returns ErrNotFound.
func (c *Cursor) Next() error {
	if len(c.stack) == 0 || c.eof {
		return ErrNotFound
	}

	top := len(c.stack) - 1
	c.stack[top].index++
	if c.stack[top].index < c.stack[top].node.NumCells() {
		return nil
	}
	c.stack = c.stack[:top]

	for len(c.stack) > 0 {
		top := len(c.stack) - 1
		c.stack[top].index++
		if c.stack[top].index > c.stack[top].node.NumCells() {
			c.stack = c.stack[:top]
			continue
		}
		childPage, err := childAt(c.stack[top].node, c.stack[top].index)
		if err != nil {
			return err
		}
		child, err := c.bt.GetNodeByPage(childPage)
		if err != nil {
			return err
		}
		return c.descendLeftmost(child)
	}

	c.eof = true
	return nil
}

// Prev moves the cursor to the previous cell in key order.
func (c *Cursor) Prev() error {
	if len(c.stack) == 0 || c.eof {
		return ErrNotFound
	}

	top := len(c.stack) - 1
	if c.stack[top].index > 0 {
		c.stack[top].index--
		return nil
	}
	c.stack = c.stack[:top]

	for len(c.stack) > 0 {
		top := len(c.stack) - 1
		if c.stack[top].index == 0 {
			c.stack = c.stack[:top]
			continue
		}
		c.stack[top].index--
		childPage, err := childAt(c.stack[top].node, c.stack[top].index)
		if err != nil {
			return err
		}
		child, err := c.bt.GetNodeByPage(childPage)
		if err != nil {
			return err
		}
		return c.descendRightmost(child)
	}

	c.eof = true
	return nil
}

// Seek positions the cursor at the first cell whose key is ≥ key, using
// the same ordering rule as Find. If every cell's key is less than key,
// the cursor ends at EOF.
func (c *Cursor) Seek(key uint32) error {
	node, err := c.bt.GetNodeByPage(c.nroot)
	if err != nil {
		return err
	}
	c.stack = c.stack[:0]

	for node.Type().isInternal() {
		idx := node.NumCells()
		for i := uint16(0); i < node.NumCells(); i++ {
			cell, err := node.GetCell(i)
			if err != nil {
				return err
			}
			if key <= cell.Key() {
				idx = i
				break
			}
		}
		c.stack = append(c.stack, cursorFrame{node: node, index: idx})
		childPage, err := childAt(node, idx)
		if err != nil {
			return err
		}
		child, err := c.bt.GetNodeByPage(childPage)
		if err != nil {
			return err
		}
		node = child
	}

	idx := node.NumCells()
	for i := uint16(0); i < node.NumCells(); i++ {
		cell, err := node.GetCell(i)
		if err != nil {
			return err
		}
		if cell.Key() >= key {
			idx = i
			break
		}
	}
	c.stack = append(c.stack, cursorFrame{node: node, index: idx})
	c.eof = idx >= node.NumCells()
	return nil
}

// Valid reports whether the cursor is positioned on a cell.
func (c *Cursor) Valid() bool {
	return !c.eof && len(c.stack) > 0
}

func (c *Cursor) leafCell() (Cell, error) {
	if !c.Valid() {
		return nil, ErrNotFound
	}
	top := c.stack[len(c.stack)-1]
	return top.node.GetCell(top.index)
}

// Key returns the key of the cell the cursor is positioned on.
func (c *Cursor) Key() (uint32, error) {
	cell, err := c.leafCell()
	if err != nil {
		return 0, err
	}
	return cell.Key(), nil
}

// Data returns the row payload of the cell the cursor is positioned on.
// Valid only for cursors over a table tree.
func (c *Cursor) Data() ([]byte, error) {
	cell, err := c.leafCell()
	if err != nil {
		return nil, err
	}
	leaf, ok := cell.(TableLeafCell)
	if !ok {
		return nil, fmt.Errorf("chidb: cursor is not positioned on a table row")
	}
	return leaf.Data, nil
}

// KeyPk returns the primary key referenced by the cell the cursor is
// positioned on. Valid only for cursors over an index tree.
func (c *Cursor) KeyPk() (uint32, error) {
	cell, err := c.leafCell()
	if err != nil {
		return 0, err
	}
	leaf, ok := cell.(IndexLeafCell)
	if !ok {
		return 0, fmt.Errorf("chidb: cursor is not positioned on an index entry")
	}
	return leaf.KeyPk, nil
}
