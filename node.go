package chidb

import "fmt"

// NodeType identifies the kind of B-Tree node a page holds.
type NodeType byte

const (
	TableInternal NodeType = 0x05
	TableLeaf     NodeType = 0x0D
	IndexInternal NodeType = 0x02
	IndexLeaf     NodeType = 0x0A
)

func (t NodeType) isInternal() bool {
	return t == TableInternal || t == IndexInternal
}

func (t NodeType) isLeaf() bool { return !t.isInternal() }

func (t NodeType) String() string {
	switch t {
	case TableInternal:
		return "table-internal"
	case TableLeaf:
		return "table-leaf"
	case IndexInternal:
		return "index-internal"
	case IndexLeaf:
		return "index-leaf"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}

// Page header offsets, relative to headerOffset.
const (
	hdrType        = 0
	hdrFreeOffset  = 1
	hdrNCells      = 3
	hdrCellsOffset = 5
	hdrReserved    = 7
	hdrRightPage   = 8

	leafHeaderSize = 8
	intHeaderSize  = 12
)

// indexTypeTag is the 4-byte marker chidb writes at the front of index
// cells (both internal and leaf), per the chidb file format.
var indexTypeTag = [4]byte{0x0B, 0x03, 0x04, 0x04}

// Node is a parsed, in-memory view over a single page, borrowed from the
// Pager for the duration of the view. Mutations to the cell area happen
// directly on the underlying page bytes (via InsertCell); mutations to the
// header fields (type, offsets, cell count, right page) are buffered in
// the Node and only written to the page by sync/write.
type Node struct {
	page     *MemPage
	pageSize uint16

	typ         NodeType
	freeOffset  uint16
	nCells      uint16
	cellsOffset uint16
	rightPage   uint32

	headerOffset   uint16
	headerSize     uint16
	cellOffsetBase uint16
}

func headerOffsetFor(npage uint32) uint16 {
	if npage == 1 {
		return 100
	}
	return 0
}

// newEmptyNode initializes page's bytes (in memory only) to encode an
// empty node of the given type, per spec's create_empty.
func newEmptyNode(page *MemPage, pageSize uint16, typ NodeType) *Node {
	ho := headerOffsetFor(page.number)
	hs := uint16(leafHeaderSize)
	if typ.isInternal() {
		hs = intHeaderSize
	}

	n := &Node{
		page:           page,
		pageSize:       pageSize,
		typ:            typ,
		freeOffset:     ho + hs,
		nCells:         0,
		cellsOffset:    pageSize,
		rightPage:      0,
		headerOffset:   ho,
		headerSize:     hs,
		cellOffsetBase: ho + hs,
	}
	n.sync()
	return n
}

// loadNode parses a page's bytes into a Node view.
func loadNode(page *MemPage, pageSize uint16) (*Node, error) {
	ho := headerOffsetFor(page.number)
	data := page.Bytes()

	typ := NodeType(data[ho+hdrType])
	switch typ {
	case TableInternal, TableLeaf, IndexInternal, IndexLeaf:
	default:
		return nil, fmt.Errorf("%w: page %d has invalid node type 0x%02x", ErrCorruptHeader, page.number, byte(typ))
	}

	hs := uint16(leafHeaderSize)
	if typ.isInternal() {
		hs = intHeaderSize
	}

	n := &Node{
		page:           page,
		pageSize:       pageSize,
		typ:            typ,
		freeOffset:     getUint16(data[ho+hdrFreeOffset:]),
		nCells:         getUint16(data[ho+hdrNCells:]),
		cellsOffset:    getUint16(data[ho+hdrCellsOffset:]),
		headerOffset:   ho,
		headerSize:     hs,
		cellOffsetBase: ho + hs,
	}
	if typ.isInternal() {
		n.rightPage = getUint32(data[ho+hdrRightPage:])
	}
	return n, nil
}

// sync writes the buffered header fields back into the page bytes. It does
// not touch the cell area, which InsertCell/setChildPage already write
// directly.
func (n *Node) sync() {
	data := n.page.Bytes()
	ho := n.headerOffset

	putUint8(data[ho+hdrType:], byte(n.typ))
	putUint16(data[ho+hdrFreeOffset:], n.freeOffset)
	putUint16(data[ho+hdrNCells:], n.nCells)
	putUint16(data[ho+hdrCellsOffset:], n.cellsOffset)
	data[ho+hdrReserved] = 0
	if n.typ.isInternal() {
		putUint32(data[ho+hdrRightPage:], n.rightPage)
	}
}

// write syncs and persists the node to disk through the pager.
func (n *Node) write(pager *Pager) error {
	n.sync()
	return pager.WritePage(n.page)
}

func (n *Node) Type() NodeType         { return n.typ }
func (n *Node) NumCells() uint16       { return n.nCells }
func (n *Node) PageNumber() uint32     { return n.page.number }
func (n *Node) RightPage() uint32      { return n.rightPage }
func (n *Node) SetRightPage(p uint32)  { n.rightPage = p }

// cellOffset returns the absolute byte offset, within the page, of cell i.
func (n *Node) cellOffset(i uint16) uint16 {
	return getUint16(n.page.Bytes()[n.cellOffsetBase+i*2:])
}

// GetCell reads and decodes cell i (0-based). The returned cell's payload
// (for TableLeaf) is a sub-slice of the page buffer, not a copy.
func (n *Node) GetCell(i uint16) (Cell, error) {
	if i >= n.nCells {
		return nil, fmt.Errorf("%w: cell %d (have %d)", ErrCellNumber, i, n.nCells)
	}
	off := n.cellOffset(i)
	data := n.page.Bytes()

	switch n.typ {
	case TableInternal:
		childPage := getUint32(data[off:])
		key := getUint32(data[off+4:])
		return TableInternalCell{key: key, ChildPage: childPage}, nil

	case TableLeaf:
		size := DecodeVarint32(data[off:])
		key := DecodeVarint32(data[off+4:])
		payload := data[off+8 : off+8+uint16(size)]
		return TableLeafCell{key: key, Data: payload}, nil

	case IndexInternal:
		childPage := getUint32(data[off:])
		keyIdx := getUint32(data[off+8:])
		keyPk := getUint32(data[off+12:])
		return IndexInternalCell{key: keyIdx, ChildPage: childPage, KeyPk: keyPk}, nil

	case IndexLeaf:
		keyIdx := getUint32(data[off+4:])
		keyPk := getUint32(data[off+8:])
		return IndexLeafCell{key: keyIdx, KeyPk: keyPk}, nil

	default:
		return nil, fmt.Errorf("chidb: invalid node type %v", n.typ)
	}
}

// setChildPage overwrites, in place on the page, the child-page field of
// cell i. Used by insertNonFull to repair the separator pointer that
// follows the newly-inserted cell, without reading-decoding-rewriting the
// whole cell.
func (n *Node) setChildPage(i uint16, childPage uint32) error {
	if i >= n.nCells {
		return fmt.Errorf("%w: cell %d (have %d)", ErrCellNumber, i, n.nCells)
	}
	if !n.typ.isInternal() {
		return fmt.Errorf("chidb: setChildPage on non-internal node type %v", n.typ)
	}
	off := n.cellOffset(i)
	putUint32(n.page.Bytes()[off:], childPage)
	return nil
}

// cellBytes returns the on-disk size, in bytes, of a cell's encoding.
func cellBytes(c Cell) uint16 {
	switch v := c.(type) {
	case TableInternalCell:
		return 8
	case TableLeafCell:
		return 8 + uint16(len(v.Data))
	case IndexInternalCell:
		return 16
	case IndexLeafCell:
		return 12
	default:
		return 0
	}
}

// IsInsertable reports whether c can be inserted into n without requiring
// a split first.
func (n *Node) IsInsertable(c Cell) bool {
	available := int(n.cellsOffset) - int(n.freeOffset)
	needed := 2 + int(cellBytes(c))
	return available >= needed
}

// InsertCell inserts c at logical position i (0-based), shifting the
// cell-offset array to keep cells in key order. Assumes IsInsertable(c).
func (n *Node) InsertCell(i uint16, c Cell) error {
	if i > n.nCells {
		return fmt.Errorf("%w: insert at %d (have %d cells)", ErrCellNumber, i, n.nCells)
	}

	size := cellBytes(c)
	newCellOffset := n.cellsOffset - size
	data := n.page.Bytes()
	writeCellBytes(data[newCellOffset:newCellOffset+size], c)
	n.cellsOffset = newCellOffset

	arr := n.cellOffsetBase
	// shift [i, nCells) right by one slot (2 bytes each)
	for j := n.nCells; j > i; j-- {
		src := getUint16(data[arr+(j-1)*2:])
		putUint16(data[arr+j*2:], src)
	}
	putUint16(data[arr+i*2:], newCellOffset)

	n.nCells++
	n.freeOffset += 2
	return nil
}

func writeCellBytes(buf []byte, c Cell) {
	switch v := c.(type) {
	case TableInternalCell:
		putUint32(buf, v.ChildPage)
		putUint32(buf[4:], v.key)
	case TableLeafCell:
		EncodeVarint32Into(buf, uint32(len(v.Data)))
		EncodeVarint32Into(buf[4:], v.key)
		copy(buf[8:], v.Data)
	case IndexInternalCell:
		putUint32(buf, v.ChildPage)
		copy(buf[4:8], indexTypeTag[:])
		putUint32(buf[8:], v.key)
		putUint32(buf[12:], v.KeyPk)
	case IndexLeafCell:
		copy(buf[0:4], indexTypeTag[:])
		putUint32(buf[4:], v.key)
		putUint32(buf[8:], v.KeyPk)
	}
}

// Cell is a keyed record within a node. Leaf cells carry payload; internal
// cells carry a child pointer. The concrete type determines the node type
// it may be inserted into.
type Cell interface {
	Key() uint32
}

// TableInternalCell routes keys ≤ Key to ChildPage.
type TableInternalCell struct {
	key       uint32
	ChildPage uint32
}

func NewTableInternalCell(key, childPage uint32) TableInternalCell {
	return TableInternalCell{key: key, ChildPage: childPage}
}

func (c TableInternalCell) Key() uint32 { return c.key }

// TableLeafCell holds a table row's payload. Data references bytes inside
// a pinned page buffer when returned from GetCell; callers that need it to
// outlive the node must copy it.
type TableLeafCell struct {
	key  uint32
	Data []byte
}

func NewTableLeafCell(key uint32, data []byte) TableLeafCell {
	return TableLeafCell{key: key, Data: data}
}

func (c TableLeafCell) Key() uint32 { return c.key }

// IndexInternalCell routes keys ≤ Key (the indexed field) to ChildPage;
// KeyPk is the primary key carried with the separator. Descent and
// ordering compare only Key, never KeyPk.
type IndexInternalCell struct {
	key       uint32
	ChildPage uint32
	KeyPk     uint32
}

func NewIndexInternalCell(keyIdx, childPage, keyPk uint32) IndexInternalCell {
	return IndexInternalCell{key: keyIdx, ChildPage: childPage, KeyPk: keyPk}
}

func (c IndexInternalCell) Key() uint32 { return c.key }

// IndexLeafCell maps an indexed field value to the primary key of the row
// where it occurs.
type IndexLeafCell struct {
	key   uint32
	KeyPk uint32
}

func NewIndexLeafCell(keyIdx, keyPk uint32) IndexLeafCell {
	return IndexLeafCell{key: keyIdx, KeyPk: keyPk}
}

func (c IndexLeafCell) Key() uint32 { return c.key }
