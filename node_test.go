package chidb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, npage uint32, pageSize uint16, typ NodeType) *Node {
	t.Helper()
	page := &MemPage{number: npage, data: make([]byte, pageSize)}
	return newEmptyNode(page, pageSize, typ)
}

func TestNewEmptyLeafHeaderLayout(t *testing.T) {
	n := newTestNode(t, 2, 1024, TableLeaf)
	assert.Equal(t, uint16(0), n.NumCells())
	assert.Equal(t, uint16(1024), n.cellsOffset)
	assert.Equal(t, uint16(0), n.headerOffset)
	assert.Equal(t, uint16(leafHeaderSize), n.freeOffset)
}

func TestNewEmptyNodeOnPageOneOffsetsByFileHeader(t *testing.T) {
	n := newTestNode(t, 1, 1024, TableLeaf)
	assert.Equal(t, uint16(100), n.headerOffset)
	assert.Equal(t, uint16(100+leafHeaderSize), n.freeOffset)
}

func TestInsertCellKeepsOffsetArrayInKeyOrder(t *testing.T) {
	n := newTestNode(t, 2, 1024, TableLeaf)

	require.NoError(t, n.InsertCell(0, NewTableLeafCell(30, []byte("c"))))
	require.NoError(t, n.InsertCell(0, NewTableLeafCell(10, []byte("a"))))
	require.NoError(t, n.InsertCell(1, NewTableLeafCell(20, []byte("b"))))

	require.Equal(t, uint16(3), n.NumCells())
	for i, want := range []uint32{10, 20, 30} {
		c, err := n.GetCell(uint16(i))
		require.NoError(t, err)
		assert.Equal(t, want, c.Key())
	}
}

func TestIsInsertableReflectsRemainingSpace(t *testing.T) {
	n := newTestNode(t, 2, 512, TableLeaf)
	small := NewTableLeafCell(1, []byte("x"))
	assert.True(t, n.IsInsertable(small))

	huge := NewTableLeafCell(2, make([]byte, 4096))
	assert.False(t, n.IsInsertable(huge))
}

func TestIsInsertableExactByteBoundary(t *testing.T) {
	n := newTestNode(t, 2, 512, TableLeaf)
	cell := NewTableLeafCell(1, make([]byte, 10))
	needed := 2 + int(cellBytes(cell))

	n.freeOffset = 0
	n.cellsOffset = uint16(needed)
	assert.True(t, n.IsInsertable(cell), "exactly 2+size(c) free bytes must be insertable")

	n.cellsOffset = uint16(needed - 1)
	assert.False(t, n.IsInsertable(cell), "one byte less than 2+size(c) must fail the capacity check")
}

func TestLoadNodeRejectsInvalidType(t *testing.T) {
	page := &MemPage{number: 2, data: make([]byte, 512)}
	page.data[0] = 0xFF
	_, err := loadNode(page, 512)
	assert.ErrorIs(t, err, ErrCorruptHeader)
}

func TestTableInternalCellRoundTrip(t *testing.T) {
	n := newTestNode(t, 2, 512, TableInternal)
	require.NoError(t, n.InsertCell(0, NewTableInternalCell(42, 7)))

	c, err := n.GetCell(0)
	require.NoError(t, err)
	internal, ok := c.(TableInternalCell)
	require.True(t, ok)
	assert.Equal(t, uint32(42), internal.Key())
	assert.Equal(t, uint32(7), internal.ChildPage)
}

func TestIndexCellsRoundTrip(t *testing.T) {
	leaf := newTestNode(t, 2, 512, IndexLeaf)
	require.NoError(t, leaf.InsertCell(0, NewIndexLeafCell(5, 99)))
	lc, err := leaf.GetCell(0)
	require.NoError(t, err)
	il, ok := lc.(IndexLeafCell)
	require.True(t, ok)
	assert.Equal(t, uint32(5), il.Key())
	assert.Equal(t, uint32(99), il.KeyPk)

	internal := newTestNode(t, 3, 512, IndexInternal)
	require.NoError(t, internal.InsertCell(0, NewIndexInternalCell(5, 11, 99)))
	ic, err := internal.GetCell(0)
	require.NoError(t, err)
	ii, ok := ic.(IndexInternalCell)
	require.True(t, ok)
	assert.Equal(t, uint32(5), ii.Key())
	assert.Equal(t, uint32(11), ii.ChildPage)
	assert.Equal(t, uint32(99), ii.KeyPk)
}

func TestSetChildPageMutatesInPlace(t *testing.T) {
	n := newTestNode(t, 2, 512, TableInternal)
	require.NoError(t, n.InsertCell(0, NewTableInternalCell(10, 3)))

	require.NoError(t, n.setChildPage(0, 99))

	c, err := n.GetCell(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), c.(TableInternalCell).ChildPage)
	assert.Equal(t, uint32(10), c.Key(), "mutating the child pointer must not disturb the key")
}

func TestVarint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 16384, 1<<29 - 1} {
		buf := make([]byte, 4)
		EncodeVarint32Into(buf, v)
		assert.Equal(t, v, DecodeVarint32(buf), "value %d", v)
	}
}
