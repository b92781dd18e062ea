package chidb

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBtreeWithPageSize(t *testing.T, pageSize uint16) *BTree {
	f, err := os.CreateTemp(t.TempDir(), "chidb-*.db")
	require.NoError(t, err)

	bt, err := Open(f.Name(), Options{PageSize: pageSize})
	require.NoError(t, err)
	t.Cleanup(func() { bt.Close() })
	return bt
}

func TestInsertAndFindSingleRow(t *testing.T) {
	bt := openBtree(t)

	require.NoError(t, InsertInTable(bt, 1, 42, []byte("hello")))

	data, err := Find(bt, 1, 42)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestFindMissingKeyReturnsErrNotFound(t *testing.T) {
	bt := openBtree(t)
	require.NoError(t, InsertInTable(bt, 1, 1, []byte("x")))

	_, err := Find(bt, 1, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateKeyRejectedWithoutMutation(t *testing.T) {
	bt := openBtree(t)
	require.NoError(t, InsertInTable(bt, 1, 5, []byte("first")))

	err := InsertInTable(bt, 1, 5, []byte("second"))
	assert.ErrorIs(t, err, ErrDuplicate)

	data, err := Find(bt, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data, "duplicate insert must not overwrite the existing row")
}

func TestInsertManyRowsPreservesKeyOrderAcrossSplits(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)

	const n = 60
	// Insert out of order to exercise the insertion-index search, not just
	// always-append.
	order := []int{}
	for i := 0; i < n; i++ {
		order = append(order, (i*37)%n)
	}
	seen := map[int]bool{}
	var keys []int
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}

	for _, k := range keys {
		require.NoError(t, InsertInTable(bt, 1, uint32(k), []byte(fmt.Sprintf("v%d", k))))
	}

	root, err := bt.GetNodeByPage(1)
	require.NoError(t, err)
	assert.True(t, root.Type().isInternal(), "root should have been promoted to an internal node after enough splits")

	cur := NewCursor(bt, 1)
	require.NoError(t, cur.Rewind())

	var gotKeys []uint32
	for cur.Valid() {
		k, err := cur.Key()
		require.NoError(t, err)
		data, err := cur.Data()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("v%d", k), string(data))
		gotKeys = append(gotKeys, k)
		require.NoError(t, cur.Next())
	}

	require.Len(t, gotKeys, len(keys))
	for i := 1; i < len(gotKeys); i++ {
		assert.Less(t, gotKeys[i-1], gotKeys[i], "scan must visit keys in strictly ascending order")
	}
}

func TestFindAfterSplitLocatesRowsInBothHalves(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)

	for i := 0; i < 40; i++ {
		require.NoError(t, InsertInTable(bt, 1, uint32(i), []byte(fmt.Sprintf("row-%02d", i))))
	}

	for i := 0; i < 40; i++ {
		data, err := Find(bt, 1, uint32(i))
		require.NoError(t, err, "key %d", i)
		assert.Equal(t, fmt.Sprintf("row-%02d", i), string(data))
	}
}

func TestInsertIntoIndexAndScan(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)

	indexRoot, err := bt.NewNode(IndexLeaf)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		require.NoError(t, InsertInIndex(bt, indexRoot.PageNumber(), uint32(i), uint32(1000+i)))
	}

	cur := NewCursor(bt, indexRoot.PageNumber())
	require.NoError(t, cur.Rewind())

	count := 0
	for cur.Valid() {
		k, err := cur.Key()
		require.NoError(t, err)
		pk, err := cur.KeyPk()
		require.NoError(t, err)
		assert.Equal(t, uint32(1000)+k, pk)
		count++
		require.NoError(t, cur.Next())
	}
	assert.Equal(t, 30, count)
}

func TestSplitPrimitivePromotesSeparatorIntoParent(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)

	parent, err := bt.NewNode(TableInternal)
	require.NoError(t, err)

	child, err := bt.NewNode(TableLeaf)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, child.InsertCell(uint16(i), NewTableLeafCell(uint32(i), []byte("x"))))
	}
	require.NoError(t, child.write(bt.pager))
	parent.SetRightPage(child.PageNumber())
	require.NoError(t, parent.write(bt.pager))

	rightPage, err := Split(bt, parent.PageNumber(), child.PageNumber(), 0)
	require.NoError(t, err)
	assert.NotZero(t, rightPage)

	reread, err := bt.GetNodeByPage(parent.PageNumber())
	require.NoError(t, err)
	assert.Equal(t, uint16(1), reread.NumCells())
	assert.Equal(t, rightPage, reread.RightPage())
}
