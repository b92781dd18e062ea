package chidb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRewindOnEmptyTreeIsEOF(t *testing.T) {
	bt := openBtree(t)
	cur := NewCursor(bt, 1)
	require.NoError(t, cur.Rewind())
	assert.False(t, cur.Valid())
}

func TestCursorForwardAndBackwardTraversal(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)
	for i := 0; i < 50; i++ {
		require.NoError(t, InsertInTable(bt, 1, uint32(i), []byte(fmt.Sprintf("%d", i))))
	}

	cur := NewCursor(bt, 1)
	require.NoError(t, cur.Rewind())

	var forward []uint32
	for cur.Valid() {
		k, err := cur.Key()
		require.NoError(t, err)
		forward = append(forward, k)
		require.NoError(t, cur.Next())
	}
	require.Len(t, forward, 50)
	for i, k := range forward {
		assert.Equal(t, uint32(i), k)
	}

	require.NoError(t, cur.Prev())
	assert.True(t, cur.Valid())
	last, err := cur.Key()
	require.NoError(t, err)
	assert.Equal(t, uint32(49), last)

	var backward []uint32
	for cur.Valid() {
		k, err := cur.Key()
		require.NoError(t, err)
		backward = append(backward, k)
		require.NoError(t, cur.Prev())
	}
	require.Len(t, backward, 50)
	for i, k := range backward {
		assert.Equal(t, uint32(49-i), k)
	}
}

func TestCursorSeekPositionsAtFirstKeyGreaterOrEqual(t *testing.T) {
	bt := openBtreeWithPageSize(t, 512)
	for _, k := range []uint32{10, 20, 30, 40, 50} {
		require.NoError(t, InsertInTable(bt, 1, k, []byte("x")))
	}

	cur := NewCursor(bt, 1)
	require.NoError(t, cur.Seek(25))
	require.True(t, cur.Valid())
	k, err := cur.Key()
	require.NoError(t, err)
	assert.Equal(t, uint32(30), k)

	require.NoError(t, cur.Seek(50))
	require.True(t, cur.Valid())
	k, err = cur.Key()
	require.NoError(t, err)
	assert.Equal(t, uint32(50), k)

	require.NoError(t, cur.Seek(1000))
	assert.False(t, cur.Valid(), "seeking past the last key should land at EOF")
}

func TestCursorNextPastEndReturnsErrNotFound(t *testing.T) {
	bt := openBtree(t)
	require.NoError(t, InsertInTable(bt, 1, 1, []byte("a")))

	cur := NewCursor(bt, 1)
	require.NoError(t, cur.Rewind())
	require.NoError(t, cur.Next())
	assert.False(t, cur.Valid())

	err := cur.Next()
	assert.ErrorIs(t, err, ErrNotFound)
}
