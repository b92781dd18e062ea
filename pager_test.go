package chidb

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPager(tb testing.TB, pageSize uint16) *Pager {
	f, err := os.CreateTemp(tb.TempDir(), "pager-*.db")
	require.NoError(tb, err)

	p, err := OpenPager(f.Name(), pageSize, nil)
	require.NoError(tb, err)
	tb.Cleanup(func() { p.Close() })
	return p
}

func TestPagerIsEmptyOnFreshFile(t *testing.T) {
	p := tempPager(t, DefaultPageSize)
	empty, err := p.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestPagerAllocateWriteReadRoundTrip(t *testing.T) {
	p := tempPager(t, 512)

	npage := p.AllocatePage()
	assert.Equal(t, uint32(1), npage)

	page, err := p.ReadPage(npage)
	require.NoError(t, err)
	assert.Equal(t, npage, page.Number())
	assert.Len(t, page.Bytes(), 512)

	page.Bytes()[10] = 0xAB
	require.NoError(t, p.WritePage(page))

	readBack, err := p.ReadPage(npage)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), readBack.Bytes()[10])
}

func TestPagerRejectsInvalidPageNumbers(t *testing.T) {
	p := tempPager(t, DefaultPageSize)
	_, err := p.ReadPage(0)
	assert.ErrorIs(t, err, ErrPageNumber)

	_, err = p.ReadPage(1)
	assert.ErrorIs(t, err, ErrPageNumber)
}

func TestPagerNumPagesTracksAllocations(t *testing.T) {
	p := tempPager(t, DefaultPageSize)
	assert.Equal(t, uint32(0), p.NumPages())

	p.AllocatePage()
	p.AllocatePage()
	assert.Equal(t, uint32(2), p.NumPages())
}

func TestPagerCloseIsIdempotent(t *testing.T) {
	p := tempPager(t, DefaultPageSize)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}
