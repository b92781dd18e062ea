package chidb

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// MemPage is an in-memory copy of a single on-disk page. The Pager is the
// only component that reads or writes page bytes to the file; a Node view
// borrows a MemPage for its lifetime (see Node in node.go).
type MemPage struct {
	number uint32
	data   []byte
}

// Number returns the 1-based page number this buffer was read for.
func (m *MemPage) Number() uint32 { return m.number }

// Bytes returns the full page buffer, including the 100-byte file header
// prefix on page 1. Callers addressing node fields must apply headerOffset
// themselves (see Node.headerOffset).
func (m *MemPage) Bytes() []byte { return m.data }

// Pager owns the file handle and the page size, and is the sole source of
// truth for page bytes. It does not cache pages across opens.
type Pager struct {
	file     *os.File
	pageSize uint16
	numPages uint32
	log      *logrus.Logger
	closed   bool
}

// OpenPager opens (creating if necessary) a file for paged access.
// pageSize is used only when the file is empty; for a non-empty file the
// caller is expected to have already determined the real page size from
// the header and pass it here.
func OpenPager(path string, pageSize uint16, log *logrus.Logger) (*Pager, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	numPages := uint32(0)
	if info.Size() > 0 {
		numPages = uint32(info.Size()) / uint32(pageSize)
	}

	return &Pager{
		file:     f,
		pageSize: pageSize,
		numPages: numPages,
		log:      log,
	}, nil
}

// PageSize returns the page size this pager was opened with.
func (p *Pager) PageSize() uint16 { return p.pageSize }

// NumPages returns the number of pages currently allocated in the file.
func (p *Pager) NumPages() uint32 { return p.numPages }

// IsEmpty reports whether the underlying file has zero bytes, which Open
// uses to decide whether to materialize a fresh header and root leaf.
func (p *Pager) IsEmpty() (bool, error) {
	info, err := p.file.Stat()
	if err != nil {
		return false, fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	return info.Size() == 0, nil
}

// ReadPage reads the on-disk bytes for npage into a fresh MemPage. npage
// must be in [1, NumPages()].
func (p *Pager) ReadPage(npage uint32) (*MemPage, error) {
	if err := p.validPageNo(npage); err != nil {
		return nil, err
	}

	data := make([]byte, p.pageSize)
	n, err := p.file.ReadAt(data, p.offset(npage))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read page %d: %v", ErrIO, npage, err)
	}
	p.log.WithFields(logrus.Fields{"page": npage, "bytes": n}).Trace("read page")

	return &MemPage{number: npage, data: data}, nil
}

// AllocatePage reserves the next page number. The corresponding bytes need
// not exist on disk until a subsequent WritePage.
func (p *Pager) AllocatePage() uint32 {
	p.numPages++
	return p.numPages
}

// WritePage writes a page buffer back to its slot in the file.
func (p *Pager) WritePage(page *MemPage) error {
	if err := p.validPageNo(page.number); err != nil {
		return err
	}
	if len(page.data) != int(p.pageSize) {
		return fmt.Errorf("%w: page %d has %d bytes, want %d", ErrIO, page.number, len(page.data), p.pageSize)
	}

	n, err := p.file.WriteAt(page.data, p.offset(page.number))
	if err != nil {
		return fmt.Errorf("%w: write page %d: %v", ErrIO, page.number, err)
	}
	p.log.WithFields(logrus.Fields{"page": page.number, "bytes": n}).Trace("wrote page")
	return nil
}

// ReleasePage returns a page buffer to the pager. The Pager does not
// actually cache pages, so this is a bookkeeping no-op kept so that every
// acquired page has a matching release call on all exit paths.
func (p *Pager) ReleasePage(page *MemPage) {}

// Close flushes and closes the underlying file. Subsequent operations on
// the Pager fail.
func (p *Pager) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	return nil
}

func (p *Pager) validPageNo(npage uint32) error {
	if npage < 1 || npage > p.numPages {
		return fmt.Errorf("%w: %d (have %d pages)", ErrPageNumber, npage, p.numPages)
	}
	return nil
}

func (p *Pager) offset(npage uint32) int64 {
	return int64(npage-1) * int64(p.pageSize)
}
