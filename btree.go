package chidb

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"
)

// MagicBytes is the fixed 16-byte (incl. trailing NUL) prefix every chidb
// file header must start with.
var MagicBytes = []byte("SQLite format 3\x00")

// File header field offsets, all relative to byte 0 of the file.
const (
	headerSize            = 100
	hOffMagic             = 0
	hOffPageSize          = 16
	hOffFileChangeCounter = 24
	hOffSchemaVersion     = 40
	hOffPageCacheSize     = 48
	hOffUserCookie        = 60
)

// BTree represents an open chidb file: a forest of B-Trees sharing one
// Pager. It is the entry point for file-lifecycle operations (Open,
// Close, node allocation) and is what the tree algorithms in tree.go and
// cursor.go operate against.
type BTree struct {
	pager *Pager
	log   *logrus.Logger
}

// Open opens a chidb database file, creating and initializing it if it
// does not already exist (or is empty).
func Open(path string, opts ...Options) (*BTree, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.PageSize != 0 && !validPageSizes[o.PageSize] {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, o.PageSize)
	}
	log := o.logger()

	// We don't yet know the real page size for an existing file; open
	// with the configured/default size first and, if the file turns out
	// to be non-empty, re-derive numPages once we've read its header.
	pager, err := OpenPager(path, o.pageSize(), log)
	if err != nil {
		return nil, err
	}

	bt := &BTree{pager: pager, log: log}

	empty, err := pager.IsEmpty()
	if err != nil {
		return nil, err
	}
	if empty {
		if err := bt.initializeFile(o.pageSize()); err != nil {
			return nil, err
		}
		return bt, nil
	}

	if err := bt.adoptExistingPageSize(); err != nil {
		return nil, err
	}
	if err := bt.validateHeader(); err != nil {
		return nil, err
	}
	return bt, nil
}

// adoptExistingPageSize reads the header's page-size field and, when it
// differs from the size the pager was opened with, switches the pager to
// it and recomputes numPages for the real page size.
func (b *BTree) adoptExistingPageSize() error {
	raw, err := b.readRawHeader()
	if err != nil {
		return err
	}
	if len(raw) < headerSize {
		return fmt.Errorf("%w: file shorter than header", ErrCorruptHeader)
	}
	pageSize := getUint16(raw[hOffPageSize:])
	if !validPageSizes[pageSize] {
		return fmt.Errorf("%w: page size %d", ErrCorruptHeader, pageSize)
	}
	if pageSize == b.pager.pageSize {
		return nil
	}

	info, err := b.pager.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat: %v", ErrIO, err)
	}
	b.pager.pageSize = pageSize
	b.pager.numPages = uint32(info.Size()) / uint32(pageSize)
	return nil
}

// readRawHeader reads the first headerSize bytes of the file directly,
// independent of the page size (the header always occupies the first 100
// bytes regardless of how big pages are).
func (b *BTree) readRawHeader() ([]byte, error) {
	buf := make([]byte, headerSize)
	if _, err := b.pager.file.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrIO, err)
	}
	return buf, nil
}

func (b *BTree) validateHeader() error {
	raw, err := b.readRawHeader()
	if err != nil {
		return err
	}

	if !bytes.Equal(raw[hOffMagic:hOffMagic+len(MagicBytes)], MagicBytes) {
		b.log.Warn("chidb: header magic mismatch")
		return ErrCorruptHeader
	}
	if fcc := getUint32(raw[hOffFileChangeCounter:]); fcc != 0 {
		b.log.WithField("file_change_counter", fcc).Warn("chidb: nonzero file change counter")
		return ErrCorruptHeader
	}
	if sv := getUint32(raw[hOffSchemaVersion:]); sv != 0 {
		b.log.WithField("schema_version", sv).Warn("chidb: nonzero schema version")
		return ErrCorruptHeader
	}
	if pcs := getUint32(raw[hOffPageCacheSize:]); pcs != PageCacheSizeInitial {
		b.log.WithField("page_cache_size", pcs).Warn("chidb: unexpected page cache size")
		return ErrCorruptHeader
	}
	if uc := getUint32(raw[hOffUserCookie:]); uc != 0 {
		b.log.WithField("user_cookie", uc).Warn("chidb: nonzero user cookie")
		return ErrCorruptHeader
	}
	return nil
}

// initializeFile writes the file header and an empty TABLE_LEAF root to a
// freshly created (empty) file.
func (b *BTree) initializeFile(pageSize uint16) error {
	npage := b.pager.AllocatePage()
	if npage != 1 {
		return fmt.Errorf("chidb: expected first allocated page to be 1, got %d", npage)
	}

	page, err := b.pager.ReadPage(npage)
	if err != nil {
		return err
	}

	node := newEmptyNode(page, pageSize, TableLeaf)

	data := page.Bytes()
	copy(data[hOffMagic:], MagicBytes)
	putUint16(data[hOffPageSize:], pageSize)
	putUint32(data[hOffFileChangeCounter:], 0)
	putUint32(data[hOffSchemaVersion:], 0)
	putUint32(data[hOffPageCacheSize:], PageCacheSizeInitial)
	putUint32(data[hOffUserCookie:], 0)

	if err := node.write(b.pager); err != nil {
		return err
	}
	b.log.WithField("page_size", pageSize).Info("chidb: initialized new database file")
	return nil
}

// GetNodeByPage loads a B-Tree node from disk.
func (b *BTree) GetNodeByPage(npage uint32) (*Node, error) {
	page, err := b.pager.ReadPage(npage)
	if err != nil {
		return nil, err
	}
	return loadNode(page, b.pager.PageSize())
}

// NewNode allocates a new page and initializes it as an empty B-Tree node
// of the given type, persisting it immediately.
func (b *BTree) NewNode(typ NodeType) (*Node, error) {
	npage := b.pager.AllocatePage()
	page, err := b.pager.ReadPage(npage)
	if err != nil {
		return nil, err
	}
	node := newEmptyNode(page, b.pager.PageSize(), typ)
	if err := node.write(b.pager); err != nil {
		return nil, err
	}
	return node, nil
}

// InitEmptyNode initializes an already-allocated page to contain an empty
// B-Tree node of the given type, persisting it immediately. Unlike
// NewNode, it does not allocate a page — npage must already exist.
func (b *BTree) InitEmptyNode(npage uint32, typ NodeType) error {
	page, err := b.pager.ReadPage(npage)
	if err != nil {
		return err
	}
	node := newEmptyNode(page, b.pager.PageSize(), typ)
	return node.write(b.pager)
}

// WriteNode persists an in-memory node's header fields to disk. Cell-area
// mutations made via InsertCell are already present in the page buffer;
// this flushes the buffered header fields (type, offsets, cell count,
// right page) alongside them.
func (b *BTree) WriteNode(n *Node) error {
	return n.write(b.pager)
}

// Close releases the underlying pager.
func (b *BTree) Close() error {
	return b.pager.Close()
}
