// Package chidb implements a paged B-Tree storage engine for a
// SQLite-3-compatible database file: a single file holding a forest of
// B-Trees, one per table or index, each rooted at a page number.
//
// The package is deliberately narrow. It owns pages, nodes, cells, the
// find/insert tree algorithms, and cursor traversal. It knows nothing about
// SQL, records, or a bytecode virtual machine — those are left to callers.
package chidb

import "github.com/sirupsen/logrus"

// Page sizes accepted by Open's Options.PageSize. Any other value is
// rejected with ErrInvalidPageSize. 65536 is not accepted: page sizes are
// held in a uint16.
var validPageSizes = map[uint16]bool{
	512:   true,
	1024:  true,
	2048:  true,
	4096:  true,
	8192:  true,
	16384: true,
	32768: true,
}

// DefaultPageSize is used by Open when no Options.PageSize is given and the
// file does not already exist.
const DefaultPageSize uint16 = 1024

// PageCacheSizeInitial is the fixed value the file header's page-cache-size
// field must hold in every chidb file (see the hOff* file header offsets in
// btree.go).
const PageCacheSizeInitial uint32 = 20000

// Options configures Open. The zero value uses DefaultPageSize and the
// standard logrus logger.
type Options struct {
	// PageSize is used only when creating a new file; it is ignored (and
	// the file's own value is used instead) when opening an existing one.
	// Must be one of the SQLite page sizes, or zero to accept the default.
	PageSize uint16

	// Logger receives structured records: page I/O at Trace, file
	// initialization and root promotions at Info, and rejected headers at
	// Warn. Node splits below the root are not logged. A nil Logger uses
	// logrus.StandardLogger().
	Logger *logrus.Logger
}

func (o Options) pageSize() uint16 {
	if o.PageSize == 0 {
		return DefaultPageSize
	}
	return o.PageSize
}

func (o Options) logger() *logrus.Logger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
