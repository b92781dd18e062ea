package chidb

import "errors"

// Sentinel errors surfaced across the engine boundary. Callers should
// compare with errors.Is, since some of these are wrapped with additional
// context (the offending page or cell number) before being returned.
var (
	// ErrCorruptHeader is returned by Open when an existing file's header
	// fails validation (bad magic, unsupported page size, a nonzero field
	// that must be zero, or a page cache size other than 20000), and when
	// loading a page whose node type byte is not a known node type.
	ErrCorruptHeader = errors.New("chidb: corrupt header")

	// ErrInvalidPageSize is returned by Open when Options.PageSize is not
	// one of the SQLite page sizes.
	ErrInvalidPageSize = errors.New("chidb: invalid page size")

	// ErrPageNumber is returned when a page number falls outside
	// [1, NumPages()].
	ErrPageNumber = errors.New("chidb: invalid page number")

	// ErrCellNumber is returned when a cell index is out of range for the
	// node being addressed.
	ErrCellNumber = errors.New("chidb: invalid cell number")

	// ErrNotFound is returned by Find when no cell with the requested key
	// exists, and by Cursor's Next, Prev, Key, Data and KeyPk when the
	// cursor is not positioned on a cell. Cursor.Seek does not return it:
	// a missing key leaves the cursor on the next larger key, or at EOF.
	// It is an expected outcome, not a warning.
	ErrNotFound = errors.New("chidb: key not found")

	// ErrDuplicate is returned by an insert operation when a cell with the
	// same key already exists at the destination leaf. The tree is left
	// unchanged.
	ErrDuplicate = errors.New("chidb: duplicate key")

	// ErrIO wraps failures from the underlying file.
	ErrIO = errors.New("chidb: I/O error")
)
