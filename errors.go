package fat32

import "errors"

// Error is the sentinel type returned by every operation in this package.
// Callers should match against the package-level Err* values with errors.Is,
// mirroring the fileResult taxonomy FatFs-derived code traditionally returns
// as an integer code.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func newErr(msg string) error { return &Error{msg: msg} }

var (
	// ErrNoFAT means the volume does not validate as FAT32 at mount time:
	// bad MBR signature, no FAT32LBA partition, or BPB field mismatch.
	ErrNoFAT = newErr("fat32: not a FAT32 volume")

	// ErrBroken means an on-disk structure violates this package's invariants
	// once mounted: bad FAT class, bad LFN group, checksum mismatch.
	ErrBroken = newErr("fat32: broken filesystem structure")

	// ErrIO means the underlying BlockDevice reported a read or write failure.
	ErrIO = newErr("fat32: block device I/O error")

	// ErrParam means the caller passed invalid arguments.
	ErrParam = newErr("fat32: invalid parameter")

	// ErrPath means a path is malformed or could not be resolved.
	ErrPath = newErr("fat32: path error")

	// ErrEOF is dual-use: a normal terminator in Readdir/search, and a
	// failure when Read or Seek are asked to go past the end of a file.
	ErrEOF = newErr("fat32: end of file")

	// ErrDenied means the operation is rejected by attribute, open-mode or
	// non-empty-directory policy (includes SFN collision on create).
	ErrDenied = newErr("fat32: access denied")

	// ErrFull means the allocator could not find a free cluster.
	ErrFull = newErr("fat32: volume full")
)

// Is allows errors.Is to match two *Error values with the same message,
// which is how wrapped copies (fmt.Errorf("%w: ...")) still compare equal
// to the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.msg == e.msg
	}
	return false
}
