package walstore

import "errors"

// Predefined errors, the same split the teacher's wal package draws between
// "file is unreadable/empty" and "file is readable but its contents are
// wrong".
var (
	// ErrCorruptedWAL means a record could not be decoded.
	ErrCorruptedWAL = errors.New("walstore: segment is corrupted")

	// ErrChecksumMismatch means a record decoded fine but its checksum does
	// not match its contents.
	ErrChecksumMismatch = errors.New("walstore: checksum mismatch")

	// ErrEmptyWAL means the segment file has no records yet.
	ErrEmptyWAL = errors.New("walstore: segment is empty")

	// ErrClosed means an operation was attempted after Close.
	ErrClosed = errors.New("walstore: already closed")
)
