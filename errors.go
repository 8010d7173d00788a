package seekzstd

import "errors"

// Sentinel errors returned by archive operations. Errors coming out of
// this package either are one of these (possibly wrapped with context,
// match with errors.Is) or propagate an underlying I/O or zstd failure.
var (
	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = errors.New("archive is closed")

	// ErrInvalidRange is returned when a requested range has end < start,
	// a negative offset, or does not fit the host's addressable size.
	ErrInvalidRange = errors.New("invalid byte range")

	// ErrFrameIndex is returned when a frame index is outside the seek table.
	ErrFrameIndex = errors.New("frame index out of range")

	// ErrNotSeekable is returned when the stream carries no valid seek table.
	ErrNotSeekable = errors.New("not a seekable zstd stream")

	// ErrChecksum is returned when a frame's content does not match the
	// checksum recorded in the seek table.
	ErrChecksum = errors.New("frame checksum mismatch")
)
