package seekzstd

import "io"

// This interface represents an object that generates a seekable zstd
// archive. In addition to implementing a standard WriteCloser, it gives
// access to an Offset method reporting the current position in the
// uncompressed stream.
//
// In the current version, there are two different implementations of
// Writer:
//
//   - A writer that cuts a new frame every time a fixed amount of
//     uncompressed data has been buffered. Create it with NewWriterLevel.
//   - A writer that cuts frames at content-defined boundaries, making
//     the archive friendly to rsync and binary diffs. Create it with
//     NewWriterLevelRsyncable.
type Writer interface {
	io.WriteCloser

	// Offset returns the number of uncompressed bytes accepted so far,
	// i.e. the decompressed offset the next written byte will land at.
	Offset() int64
}
