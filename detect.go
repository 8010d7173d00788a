package seekzstd

import "io"

// IsSeekable returns true if the stream backed by r, of the given total
// size, carries a well-formed seek table. It inspects only the table at
// the end of the stream and does not decode any payload frame, so a
// positive answer means the frame layout is consistent, not that the
// compressed data itself is intact; use Reader.VerifyIntegrity for that.
//
// Plain (non-seekable) zstd files and arbitrary data return false.
func IsSeekable(r io.ReaderAt, size int64) bool {
	_, err := readSeekTable(r, size)
	return err == nil
}
