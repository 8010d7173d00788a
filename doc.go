// Seekzstd - a pure-Go package for random access into seekable zstd archives
//
// # Abstract
//
// This library reads and writes zstd archives in the seekable format: the
// compressed stream is cut into independently decodable frames and a seek
// table describing the frame boundaries is appended in a skippable frame.
// Such archives stay fully compatible with existing zstd libraries and
// tools, so they can be decompressed as ordinary zstd files, but this
// library is able to also serve arbitrary byte ranges of the decompressed
// stream without decoding anything outside the frames covering them. If
// you are manipulating a plain zstd file, you first need to convert it to
// the seekable format (see Convert) before random access is possible.
//
// # How to use
//
// To create an archive, write the uncompressed data through a Writer
// obtained from NewWriter or NewWriterLevel; the seek table is emitted
// when the writer is closed. To read, either build a Reader on top of any
// io.ReaderAt, or use Open to get an Archive handle bound to a file path.
//
// Basically, we support two main access patterns:
//
//   - Single-range reads: Reader.ReadRange (or Archive.ReadRange) maps
//     the requested [start, end) interval to the frames containing it,
//     decodes just that window and returns exactly the requested bytes.
//     Reader also implements io.ReaderAt, so an archive can be handed to
//     anything that consumes one.
//
//   - Batch reads: Archive.ReadRanges services many ranges concurrently.
//     Every range is decoded on its own file handle and decode cursor, so
//     the requests share no mutable state and need no locking; results
//     come back in request order and the batch fails as a whole if any
//     single range fails.
//
// # Command line tool
//
// This package contains a command line tool called "seekzstd", which can
// be installed with the following command:
//
//	$ go install github.com/3leaps/seekable-zstd/cmd/seekzstd@latest
//
// The tool is mostly compatible with "gzip", supporting its main options,
// and additionally can list the frame table of an archive and extract
// decompressed byte ranges from it.
package seekzstd
