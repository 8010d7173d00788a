package seekzstd

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// A Reader decodes arbitrary decompressed byte ranges out of a seekable
// zstd stream. Frame boundaries are resolved through the seek table, so
// a read touches only the frames covering the requested range, never the
// whole archive.
//
// A Reader may be reused for sequential reads against the same source,
// but it owns a single decode cursor and must not be shared between
// concurrent requests; open one Reader per goroutine instead (see
// Archive.ReadRanges).
type Reader struct {
	src   io.ReaderAt
	table *seekTable
	zr    *zstd.Decoder

	// current decode window, inclusive frame indices
	lower, upper int64
}

// NewReader parses the seek table of the stream backed by r, whose total
// compressed size must be given, and returns a Reader positioned to
// decode from it. The source is only ever read through ReadAt, so the
// caller keeps ownership of any underlying seek offset.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	table, err := readSeekTable(r, size)
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Reader{src: r, table: table, zr: zr}, nil
}

// Size returns the total decompressed size of the archive in bytes.
func (r *Reader) Size() int64 {
	return r.table.size
}

// FrameCount returns the number of data frames in the archive.
func (r *Reader) FrameCount() int64 {
	return r.table.numFrames()
}

// Close releases the decode cursor. The underlying source is not closed.
func (r *Reader) Close() error {
	r.zr.Close()
	return nil
}

// setWindow restricts subsequent decoding to frames [lower, upper].
func (r *Reader) setWindow(lower, upper int64) error {
	if _, err := r.table.frame(lower); err != nil {
		return err
	}
	if _, err := r.table.frame(upper); err != nil {
		return err
	}
	r.lower, r.upper = lower, upper
	return nil
}

// resetCursor rewinds the decode cursor to the start of the current
// window. The window's frames are contiguous in the compressed stream,
// so the cursor is a plain zstd stream decoder over that section.
func (r *Reader) resetCursor() error {
	start, err := r.table.frameStartComp(r.lower)
	if err != nil {
		return err
	}
	end, err := r.table.frameEndComp(r.upper)
	if err != nil {
		return err
	}
	if err := r.zr.Reset(io.NewSectionReader(r.src, start, end-start)); err != nil {
		return fmt.Errorf("resetting decode cursor: %w", err)
	}
	return nil
}

// ReadRange returns the decompressed bytes in [start, end). A range with
// start == end yields an empty slice without touching the codec. When
// end lies past the end of the stream, only the bytes actually available
// are returned.
func (r *Reader) ReadRange(start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("range [%d, %d): %w", start, end, ErrInvalidRange)
	}
	if end == start || r.table.numFrames() == 0 {
		return []byte{}, nil
	}

	lower := r.table.frameIndexDecomp(start)
	upper := r.table.frameIndexDecomp(end - 1)
	if err := r.setWindow(lower, upper); err != nil {
		return nil, err
	}

	startOffset, err := r.table.frameStartDecomp(lower)
	if err != nil {
		return nil, err
	}
	windowEnd, err := r.table.frameEndDecomp(upper)
	if err != nil {
		return nil, err
	}

	// The window always decodes from its frame boundary; the requested
	// sub-range is carved out of the scratch buffer afterwards.
	skip := start - startOffset
	want := end - start
	windowSize := windowEnd - startOffset
	if uint64(windowSize) > uint64(math.MaxInt) {
		return nil, fmt.Errorf("decode window of %d bytes: %w", windowSize, ErrInvalidRange)
	}

	if err := r.resetCursor(); err != nil {
		return nil, err
	}

	scratch := make([]byte, windowSize)
	produced := int64(0)
	for produced < windowSize {
		n, err := r.zr.Read(scratch[produced:])
		produced += int64(n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decompressing frames %d-%d: %w", lower, upper, err)
		}
		if n == 0 {
			break
		}
	}

	if skip >= produced {
		return []byte{}, nil
	}
	stop := skip + want
	if stop > produced {
		stop = produced
	}
	return scratch[skip:stop], nil
}

// ReadAt implements io.ReaderAt in terms of ReadRange. It returns io.EOF
// when fewer than len(p) bytes are available at off.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("offset %d: %w", off, ErrInvalidRange)
	}
	end := off + int64(len(p))
	if end < off {
		end = math.MaxInt64
	}
	data, err := r.ReadRange(off, end)
	n := copy(p, data)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// VerifyIntegrity decodes every frame of the archive and checks that it
// produces exactly the decompressed size recorded in the seek table and,
// when the table carries checksums, that its content hashes to the
// recorded XXH64 value.
func (r *Reader) VerifyIntegrity() error {
	for i := int64(0); i < r.table.numFrames(); i++ {
		e, err := r.table.frame(i)
		if err != nil {
			return err
		}
		if err := r.setWindow(i, i); err != nil {
			return err
		}
		if err := r.resetCursor(); err != nil {
			return err
		}
		buf := make([]byte, e.decompSize)
		if _, err := io.ReadFull(r.zr, buf); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		// The frame must end exactly where the table says it does.
		var extra [1]byte
		if n, _ := r.zr.Read(extra[:]); n != 0 {
			return fmt.Errorf("frame %d decodes past its recorded size: %w", i, ErrChecksum)
		}
		if r.table.checksums {
			if got := uint32(xxhash.Sum64(buf)); got != e.checksum {
				return fmt.Errorf("frame %d: recorded %#08x, computed %#08x: %w",
					i, e.checksum, got, ErrChecksum)
			}
		}
	}
	return nil
}
