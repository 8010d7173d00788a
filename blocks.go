package seekzstd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// DefaultFrameSize is the amount of uncompressed data compressed into
// each independent frame. It balances random-access granularity against
// compression ratio.
const DefaultFrameSize = 256 * 1024

// frameWriter compresses every Write call into one independent zstd
// frame and records its seek table entry. Segmentation into fixed-size
// frames is done by the bufio.Writer wrapped around it.
type frameWriter struct {
	w         io.Writer
	enc       *zstd.Encoder
	framesize int
	entries   []tableEntry
	written   int64
}

type tableEntry struct {
	compSize   uint32
	decompSize uint32
	checksum   uint32
}

// Write emits data as independent frames of at most framesize
// uncompressed bytes each. bufio hands over oversized writes unbuffered,
// so the split has to happen here to keep frames bounded.
func (fw *frameWriter) Write(data []byte) (int, error) {
	written := 0
	for len(data) > 0 {
		chunk := data
		if len(chunk) > fw.framesize {
			chunk = chunk[:fw.framesize]
		}
		if err := fw.writeFrame(chunk); err != nil {
			return written, err
		}
		written += len(chunk)
		data = data[len(chunk):]
	}
	return written, nil
}

func (fw *frameWriter) writeFrame(data []byte) error {
	if int64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("frame of %d bytes: %w", len(data), ErrInvalidRange)
	}
	blob := fw.enc.EncodeAll(data, nil)
	if int64(len(blob)) > math.MaxUint32 {
		return fmt.Errorf("compressed frame of %d bytes: %w", len(blob), ErrInvalidRange)
	}
	if _, err := fw.w.Write(blob); err != nil {
		return err
	}
	fw.entries = append(fw.entries, tableEntry{
		compSize:   uint32(len(blob)),
		decompSize: uint32(len(data)),
		checksum:   uint32(xxhash.Sum64(data)),
	})
	fw.written += int64(len(data))
	return nil
}

// seekTableSize returns the size field of the skippable frame holding n
// entries with checksums. The field is a u32, which caps how many frames
// one archive can carry.
func seekTableSize(n int) (uint32, error) {
	const entrySize = 12
	size := int64(n)*entrySize + seekTableFooterSize
	if size > math.MaxUint32 {
		return 0, fmt.Errorf("seek table of %d bytes for %d frames: %w", size, n, ErrFrameIndex)
	}
	return uint32(size), nil
}

// writeSeekTable appends the skippable frame holding the per-frame
// entries and the 9-byte footer that decoders locate the table by.
func (fw *frameWriter) writeSeekTable() error {
	tableSize, err := seekTableSize(len(fw.entries))
	if err != nil {
		return err
	}

	buf := make([]byte, 0, skippableHeaderSize+int(tableSize))
	buf = binary.LittleEndian.AppendUint32(buf, skippableMagic)
	buf = binary.LittleEndian.AppendUint32(buf, tableSize)
	for _, e := range fw.entries {
		buf = binary.LittleEndian.AppendUint32(buf, e.compSize)
		buf = binary.LittleEndian.AppendUint32(buf, e.decompSize)
		buf = binary.LittleEndian.AppendUint32(buf, e.checksum)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(fw.entries)))
	buf = append(buf, descChecksumFlag)
	buf = binary.LittleEndian.AppendUint32(buf, seekableMagic)

	_, err = fw.w.Write(buf)
	return err
}

type normalWriter struct {
	*bufio.Writer
	fw *frameWriter
}

// NewWriter creates a seekable zstd writer with the default compression
// level and frame size.
func NewWriter(w io.Writer) (Writer, error) {
	return NewWriterLevel(w, zstd.SpeedDefault, DefaultFrameSize)
}

// NewWriterLevel creates a compressing writer that generates a seekable
// zstd archive, cutting the stream into independent frames of framesize
// uncompressed bytes. This is similar to zstd.NewWriter, but takes an
// additional argument specifying how much data each frame holds. You can
// use DefaultFrameSize as a reasonable default (256kb) that balances
// random-access speed and compression overhead.
func NewWriterLevel(w io.Writer, level zstd.EncoderLevel, framesize int) (Writer, error) {
	if framesize <= 0 || int64(framesize) > math.MaxUint32 {
		return nil, fmt.Errorf("frame size %d: %w", framesize, ErrInvalidRange)
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	fw := &frameWriter{w: w, enc: enc, framesize: framesize}
	return normalWriter{
		Writer: bufio.NewWriterSize(fw, framesize),
		fw:     fw,
	}, nil
}

func (nw normalWriter) Offset() int64 {
	return nw.fw.written + int64(nw.Writer.Buffered())
}

func (nw normalWriter) Close() error {
	if err := nw.Writer.Flush(); err != nil {
		return err
	}
	if err := nw.fw.writeSeekTable(); err != nil {
		return err
	}
	return nw.fw.enc.Close()
}
