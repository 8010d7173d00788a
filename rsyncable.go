package seekzstd

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

const cWINDOW_SIZE = 4096

// maxRsyncFrame bounds frame growth when the rolling sum never triggers,
// e.g. on incompressible or constant input.
const maxRsyncFrame = 4 * DefaultFrameSize

type rsyncableWriter struct {
	fw     *frameWriter
	buf    []byte
	window []byte
	idx    int
	sum    int
}

// NewWriterLevelRsyncable creates a compressing writer that generates a
// seekable zstd archive, cutting frames at data-dependent offsets that
// make the compressed stream resynchronize after localized changes in
// the uncompressed stream.
//
// This function is similar to NewWriterLevel as it creates a seekable
// archive, but segmenting happens at content-defined boundaries computed
// with the same rolling-sum algorithm as "gzip --rsyncable", so slightly
// different inputs share most of their compressed frames.
func NewWriterLevelRsyncable(w io.Writer, level zstd.EncoderLevel) (Writer, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, err
	}
	return &rsyncableWriter{
		fw:     &frameWriter{w: w, enc: enc, framesize: maxRsyncFrame},
		window: make([]byte, cWINDOW_SIZE),
	}, nil
}

func (w *rsyncableWriter) Write(data []byte) (int, error) {
	written := 0
	for _, b := range data {
		if w.idx < cWINDOW_SIZE {
			w.window[w.idx] = b
			w.sum += int(b)
		} else {
			w.sum -= int(w.window[w.idx%cWINDOW_SIZE])
			w.window[w.idx%cWINDOW_SIZE] = b
			w.sum += int(b)
		}
		w.idx++
		w.buf = append(w.buf, b)
		written++

		boundary := w.idx >= cWINDOW_SIZE && w.sum%cWINDOW_SIZE == 0
		if boundary || len(w.buf) >= maxRsyncFrame {
			if err := w.flushFrame(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (w *rsyncableWriter) flushFrame() error {
	if len(w.buf) == 0 {
		return nil
	}
	if err := w.fw.writeFrame(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	w.sum = 0
	w.idx = 0
	return nil
}

func (w *rsyncableWriter) Offset() int64 {
	return w.fw.written + int64(len(w.buf))
}

func (w *rsyncableWriter) Close() error {
	if err := w.flushFrame(); err != nil {
		return err
	}
	if err := w.fw.writeSeekTable(); err != nil {
		return err
	}
	return w.fw.enc.Close()
}
