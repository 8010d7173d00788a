package seekzstd

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// Convert re-compresses a plain zstd stream into a seekable archive.
// The input is decoded and re-segmented into independent frames of
// framesize uncompressed bytes, after which the output supports random
// access through Reader and Archive.
//
// Unlike gzip, zstd frames do not record the compression level they were
// produced with, so the level of the output must be chosen by the caller.
func Convert(w io.Writer, r io.Reader, level zstd.EncoderLevel, framesize int) error {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return err
	}
	defer zr.Close()

	zw, err := NewWriterLevel(w, level, framesize)
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, zr); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}
