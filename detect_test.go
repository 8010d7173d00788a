package seekzstd

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestIsSeekable(t *testing.T) {
	payload := []byte("detection test payload, long enough to be split into frames")

	blob := buildArchive(t, payload, 16)
	if !IsSeekable(bytes.NewReader(blob), int64(len(blob))) {
		t.Error("seekable archive not detected")
	}

	// A plain zstd stream has no seek table.
	var plain bytes.Buffer
	zw, err := zstd.NewWriter(&plain)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write(payload)
	zw.Close()
	if IsSeekable(bytes.NewReader(plain.Bytes()), int64(plain.Len())) {
		t.Error("plain zstd stream detected as seekable")
	}

	if IsSeekable(bytes.NewReader(payload), int64(len(payload))) {
		t.Error("uncompressed data detected as seekable")
	}
	if IsSeekable(bytes.NewReader(nil), 0) {
		t.Error("empty stream detected as seekable")
	}
}
