package seekzstd

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameBoundaries(t *testing.T) {
	payload := randomPayload(t, 100)
	blob := buildArchive(t, payload, 10)

	table, err := readSeekTable(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatal(err)
	}

	if table.numFrames() != 10 {
		t.Fatal("expected 10 frames, got", table.numFrames())
	}
	if table.size != 100 {
		t.Fatal("wrong decompressed size:", table.size)
	}

	for i := int64(0); i < 10; i++ {
		start, err := table.frameStartDecomp(i)
		if err != nil {
			t.Fatal(err)
		}
		end, err := table.frameEndDecomp(i)
		if err != nil {
			t.Fatal(err)
		}
		if start != i*10 || end != (i+1)*10 {
			t.Error("frame", i, "spans", start, end)
		}
		// Every offset inside the frame maps back to it, including both
		// boundary bytes.
		if table.frameIndexDecomp(start) != i {
			t.Error("start offset of frame", i, "maps to", table.frameIndexDecomp(start))
		}
		if table.frameIndexDecomp(end-1) != i {
			t.Error("last offset of frame", i, "maps to", table.frameIndexDecomp(end-1))
		}
	}

	// Offsets past the end clamp to the last frame.
	if table.frameIndexDecomp(100) != 9 {
		t.Error("offset at size maps to", table.frameIndexDecomp(100))
	}
	if table.frameIndexDecomp(1 << 40) != 9 {
		t.Error("huge offset maps to", table.frameIndexDecomp(1<<40))
	}

	// Compressed spans are contiguous and cover the data region.
	var prevEnd int64
	for i := int64(0); i < 10; i++ {
		start, _ := table.frameStartComp(i)
		end, _ := table.frameEndComp(i)
		if start != prevEnd || end <= start {
			t.Error("frame", i, "compressed span", start, end)
		}
		prevEnd = end
	}
	if prevEnd != table.compSize {
		t.Error("compressed spans end at", prevEnd, "table says", table.compSize)
	}
}

func TestFrameIndexOutOfRange(t *testing.T) {
	blob := buildArchive(t, []byte("0123456789"), 4)
	table, err := readSeekTable(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := table.frame(-1); !errors.Is(err, ErrFrameIndex) {
		t.Error("negative index:", err)
	}
	if _, err := table.frame(table.numFrames()); !errors.Is(err, ErrFrameIndex) {
		t.Error("index past end:", err)
	}
}

func TestSeekTableRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":       {},
		"too short":   []byte("short"),
		"not zstd":    bytes.Repeat([]byte("garbage data "), 100),
		"zero filled": make([]byte, 4096),
	}
	for name, blob := range cases {
		if _, err := readSeekTable(bytes.NewReader(blob), int64(len(blob))); !errors.Is(err, ErrNotSeekable) {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestSeekTableRejectsTruncatedStream(t *testing.T) {
	blob := buildArchive(t, randomPayload(t, 10000), 1000)

	// Dropping leading compressed bytes desyncs the table coverage check.
	cut := blob[10:]
	if _, err := readSeekTable(bytes.NewReader(cut), int64(len(cut))); !errors.Is(err, ErrNotSeekable) {
		t.Error("truncated stream:", err)
	}
}
