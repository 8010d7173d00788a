package seekzstd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/btree"
)

// On-disk constants of the zstd seekable format. The seek table lives in
// a skippable frame appended after the last data frame; the final 9 bytes
// form a footer carrying the frame count, a descriptor byte and the
// seekable magic number.
const (
	skippableMagic uint32 = 0x184D2A5E
	seekableMagic  uint32 = 0x8F92EAB1

	skippableHeaderSize = 8
	seekTableFooterSize = 9

	// Seek_Table_Descriptor bits.
	descChecksumFlag = 1 << 7
	descReservedMask = 0x7C
)

// frameEntry describes one zstd frame of the archive: where it lives in
// the compressed stream and which decompressed span it covers.
type frameEntry struct {
	id           int64
	compOffset   int64
	decompOffset int64
	compSize     int64
	decompSize   int64
	checksum     uint32
}

func (e *frameEntry) Less(than btree.Item) bool {
	return e.decompOffset < than.(*frameEntry).decompOffset
}

// seekTable is the parsed frame boundary table of one archive. It is
// immutable after parsing and safe for concurrent readers.
type seekTable struct {
	entries   []frameEntry
	index     *btree.BTree
	compSize  int64 // compressed bytes covered by data frames
	size      int64 // total decompressed size
	checksums bool
}

// readSeekTable parses and validates the seek table of a stream of the
// given total size. The btree index keyed by decompressed offset follows
// the layout used by the zstd seekable format readers.
func readSeekTable(r io.ReaderAt, size int64) (*seekTable, error) {
	if size < skippableHeaderSize+seekTableFooterSize {
		return nil, fmt.Errorf("stream too short (%d bytes): %w", size, ErrNotSeekable)
	}

	var footer [seekTableFooterSize]byte
	if _, err := r.ReadAt(footer[:], size-seekTableFooterSize); err != nil {
		return nil, fmt.Errorf("reading seek table footer: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(footer[5:9]); magic != seekableMagic {
		return nil, fmt.Errorf("bad footer magic %#08x: %w", magic, ErrNotSeekable)
	}

	desc := footer[4]
	if desc&descReservedMask != 0 {
		return nil, fmt.Errorf("unsupported seek table descriptor %#02x: %w", desc, ErrNotSeekable)
	}
	checksums := desc&descChecksumFlag != 0

	entrySize := int64(8)
	if checksums {
		entrySize = 12
	}

	numFrames := int64(binary.LittleEndian.Uint32(footer[0:4]))
	tableFrameSize := skippableHeaderSize + numFrames*entrySize + seekTableFooterSize
	if tableFrameSize > size {
		return nil, fmt.Errorf("seek table (%d bytes) larger than stream (%d bytes): %w",
			tableFrameSize, size, ErrNotSeekable)
	}

	var head [skippableHeaderSize]byte
	tableStart := size - tableFrameSize
	if _, err := r.ReadAt(head[:], tableStart); err != nil {
		return nil, fmt.Errorf("reading seek table header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(head[0:4]); magic != skippableMagic {
		return nil, fmt.Errorf("bad skippable frame magic %#08x: %w", magic, ErrNotSeekable)
	}
	if got := int64(binary.LittleEndian.Uint32(head[4:8])); got != tableFrameSize-skippableHeaderSize {
		return nil, fmt.Errorf("seek table frame size %d does not match footer: %w", got, ErrNotSeekable)
	}

	raw := make([]byte, numFrames*entrySize)
	if _, err := io.ReadFull(io.NewSectionReader(r, tableStart+skippableHeaderSize, int64(len(raw))), raw); err != nil {
		return nil, fmt.Errorf("reading seek table entries: %w", err)
	}

	t := &seekTable{
		entries:   make([]frameEntry, numFrames),
		index:     btree.New(16),
		checksums: checksums,
	}

	var compOff, decompOff uint64
	for i := int64(0); i < numFrames; i++ {
		rec := raw[i*entrySize:]
		e := &t.entries[i]
		e.id = i
		e.compOffset = int64(compOff)
		e.decompOffset = int64(decompOff)
		e.compSize = int64(binary.LittleEndian.Uint32(rec[0:4]))
		e.decompSize = int64(binary.LittleEndian.Uint32(rec[4:8]))
		if checksums {
			e.checksum = binary.LittleEndian.Uint32(rec[8:12])
		}

		compOff += uint64(e.compSize)
		decompOff += uint64(e.decompSize)
		if compOff > math.MaxInt64 || decompOff > math.MaxInt64 {
			return nil, fmt.Errorf("frame offsets overflow at frame %d: %w", i, ErrNotSeekable)
		}
		t.index.ReplaceOrInsert(e)
	}

	t.compSize = int64(compOff)
	t.size = int64(decompOff)
	if t.compSize != tableStart {
		return nil, fmt.Errorf("seek table covers %d compressed bytes, stream has %d: %w",
			t.compSize, tableStart, ErrNotSeekable)
	}
	return t, nil
}

func (t *seekTable) numFrames() int64 { return int64(len(t.entries)) }

func (t *seekTable) frame(i int64) (*frameEntry, error) {
	if i < 0 || i >= int64(len(t.entries)) {
		return nil, fmt.Errorf("frame %d of %d: %w", i, len(t.entries), ErrFrameIndex)
	}
	return &t.entries[i], nil
}

func (t *seekTable) frameStartDecomp(i int64) (int64, error) {
	e, err := t.frame(i)
	if err != nil {
		return 0, err
	}
	return e.decompOffset, nil
}

func (t *seekTable) frameEndDecomp(i int64) (int64, error) {
	e, err := t.frame(i)
	if err != nil {
		return 0, err
	}
	return e.decompOffset + e.decompSize, nil
}

func (t *seekTable) frameStartComp(i int64) (int64, error) {
	e, err := t.frame(i)
	if err != nil {
		return 0, err
	}
	return e.compOffset, nil
}

func (t *seekTable) frameEndComp(i int64) (int64, error) {
	e, err := t.frame(i)
	if err != nil {
		return 0, err
	}
	return e.compOffset + e.compSize, nil
}

// frameIndexDecomp maps a decompressed offset to the frame containing it.
// Offsets at or past the end of the stream map to the last frame; the
// caller detects truncation from the decoded byte count.
func (t *seekTable) frameIndexDecomp(off int64) int64 {
	var found *frameEntry
	t.index.DescendLessOrEqual(&frameEntry{decompOffset: off}, func(i btree.Item) bool {
		found = i.(*frameEntry)
		return false
	})
	if found == nil {
		return 0
	}
	return found.id
}
