package seekzstd

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// An Archive is a handle to a seekable zstd file on disk. Opening it
// parses the seek table once; the decompressed size and frame count are
// cached and readable concurrently for the lifetime of the handle.
//
// Single-range reads go through one long-lived Reader guarded by a
// mutex. Batch reads (ReadRanges) reopen the file once per range so the
// requests can decode fully in parallel without sharing cursor state.
type Archive struct {
	path    string
	workers int
	verify  bool

	mu     sync.Mutex
	f      *os.File
	r      *Reader
	closed bool

	// metadata cached at open time
	size       int64
	frameCount int64
}

// An Option configures an Archive at open time.
type Option func(*Archive)

// WithWorkers bounds the number of ranges ReadRanges decodes
// concurrently. The default is runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(a *Archive) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithVerifyChecksums makes Open decode every frame and verify it
// against the seek table before returning. This reads the whole archive
// once, trading open latency for early detection of corruption.
func WithVerifyChecksums(v bool) Option {
	return func(a *Archive) {
		a.verify = v
	}
}

// Open opens the seekable zstd archive at path, validates its seek
// table and caches the decompressed size and frame count.
func Open(path string, opts ...Option) (*Archive, error) {
	a := &Archive{
		path:    path,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(a)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	r, err := NewReader(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	if a.verify {
		if err := r.VerifyIntegrity(); err != nil {
			r.Close()
			f.Close()
			return nil, err
		}
	}

	a.f = f
	a.r = r
	a.size = r.Size()
	a.frameCount = r.FrameCount()
	return a, nil
}

// Size returns the total decompressed size in bytes. The value is
// cached at open time and stays readable after Close.
func (a *Archive) Size() int64 {
	return a.size
}

// FrameCount returns the number of data frames. Cached like Size.
func (a *Archive) FrameCount() int64 {
	return a.frameCount
}

// ReadRange returns the decompressed bytes in [start, end), with the
// same semantics as Reader.ReadRange. It is safe for concurrent use,
// but concurrent calls serialize on the handle's single decode cursor;
// use ReadRanges to decode several ranges in parallel.
func (a *Archive) ReadRange(start, end int64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, fmt.Errorf("read range: %w", ErrClosed)
	}
	return a.r.ReadRange(start, end)
}

// Close releases the file handle and decode cursor. It is idempotent;
// reads after Close fail with ErrClosed.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.r.Close()
	return a.f.Close()
}
