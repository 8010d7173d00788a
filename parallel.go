package seekzstd

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// A Range is one [Start, End) request of a batch read, in decompressed
// byte offsets.
type Range struct {
	Start, End int64
}

// ReadRanges decodes every requested range concurrently and returns one
// byte slice per range, in the same order as the input regardless of
// completion order. Each range gets its own file handle and Reader, so
// no decoder state is shared between goroutines; the fan-out is bounded
// by the WithWorkers option.
//
// The batch fails atomically: the first error cancels it and work
// already completed for other ranges is discarded.
func (a *Archive) ReadRanges(ranges []Range) ([][]byte, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("read ranges: %w", ErrClosed)
	}
	path, workers := a.path, a.workers
	a.mu.Unlock()

	// Reject malformed ranges up front, before any handle is opened or
	// decode work starts.
	for _, rg := range ranges {
		if rg.Start < 0 || rg.End < rg.Start {
			return nil, fmt.Errorf("range [%d, %d): %w", rg.Start, rg.End, ErrInvalidRange)
		}
	}

	out := make([][]byte, len(ranges))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, rg := range ranges {
		i, rg := i, rg
		g.Go(func() error {
			data, err := readRangeFromFile(path, rg)
			if err != nil {
				return err
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// readRangeFromFile services one range of a batch on its own short-lived
// file handle and decode cursor.
func readRangeFromFile(path string, rg Range) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	r, err := NewReader(f, fi.Size())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadRange(rg.Start, rg.End)
}
