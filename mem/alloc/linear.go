package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
)

// LinearAllocator is a sequential bump allocator for single-goroutine
// scratch memory. It is the cheapest strategy: a plain cursor, no atomics,
// no markers. The only way to reclaim memory is Reset.
//
// LinearAllocator is not safe for concurrent use; give each worker its own
// instance instead of sharing one.
type LinearAllocator struct {
	cfg    *Config
	name   string
	block  []byte
	cursor int
	peak   int
	allocs int64
}

var _ Allocator = (*LinearAllocator)(nil)

// NewLinear wraps block with a linear allocator.
func NewLinear(block []byte, name string, cfg *Config) (*LinearAllocator, error) {
	if len(block) == 0 {
		return nil, errors.Wrapf(ErrNoBacking, "linear allocator %q", name)
	}
	l := &LinearAllocator{cfg: cfg, name: name, block: block}
	l.cfg.logger().Debug("linear", "allocator created",
		"allocator", name, "capacity", len(block), "debugHeaders", cfg.debugHeaders())
	return l, nil
}

// Allocate reserves size bytes aligned to alignment by advancing the cursor.
// Failures leave the cursor untouched.
func (l *LinearAllocator) Allocate(size, alignment int) ([]byte, error) {
	if size <= 0 {
		l.cfg.logger().Warn("linear", "rejected zero-size allocation", "allocator", l.name)
		return nil, errors.Wrapf(ErrZeroSize, "allocator %s", l.name)
	}
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !align.IsPowerOfTwo(alignment) {
		l.cfg.logger().Error("linear", "rejected invalid alignment",
			"allocator", l.name, "alignment", alignment)
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}

	var hdrOff, payload int
	if l.cfg.debugHeaders() {
		hdrOff = align.Up(l.cursor, headerAlign)
		payload = align.Up(hdrOff+HeaderSize, alignment)
	} else {
		payload = align.Up(l.cursor, alignment)
	}
	newCur := payload + size
	if newCur > len(l.block) {
		l.cfg.logger().Warn("linear", "allocation exceeds capacity",
			"allocator", l.name, "requested", size, "available", len(l.block)-l.cursor)
		return nil, errors.Wrapf(ErrExhausted,
			"allocator %s: requested %d, available %d", l.name, size, len(l.block)-l.cursor)
	}

	if l.cfg.debugHeaders() {
		putHeader(l.block, hdrOff, Header{
			Size:    size,
			Padding: payload - hdrOff - HeaderSize,
			AllocID: uint64(l.allocs + 1),
		})
	}
	l.cursor = newCur
	if newCur > l.peak {
		l.peak = newCur
	}
	l.allocs++
	return l.block[payload:newCur:newCur], nil
}

// Free is a no-op: linear allocations are reclaimed only through Reset.
func (l *LinearAllocator) Free([]byte) error { return nil }

// Reallocate moves buf's contents into a fresh allocation of newSize bytes,
// abandoning the old region. A nil buf behaves like Allocate.
func (l *LinearAllocator) Reallocate(buf []byte, newSize, alignment int) ([]byte, error) {
	if buf == nil {
		return l.Allocate(newSize, alignment)
	}
	if !l.Owns(buf) {
		return nil, errors.Wrapf(ErrNotOwned, "allocator %s", l.name)
	}
	next, err := l.Allocate(newSize, alignment)
	if err != nil {
		return nil, err
	}
	copy(next, buf)
	return next, nil
}

// Reset releases every allocation by moving the cursor to zero. Peak usage
// and the cumulative allocation count survive.
func (l *LinearAllocator) Reset() {
	l.cursor = 0
	l.cfg.logger().Debug("linear", "reset", "allocator", l.name)
}

func (l *LinearAllocator) Used() int      { return l.cursor }
func (l *LinearAllocator) Capacity() int  { return len(l.block) }
func (l *LinearAllocator) Available() int { return len(l.block) - l.cursor }

func (l *LinearAllocator) Kind() Kind   { return KindLinear }
func (l *LinearAllocator) Name() string { return l.name }

// Stats reports a snapshot of the allocator's counters. ActiveAllocations
// mirrors AllocationCount, linear allocation has no per-allocation liveness
// tracking.
func (l *LinearAllocator) Stats() Stats {
	st := Stats{
		Capacity:          len(l.block),
		Used:              l.cursor,
		PeakUsage:         l.peak,
		AllocationCount:   l.allocs,
		ActiveAllocations: l.allocs,
	}
	if l.allocs > 0 {
		st.AverageAllocationSize = float64(l.cursor) / float64(l.allocs)
	}
	return st
}

// Owns reports whether buf points into the allocator's backing block.
func (l *LinearAllocator) Owns(buf []byte) bool { return blockContains(l.block, buf) }

// Validate checks for a live backing block and an in-bounds cursor, walking
// the debug headers when they are enabled.
func (l *LinearAllocator) Validate() error {
	if len(l.block) == 0 {
		return errors.Wrapf(ErrNoBacking, "allocator %s", l.name)
	}
	if l.cursor < 0 || l.cursor > len(l.block) {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: cursor %d outside [0, %d]", l.name, l.cursor, len(l.block))
	}
	if l.cfg.debugHeaders() {
		if err := walkHeaders(l.block, l.cursor, func(Header, int) bool { return true }); err != nil {
			return errors.Wrapf(err, "allocator %s", l.name)
		}
	}
	return nil
}

func (l *LinearAllocator) ThreadSafe() bool      { return false }
func (l *LinearAllocator) SupportsFree() bool    { return false }
func (l *LinearAllocator) SupportsRealloc() bool { return true }
