package alloc

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
)

// Marker is a saved stack cursor position. Rewinding to a marker releases
// every allocation made after the marker was taken in one step.
type Marker int64

// StackAllocator is a lock-free LIFO bump allocator. Allocations advance an
// atomic cursor through the backing block; individual frees are not
// supported. Memory is reclaimed in bulk through Reset or by rewinding to a
// previously saved Marker.
//
// All methods are safe for concurrent use. Rewind and Reset invalidate
// allocations made above the target offset, so callers sequence them against
// in-flight Allocate calls themselves, typically at frame or task boundaries.
type StackAllocator struct {
	cfg   *Config
	name  string
	block []byte

	cursor     atomic.Int64
	peak       atomic.Int64
	allocs     atomic.Int64
	casRetries atomic.Int64
	allocID    atomic.Uint64
}

var _ Allocator = (*StackAllocator)(nil)

// NewStack wraps block with a stack allocator. The allocator owns block
// exclusively for its lifetime; the caller must not hand the same block to
// another allocator.
func NewStack(block []byte, name string, cfg *Config) (*StackAllocator, error) {
	if len(block) == 0 {
		return nil, errors.Wrapf(ErrNoBacking, "stack allocator %q", name)
	}
	s := &StackAllocator{cfg: cfg, name: name, block: block}
	s.cfg.logger().Debug("stack", "allocator created",
		"allocator", name, "capacity", len(block), "debugHeaders", cfg.debugHeaders())
	return s, nil
}

// Allocate reserves size bytes aligned to alignment. The claim is made with a
// compare-and-swap retry loop on the cursor, so concurrent callers never
// block and never receive overlapping regions. Failures leave the cursor
// untouched.
func (s *StackAllocator) Allocate(size, alignment int) ([]byte, error) {
	if size <= 0 {
		s.cfg.logger().Warn("stack", "rejected zero-size allocation", "allocator", s.name)
		return nil, errors.Wrapf(ErrZeroSize, "allocator %s", s.name)
	}
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !align.IsPowerOfTwo(alignment) {
		s.cfg.logger().Error("stack", "rejected invalid alignment",
			"allocator", s.name, "alignment", alignment)
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}

	capacity := len(s.block)
	debug := s.cfg.debugHeaders()
	for {
		cur := int(s.cursor.Load())

		var hdrOff, payload int
		if debug {
			hdrOff = align.Up(cur, headerAlign)
			payload = align.Up(hdrOff+HeaderSize, alignment)
		} else {
			payload = align.Up(cur, alignment)
		}
		newCur := payload + size

		if newCur > capacity {
			s.cfg.logger().Warn("stack", "allocation exceeds capacity",
				"allocator", s.name, "requested", size, "available", capacity-cur)
			return nil, errors.Wrapf(ErrExhausted,
				"allocator %s: requested %d, available %d", s.name, size, capacity-cur)
		}
		if !s.cursor.CompareAndSwap(int64(cur), int64(newCur)) {
			s.casRetries.Add(1)
			continue
		}

		s.allocs.Add(1)
		s.raisePeak(int64(newCur))
		if debug {
			putHeader(s.block, hdrOff, Header{
				Size:    size,
				Padding: payload - hdrOff - HeaderSize,
				AllocID: s.allocID.Add(1),
			})
		}
		return s.block[payload:newCur:newCur], nil
	}
}

// raisePeak lifts the peak-usage high-water mark to used if it is higher.
// Loses only ties: a failed swap means another caller published a value, so
// re-check against it.
func (s *StackAllocator) raisePeak(used int64) {
	for {
		p := s.peak.Load()
		if used <= p || s.peak.CompareAndSwap(p, used) {
			return
		}
	}
}

// Free is a no-op: stack allocations are reclaimed in LIFO order through
// Rewind or all at once through Reset. Calling Free is legal and never an
// error.
func (s *StackAllocator) Free([]byte) error { return nil }

// Reallocate moves buf's contents into a fresh allocation of newSize bytes.
// The old region is abandoned in place (bump allocators cannot reuse it until
// the next Reset or Rewind). A nil buf behaves like Allocate.
func (s *StackAllocator) Reallocate(buf []byte, newSize, alignment int) ([]byte, error) {
	if buf == nil {
		return s.Allocate(newSize, alignment)
	}
	if !s.Owns(buf) {
		return nil, errors.Wrapf(ErrNotOwned, "allocator %s", s.name)
	}
	next, err := s.Allocate(newSize, alignment)
	if err != nil {
		return nil, err
	}
	copy(next, buf)
	return next, nil
}

// Marker snapshots the current cursor. The snapshot stays valid until a
// Reset or a Rewind below it.
func (s *StackAllocator) Marker() Marker {
	return Marker(s.cursor.Load())
}

// Rewind moves the cursor back to m, releasing everything allocated after
// the marker was taken. Rewinding forward (m above the current cursor) or
// outside the block is rejected and leaves state unchanged. Allocations above
// m become invalid; nothing guards concurrent readers of those regions.
func (s *StackAllocator) Rewind(m Marker) error {
	if m < 0 || int(m) > len(s.block) {
		s.cfg.logger().Error("stack", "rewind target outside block",
			"allocator", s.name, "marker", int64(m), "capacity", len(s.block))
		return errors.Wrapf(ErrInvalidMarker, "marker %d outside [0, %d]", int64(m), len(s.block))
	}
	for {
		cur := s.cursor.Load()
		if int64(m) > cur {
			s.cfg.logger().Error("stack", "rewind target ahead of cursor",
				"allocator", s.name, "marker", int64(m), "cursor", cur)
			return errors.Wrapf(ErrInvalidMarker, "marker %d ahead of cursor %d", int64(m), cur)
		}
		if s.cursor.CompareAndSwap(cur, int64(m)) {
			return nil
		}
	}
}

// Reset releases every allocation by moving the cursor to zero. Peak usage
// and the cumulative counters survive. Call only between synchronization
// points, never while another goroutine may allocate or read.
func (s *StackAllocator) Reset() {
	s.cursor.Store(0)
	s.cfg.logger().Debug("stack", "reset", "allocator", s.name)
}

// Used returns the bytes currently claimed, padding and headers included.
func (s *StackAllocator) Used() int { return int(s.cursor.Load()) }

// Capacity returns the size of the backing block.
func (s *StackAllocator) Capacity() int { return len(s.block) }

// Available returns the bytes not yet claimed. Alignment padding may make an
// allocation of exactly this size fail.
func (s *StackAllocator) Available() int { return len(s.block) - int(s.cursor.Load()) }

func (s *StackAllocator) Kind() Kind   { return KindStack }
func (s *StackAllocator) Name() string { return s.name }

// Stats reports a snapshot of the allocator's counters. ActiveAllocations
// mirrors AllocationCount: a stack allocator has no per-allocation liveness
// tracking. FragmentationRatio is always zero, bump allocation cannot
// fragment.
func (s *StackAllocator) Stats() Stats {
	used := int(s.cursor.Load())
	n := s.allocs.Load()
	st := Stats{
		Capacity:          len(s.block),
		Used:              used,
		PeakUsage:         int(s.peak.Load()),
		AllocationCount:   n,
		ActiveAllocations: n,
		CASRetries:        s.casRetries.Load(),
	}
	if n > 0 {
		st.AverageAllocationSize = float64(used) / float64(n)
	}
	return st
}

// Owns reports whether buf points into the allocator's backing block.
func (s *StackAllocator) Owns(buf []byte) bool { return blockContains(s.block, buf) }

// Validate checks the structural invariants: a live backing block and a
// cursor inside it. With debug headers enabled it additionally walks every
// header below the cursor and verifies magic, padding, and size chaining.
// The walk assumes no concurrent allocations.
func (s *StackAllocator) Validate() error {
	if len(s.block) == 0 {
		return errors.Wrapf(ErrNoBacking, "allocator %s", s.name)
	}
	cur := s.cursor.Load()
	if cur < 0 || cur > int64(len(s.block)) {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: cursor %d outside [0, %d]", s.name, cur, len(s.block))
	}
	if s.cfg.debugHeaders() {
		if err := walkHeaders(s.block, int(cur), func(Header, int) bool { return true }); err != nil {
			return errors.Wrapf(err, "allocator %s", s.name)
		}
	}
	return nil
}

func (s *StackAllocator) ThreadSafe() bool      { return true }
func (s *StackAllocator) SupportsFree() bool    { return false }
func (s *StackAllocator) SupportsRealloc() bool { return true }
