package alloc

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
	"github.com/vantorre/memkit/internal/overflow"
)

// poolSlotAlign is the guaranteed alignment of every pool slot. Slot strides
// are rounded up to it, so any request with alignment <= poolSlotAlign lands
// on a properly aligned address for free.
const poolSlotAlign = DefaultAlignment

// poolNilSlot terminates the intrusive free list.
const poolNilSlot = int64(-1)

// PoolAllocator hands out fixed-size slots from its backing block. Free
// slots form an intrusive LIFO list threaded through the slots themselves
// (the first 8 bytes of a free slot hold the index of the next free slot),
// so the only bookkeeping outside the block is one bit of liveness per slot.
//
// Pools are the strategy for homogeneous objects with unpredictable
// lifetimes: particles, events, pooled components. Allocate and Free are
// both O(1) and safe for concurrent use.
type PoolAllocator struct {
	cfg      *Config
	name     string
	block    []byte
	elemSize int // usable bytes per slot
	stride   int // bytes between slot starts, poolSlotAlign multiple
	slots    int

	mu       sync.Mutex
	freeHead int64
	inUse    []bool
	active   int
	peak     int
	allocs   int64
	deallocs int64
}

var _ Allocator = (*PoolAllocator)(nil)

// PoolBlockSize returns the backing block size that fits count elemSize-byte
// slots once the per-slot stride rounding is applied. Zero when either
// argument is non-positive or the geometry overflows int.
func PoolBlockSize(elemSize, count int) int {
	if elemSize <= 0 || count <= 0 {
		return 0
	}
	stride := align.Up(elemSize, poolSlotAlign)
	if stride <= 0 {
		return 0
	}
	total, ok := overflow.Mul(stride, count)
	if !ok {
		return 0
	}
	return total
}

// NewPool wraps block with a pool of elemSize-byte slots. The stride between
// slots is elemSize rounded up to poolSlotAlign; the block must fit at least
// one slot.
func NewPool(block []byte, elemSize int, name string, cfg *Config) (*PoolAllocator, error) {
	if len(block) == 0 {
		return nil, errors.Wrapf(ErrNoBacking, "pool allocator %q", name)
	}
	if elemSize <= 0 {
		return nil, errors.Wrapf(ErrBadElementSize, "pool allocator %q: element size %d", name, elemSize)
	}
	stride := align.Up(elemSize, poolSlotAlign)
	slots := len(block) / stride
	if slots == 0 {
		return nil, errors.Wrapf(ErrBadElementSize,
			"pool allocator %q: %d-byte block fits no %d-byte slots", name, len(block), stride)
	}
	p := &PoolAllocator{
		cfg:      cfg,
		name:     name,
		block:    block,
		elemSize: elemSize,
		stride:   stride,
		slots:    slots,
		inUse:    make([]bool, slots),
	}
	p.chainSlots()
	p.cfg.logger().Debug("pool", "allocator created",
		"allocator", name, "capacity", len(block), "elemSize", elemSize, "slots", slots)
	return p, nil
}

// chainSlots rebuilds the free list to cover every slot in index order.
// Caller holds mu (or has exclusive access during construction).
func (p *PoolAllocator) chainSlots() {
	for i := range p.slots {
		next := int64(i + 1)
		if i == p.slots-1 {
			next = poolNilSlot
		}
		p.setLink(i, next)
		p.inUse[i] = false
	}
	p.freeHead = 0
	p.active = 0
}

func (p *PoolAllocator) setLink(slot int, next int64) {
	off := slot * p.stride
	binary.LittleEndian.PutUint64(p.block[off:off+8], uint64(next))
}

func (p *PoolAllocator) link(slot int) int64 {
	off := slot * p.stride
	return int64(binary.LittleEndian.Uint64(p.block[off : off+8]))
}

// Allocate pops a free slot and returns its first size bytes. Requests above
// the configured element size fail, as do alignments stricter than
// poolSlotAlign.
func (p *PoolAllocator) Allocate(size, alignment int) ([]byte, error) {
	if size <= 0 {
		p.cfg.logger().Warn("pool", "rejected zero-size allocation", "allocator", p.name)
		return nil, errors.Wrapf(ErrZeroSize, "allocator %s", p.name)
	}
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !align.IsPowerOfTwo(alignment) {
		p.cfg.logger().Error("pool", "rejected invalid alignment",
			"allocator", p.name, "alignment", alignment)
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	if alignment > poolSlotAlign {
		return nil, errors.Wrapf(ErrInvalidAlignment,
			"allocator %s: alignment %d exceeds slot alignment %d", p.name, alignment, poolSlotAlign)
	}
	if size > p.elemSize {
		p.cfg.logger().Warn("pool", "request exceeds slot size",
			"allocator", p.name, "requested", size, "elemSize", p.elemSize)
		return nil, errors.Wrapf(ErrBadElementSize,
			"allocator %s: requested %d exceeds slot size %d", p.name, size, p.elemSize)
	}

	p.mu.Lock()
	if p.freeHead == poolNilSlot {
		p.mu.Unlock()
		p.cfg.logger().Warn("pool", "no free slots",
			"allocator", p.name, "requested", size, "slots", p.slots)
		return nil, errors.Wrapf(ErrExhausted, "allocator %s: all %d slots in use", p.name, p.slots)
	}
	slot := int(p.freeHead)
	p.freeHead = p.link(slot)
	p.inUse[slot] = true
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	p.allocs++
	p.mu.Unlock()

	off := slot * p.stride
	return p.block[off : off+size : off+size], nil
}

// Free returns buf's slot to the free list. The buffer must start exactly on
// a slot boundary of this pool; freeing a slot twice is detected and
// rejected.
func (p *PoolAllocator) Free(buf []byte) error {
	if !p.Owns(buf) {
		return errors.Wrapf(ErrNotOwned, "allocator %s", p.name)
	}
	off := blockOffset(p.block, buf)
	if off%p.stride != 0 {
		return errors.Wrapf(ErrNotOwned,
			"allocator %s: offset %d is not a slot boundary", p.name, off)
	}
	slot := off / p.stride

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inUse[slot] {
		p.cfg.logger().Error("pool", "double free",
			"allocator", p.name, "slot", slot)
		return errors.Wrapf(ErrCorrupt, "allocator %s: slot %d freed twice", p.name, slot)
	}
	p.inUse[slot] = false
	p.setLink(slot, p.freeHead)
	p.freeHead = int64(slot)
	p.active--
	p.deallocs++
	return nil
}

// Reallocate cannot resize a fixed slot. A nil buf behaves like Allocate;
// anything else reports ErrUnsupported.
func (p *PoolAllocator) Reallocate(buf []byte, newSize, alignment int) ([]byte, error) {
	if buf == nil {
		return p.Allocate(newSize, alignment)
	}
	return nil, errors.Wrapf(ErrUnsupported, "allocator %s: pool slots are fixed size", p.name)
}

// Reset returns every slot to the free list. Outstanding slot buffers become
// invalid.
func (p *PoolAllocator) Reset() {
	p.mu.Lock()
	p.chainSlots()
	p.mu.Unlock()
	p.cfg.logger().Debug("pool", "reset", "allocator", p.name)
}

// Used returns the bytes reserved by live slots, stride padding included.
func (p *PoolAllocator) Used() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active * p.stride
}

func (p *PoolAllocator) Capacity() int { return len(p.block) }

// Available returns the bytes in free slots. The tail remainder past the
// last full slot is never allocatable.
func (p *PoolAllocator) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return (p.slots - p.active) * p.stride
}

func (p *PoolAllocator) Kind() Kind   { return KindPool }
func (p *PoolAllocator) Name() string { return p.name }

// ElemSize returns the usable bytes per slot.
func (p *PoolAllocator) ElemSize() int { return p.elemSize }

// Slots returns the total slot count.
func (p *PoolAllocator) Slots() int { return p.slots }

// Stats reports a snapshot of the pool's counters. FragmentationRatio is
// zero: every free slot can satisfy any request the pool accepts.
func (p *PoolAllocator) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{
		Capacity:          len(p.block),
		Used:              p.active * p.stride,
		PeakUsage:         p.peak * p.stride,
		AllocationCount:   p.allocs,
		DeallocationCount: p.deallocs,
		ActiveAllocations: int64(p.active),
	}
	if p.allocs > 0 {
		st.AverageAllocationSize = float64(st.Used) / float64(p.allocs)
	}
	return st
}

// Owns reports whether buf points into the allocator's backing block.
func (p *PoolAllocator) Owns(buf []byte) bool { return blockContains(p.block, buf) }

// Validate walks the free list and cross-checks it against the liveness
// table: every free slot reachable, no cycles, counts consistent.
func (p *PoolAllocator) Validate() error {
	if len(p.block) == 0 {
		return errors.Wrapf(ErrNoBacking, "allocator %s", p.name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make([]bool, p.slots)
	n := 0
	for cur := p.freeHead; cur != poolNilSlot; {
		if cur < 0 || cur >= int64(p.slots) {
			return errors.Wrapf(ErrCorrupt,
				"allocator %s: free list index %d outside [0, %d)", p.name, cur, p.slots)
		}
		i := int(cur)
		if seen[i] {
			return errors.Wrapf(ErrCorrupt, "allocator %s: free list cycle at slot %d", p.name, i)
		}
		if p.inUse[i] {
			return errors.Wrapf(ErrCorrupt, "allocator %s: live slot %d on free list", p.name, i)
		}
		seen[i] = true
		n++
		cur = p.link(i)
	}
	if n != p.slots-p.active {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: free list holds %d slots, expected %d", p.name, n, p.slots-p.active)
	}
	return nil
}

func (p *PoolAllocator) ThreadSafe() bool      { return true }
func (p *PoolAllocator) SupportsFree() bool    { return true }
func (p *PoolAllocator) SupportsRealloc() bool { return false }
