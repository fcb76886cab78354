package alloc

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
)

// heapSpanAlign is the granularity of heap spans. Offsets and sizes are
// always multiples of it, so any request with alignment <= heapSpanAlign is
// satisfied by the span start itself.
const heapSpanAlign = DefaultAlignment

// freeSpan is one free region of the heap. Spans in a size class sit in that
// class's min-heap; spans at or above heapLargeMin sit on the singly linked
// large list instead.
type freeSpan struct {
	off       int
	size      int
	class     int
	heapIndex int
	next      *freeSpan // large list link
}

// spanHeap is a min-heap of free spans keyed on size. The root is the
// smallest span in its class, which makes a fitting root the best fit by
// definition.
type spanHeap []*freeSpan

func (h *spanHeap) Len() int { return len(*h) }

func (h *spanHeap) Less(i, j int) bool { return (*h)[i].size < (*h)[j].size }

func (h *spanHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *spanHeap) Push(x any) {
	sp := x.(*freeSpan)
	sp.heapIndex = len(*h)
	*h = append(*h, sp)
}

func (h *spanHeap) Pop() any {
	old := *h
	n := len(old)
	sp := old[n-1]
	sp.heapIndex = -1
	*h = old[0 : n-1]
	return sp
}

// liveSpan records the underlying span of one live allocation, keyed by
// payload offset. The span can be wider than the payload when the request
// carried extra alignment or was rounded up to the span granularity.
type liveSpan struct {
	off  int
	size int
}

// HeapAllocator is a general-purpose allocator with segregated best-fit free
// lists: one min-heap per size class, a first-fit list for large spans, and
// O(1) neighbor coalescing on free through offset indexes. All span
// bookkeeping lives outside the block, so the payload bytes carry no
// allocator metadata.
//
// This is the strategy for mixed-size, mixed-lifetime allocations that a
// bump or pool strategy cannot serve. Allocate and Free are mutex-guarded.
type HeapAllocator struct {
	cfg    *Config
	name   string
	block  []byte
	usable int

	table *classTable

	mu        sync.Mutex
	freeLists []spanHeap
	largeFree *freeSpan
	startIdx  map[int]int       // span off -> size
	endIdx    map[int]int       // span end -> span off
	byOff     map[int]*freeSpan // span off -> record
	live      map[int]liveSpan  // payload off -> underlying span
	spanPool  sync.Pool

	used     int
	peak     int
	allocs   int64
	deallocs int64
}

var _ Allocator = (*HeapAllocator)(nil)

// NewHeap wraps block with a heap allocator. The usable region is the block
// truncated to the span granularity; blocks below one granule are rejected.
func NewHeap(block []byte, name string, cfg *Config) (*HeapAllocator, error) {
	usable := align.Down(len(block), heapSpanAlign)
	if usable == 0 {
		return nil, errors.Wrapf(ErrNoBacking,
			"heap allocator %q: %d-byte block below span granularity %d", name, len(block), heapSpanAlign)
	}
	table := newClassTable()
	h := &HeapAllocator{
		cfg:       cfg,
		name:      name,
		block:     block,
		usable:    usable,
		table:     table,
		freeLists: make([]spanHeap, table.numClasses()),
		startIdx:  make(map[int]int),
		endIdx:    make(map[int]int),
		byOff:     make(map[int]*freeSpan),
		live:      make(map[int]liveSpan),
		spanPool:  sync.Pool{New: func() any { return &freeSpan{} }},
	}
	h.insertSpan(0, usable)
	h.cfg.logger().Debug("heap", "allocator created",
		"allocator", name, "capacity", len(block), "usable", usable, "classes", table.numClasses())
	return h, nil
}

func (h *HeapAllocator) getSpan() *freeSpan {
	sp := h.spanPool.Get().(*freeSpan)
	*sp = freeSpan{}
	return sp
}

// insertSpan files a free region into its size class heap or the large list
// and records it in the coalescing indexes. Caller holds mu.
func (h *HeapAllocator) insertSpan(off, size int) {
	sp := h.getSpan()
	sp.off, sp.size = off, size
	sp.class = h.table.classFor(size)
	if sp.class == h.table.numClasses() {
		sp.heapIndex = -1
		sp.next = h.largeFree
		h.largeFree = sp
	} else {
		heap.Push(&h.freeLists[sp.class], sp)
	}
	h.startIdx[off] = size
	h.endIdx[off+size] = off
	h.byOff[off] = sp
}

// unindex drops sp from the coalescing indexes. Caller holds mu and has
// already removed sp from its heap or the large list.
func (h *HeapAllocator) unindex(sp *freeSpan) {
	delete(h.startIdx, sp.off)
	delete(h.endIdx, sp.off+sp.size)
	delete(h.byOff, sp.off)
}

// removeSpan detaches a known-free span from whichever structure holds it.
// Caller holds mu.
func (h *HeapAllocator) removeSpan(sp *freeSpan) {
	if sp.class == h.table.numClasses() {
		for p := &h.largeFree; *p != nil; p = &(*p).next {
			if *p == sp {
				*p = sp.next
				break
			}
		}
	} else {
		heap.Remove(&h.freeLists[sp.class], sp.heapIndex)
	}
	h.unindex(sp)
}

// takeSpan pops the best free span that can hold need bytes, trying the
// request's own class, then larger classes, then the large list. Returns nil
// when nothing fits. Caller holds mu.
func (h *HeapAllocator) takeSpan(need int) *freeSpan {
	for c := h.table.classFor(need); c < h.table.numClasses(); c++ {
		fl := &h.freeLists[c]
		if fl.Len() == 0 {
			continue
		}
		// The root is the class minimum: if it cannot hold need (possible
		// only in need's own class), a larger class will.
		if (*fl)[0].size < need {
			continue
		}
		sp := heap.Pop(fl).(*freeSpan)
		h.unindex(sp)
		return sp
	}
	for p := &h.largeFree; *p != nil; p = &(*p).next {
		if (*p).size >= need {
			sp := *p
			*p = sp.next
			h.unindex(sp)
			return sp
		}
	}
	return nil
}

// Allocate reserves size bytes aligned to alignment. Requests are rounded up
// to the span granularity; alignments above the granularity reserve slack so
// the payload can be shifted to a conforming offset.
func (h *HeapAllocator) Allocate(size, alignment int) ([]byte, error) {
	if size <= 0 {
		h.cfg.logger().Warn("heap", "rejected zero-size allocation", "allocator", h.name)
		return nil, errors.Wrapf(ErrZeroSize, "allocator %s", h.name)
	}
	if alignment == 0 {
		alignment = DefaultAlignment
	}
	if !align.IsPowerOfTwo(alignment) {
		h.cfg.logger().Error("heap", "rejected invalid alignment",
			"allocator", h.name, "alignment", alignment)
		return nil, errors.Wrapf(ErrInvalidAlignment, "alignment %d", alignment)
	}
	need := align.Up(size, heapSpanAlign)
	if alignment > heapSpanAlign {
		need += alignment - heapSpanAlign
	}

	h.mu.Lock()
	sp := h.takeSpan(need)
	if sp == nil {
		free := h.usable - h.used
		h.mu.Unlock()
		h.cfg.logger().Warn("heap", "no span fits request",
			"allocator", h.name, "requested", size, "need", need, "free", free)
		return nil, errors.Wrapf(ErrExhausted,
			"allocator %s: requested %d (span %d), %d bytes free", h.name, size, need, free)
	}

	off, spanSize := sp.off, sp.size
	h.spanPool.Put(sp)

	if rem := spanSize - need; rem >= heapSpanAlign {
		h.insertSpan(off+need, rem)
		spanSize = need
	}

	payload := align.Up(off, alignment)
	h.live[payload] = liveSpan{off: off, size: spanSize}
	h.used += spanSize
	if h.used > h.peak {
		h.peak = h.used
	}
	h.allocs++
	h.mu.Unlock()

	return h.block[payload : payload+size : payload+size], nil
}

// Free releases buf's span, coalescing it with free neighbors on both sides
// before filing it back into the free structures.
func (h *HeapAllocator) Free(buf []byte) error {
	if !h.Owns(buf) {
		return errors.Wrapf(ErrNotOwned, "allocator %s", h.name)
	}
	payload := blockOffset(h.block, buf)

	h.mu.Lock()
	defer h.mu.Unlock()

	ls, ok := h.live[payload]
	if !ok {
		h.cfg.logger().Error("heap", "free of unknown allocation",
			"allocator", h.name, "offset", payload)
		return errors.Wrapf(ErrCorrupt, "allocator %s: no live allocation at offset %d", h.name, payload)
	}
	delete(h.live, payload)
	h.used -= ls.size
	h.deallocs++

	off, size := ls.off, ls.size
	if _, ok := h.startIdx[off+size]; ok {
		nb := h.byOff[off+size]
		h.removeSpan(nb)
		size += nb.size
		h.spanPool.Put(nb)
	}
	if prevOff, ok := h.endIdx[off]; ok {
		pb := h.byOff[prevOff]
		h.removeSpan(pb)
		off = pb.off
		size += pb.size
		h.spanPool.Put(pb)
	}
	h.insertSpan(off, size)
	return nil
}

// Reallocate moves buf into a fresh allocation of newSize bytes, copies
// min(len(buf), newSize) bytes, and frees the old span. A nil buf behaves
// like Allocate.
func (h *HeapAllocator) Reallocate(buf []byte, newSize, alignment int) ([]byte, error) {
	if buf == nil {
		return h.Allocate(newSize, alignment)
	}
	if !h.Owns(buf) {
		return nil, errors.Wrapf(ErrNotOwned, "allocator %s", h.name)
	}
	next, err := h.Allocate(newSize, alignment)
	if err != nil {
		return nil, err
	}
	copy(next, buf)
	if err := h.Free(buf); err != nil {
		return nil, err
	}
	return next, nil
}

// Reset discards every allocation and rebuilds the free structures to one
// maximal span. Outstanding buffers become invalid.
func (h *HeapAllocator) Reset() {
	h.mu.Lock()
	h.freeLists = make([]spanHeap, h.table.numClasses())
	h.largeFree = nil
	h.startIdx = make(map[int]int)
	h.endIdx = make(map[int]int)
	h.byOff = make(map[int]*freeSpan)
	h.live = make(map[int]liveSpan)
	h.used = 0
	h.insertSpan(0, h.usable)
	h.mu.Unlock()
	h.cfg.logger().Debug("heap", "reset", "allocator", h.name)
}

// Used returns the bytes reserved by live spans, rounding and alignment
// slack included.
func (h *HeapAllocator) Used() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

func (h *HeapAllocator) Capacity() int { return len(h.block) }

// Available returns the total free bytes. Fragmentation can make a single
// allocation of this size fail; see Stats.FragmentationRatio.
func (h *HeapAllocator) Available() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.usable - h.used
}

func (h *HeapAllocator) Kind() Kind   { return KindHeap }
func (h *HeapAllocator) Name() string { return h.name }

// Stats reports a snapshot of the heap's counters. FragmentationRatio is
// 1 - largestFreeSpan/totalFree: zero when all free memory is one contiguous
// span, approaching one as the free space shatters.
func (h *HeapAllocator) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := Stats{
		Capacity:          len(h.block),
		Used:              h.used,
		PeakUsage:         h.peak,
		AllocationCount:   h.allocs,
		DeallocationCount: h.deallocs,
		ActiveAllocations: int64(len(h.live)),
	}
	if h.allocs > 0 {
		st.AverageAllocationSize = float64(h.used) / float64(h.allocs)
	}
	free := h.usable - h.used
	if free > 0 {
		largest := 0
		for _, sp := range h.byOff {
			if sp.size > largest {
				largest = sp.size
			}
		}
		st.FragmentationRatio = 1 - float64(largest)/float64(free)
	}
	return st
}

// Owns reports whether buf points into the allocator's backing block.
func (h *HeapAllocator) Owns(buf []byte) bool { return blockContains(h.block, buf) }

// Validate cross-checks the free structures: spans in bounds and granule
// aligned, indexes consistent, no span overlapping another span or a live
// allocation, and the byte accounting closed (free + live == usable).
func (h *HeapAllocator) Validate() error {
	if len(h.block) == 0 {
		return errors.Wrapf(ErrNoBacking, "allocator %s", h.name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.byOff) != len(h.startIdx) || len(h.byOff) != len(h.endIdx) {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: index sizes diverge (byOff %d, startIdx %d, endIdx %d)",
			h.name, len(h.byOff), len(h.startIdx), len(h.endIdx))
	}

	type region struct{ off, size int }
	regions := make([]region, 0, len(h.byOff)+len(h.live))
	freeBytes := 0
	for off, sp := range h.byOff {
		if sp.off != off {
			return errors.Wrapf(ErrCorrupt, "allocator %s: span keyed %d records offset %d", h.name, off, sp.off)
		}
		if !align.IsAligned(sp.off, heapSpanAlign) || !align.IsAligned(sp.size, heapSpanAlign) {
			return errors.Wrapf(ErrCorrupt, "allocator %s: span %d+%d off granularity", h.name, sp.off, sp.size)
		}
		if sz, ok := h.startIdx[off]; !ok || sz != sp.size {
			return errors.Wrapf(ErrCorrupt, "allocator %s: startIdx disagrees at %d", h.name, off)
		}
		if so, ok := h.endIdx[off+sp.size]; !ok || so != off {
			return errors.Wrapf(ErrCorrupt, "allocator %s: endIdx disagrees at %d", h.name, off+sp.size)
		}
		freeBytes += sp.size
		regions = append(regions, region{sp.off, sp.size})
	}
	liveBytes := 0
	for _, ls := range h.live {
		liveBytes += ls.size
		regions = append(regions, region{ls.off, ls.size})
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].off < regions[j].off })
	prevEnd := 0
	for _, r := range regions {
		if r.off < prevEnd {
			return errors.Wrapf(ErrCorrupt,
				"allocator %s: region at %d overlaps previous ending at %d", h.name, r.off, prevEnd)
		}
		if r.off+r.size > h.usable {
			return errors.Wrapf(ErrCorrupt,
				"allocator %s: region %d+%d exceeds usable %d", h.name, r.off, r.size, h.usable)
		}
		prevEnd = r.off + r.size
	}
	if freeBytes+liveBytes != h.usable {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: accounting open (%d free + %d live != %d usable)",
			h.name, freeBytes, liveBytes, h.usable)
	}
	if liveBytes != h.used {
		return errors.Wrapf(ErrCorrupt,
			"allocator %s: used counter %d disagrees with live spans %d", h.name, h.used, liveBytes)
	}
	return nil
}

func (h *HeapAllocator) ThreadSafe() bool      { return true }
func (h *HeapAllocator) SupportsFree() bool    { return true }
func (h *HeapAllocator) SupportsRealloc() bool { return true }
