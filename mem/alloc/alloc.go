package alloc

import (
	"unsafe"

	"github.com/vantorre/memkit/pkg/memlog"
)

// DefaultAlignment is used when a caller passes alignment 0.
const DefaultAlignment = 16

// Kind identifies an allocator strategy.
type Kind uint8

const (
	KindStack Kind = iota + 1
	KindLinear
	KindPool
	KindHeap
)

var kindNames = [...]string{
	KindStack:  "stack",
	KindLinear: "linear",
	KindPool:   "pool",
	KindHeap:   "heap",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Stats is a point-in-time snapshot of an allocator's counters.
//
// ActiveAllocations is an approximation for strategies without per-allocation
// liveness tracking (bump allocators report their cumulative allocation
// count). FragmentationRatio is always 0 for pure bump strategies, which
// cannot fragment internally.
type Stats struct {
	Capacity          int   // total bytes owned by the allocator
	Used              int   // bytes currently reserved, headers and padding included
	PeakUsage         int   // high-water mark of Used
	AllocationCount   int64 // cumulative successful Allocate calls
	DeallocationCount int64 // cumulative successful Free calls
	ActiveAllocations int64 // live allocations, approximated where untracked
	CASRetries        int64 // lost compare-and-swap races (lock-free strategies only)

	AverageAllocationSize float64 // Used / AllocationCount, 0 when no allocations
	FragmentationRatio    float64 // 0.0 (none) to 1.0 (unusable free space)
}

// Allocator is the capability contract every strategy satisfies. Allocations
// are plain sub-slices of the strategy's backing block with len == cap ==
// requested size; slices stay valid until the strategy reclaims the region
// they live in (Free, Reset, or a Rewind at or below their offset).
type Allocator interface {
	// Allocate carves size bytes aligned to alignment (power of two;
	// 0 selects DefaultAlignment). Fails without mutating state when the
	// request cannot be satisfied.
	Allocate(size, alignment int) ([]byte, error)

	// Free releases one allocation. Strategies that report
	// SupportsFree() == false accept the call as a silent no-op.
	Free(buf []byte) error

	// Reallocate resizes buf, preserving min(len(buf), newSize) bytes of
	// content. A nil buf behaves like Allocate.
	Reallocate(buf []byte, newSize, alignment int) ([]byte, error)

	// Reset releases every allocation at once. Outstanding slices become
	// invalid; callers coordinate externally.
	Reset()

	Used() int
	Capacity() int
	Available() int

	Kind() Kind
	Name() string
	Stats() Stats

	// Owns reports whether buf points into this allocator's block. The
	// check is advisory: it cannot detect a stale slice whose region was
	// since reclaimed.
	Owns(buf []byte) bool

	// Validate checks structural invariants and returns a descriptive
	// error on corruption.
	Validate() error

	ThreadSafe() bool
	SupportsFree() bool
	SupportsRealloc() bool
}

// Config carries construction options shared by the strategies. A nil *Config
// means defaults: discard logging, no debug headers.
type Config struct {
	// Logger receives allocation diagnostics. Nil discards.
	Logger memlog.Logger

	// DebugHeaders prepends a validation header to every allocation made
	// by header-capable strategies (stack, linear). Costs HeaderSize bytes
	// per allocation.
	DebugHeaders bool
}

func (c *Config) logger() memlog.Logger {
	if c == nil || c.Logger == nil {
		return memlog.Discard()
	}
	return c.Logger
}

func (c *Config) debugHeaders() bool {
	return c != nil && c.DebugHeaders
}

// blockContains reports whether buf's first byte lies inside block. Both
// slices are compared by address, not by value.
func blockContains(block, buf []byte) bool {
	if len(block) == 0 || len(buf) == 0 {
		return false
	}
	p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(block)))
	return p >= base && p < base+uintptr(len(block))
}

// blockOffset returns buf's byte offset from the start of block. Callers
// check blockContains first.
func blockOffset(block, buf []byte) int {
	p := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	base := uintptr(unsafe.Pointer(unsafe.SliceData(block)))
	return int(p - base)
}
