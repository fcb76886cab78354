package alloc

// Byte size units.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// Recommended allocator size bounds. An individual allocator never exceeds
// MaxAllocatorSize regardless of strategy; zones themselves may be larger and
// back several allocators.
const (
	// AbsoluteMinSize is the floor below which no allocator is viable.
	AbsoluteMinSize = 4 * KiB

	MinTinyAllocator   = 64 * KiB
	MinSmallAllocator  = 256 * KiB
	MinMediumAllocator = 1 * MiB
	MinLargeAllocator  = 16 * MiB
	MinHugeAllocator   = 64 * MiB

	MaxAllocatorSize = 256 * MiB
)

// Per-kind default sizes, substituted when a caller requests size 0 or a size
// outside the kind's recommended range.
const (
	DefaultStackSize  = 2 * MiB
	DefaultLinearSize = 1 * MiB
	DefaultPoolSize   = 4 * MiB
	DefaultHeapSize   = 32 * MiB
)

// SizeRange is the recommended [Min, Max] envelope and the substitute Default
// for one allocator kind.
type SizeRange struct {
	Min     int
	Max     int
	Default int
}

var sizeRanges = [...]SizeRange{
	KindStack:  {Min: MinSmallAllocator, Max: MaxAllocatorSize, Default: DefaultStackSize},
	KindLinear: {Min: MinTinyAllocator, Max: MaxAllocatorSize, Default: DefaultLinearSize},
	KindPool:   {Min: AbsoluteMinSize, Max: MaxAllocatorSize, Default: DefaultPoolSize},
	KindHeap:   {Min: MinMediumAllocator, Max: MaxAllocatorSize, Default: DefaultHeapSize},
}

// Limits returns the recommended size envelope for kind. Unknown kinds get a
// permissive medium envelope.
func Limits(kind Kind) SizeRange {
	if int(kind) < len(sizeRanges) && sizeRanges[kind] != (SizeRange{}) {
		return sizeRanges[kind]
	}
	return SizeRange{Min: AbsoluteMinSize, Max: MaxAllocatorSize, Default: MinMediumAllocator}
}

// ValidSize reports whether size falls inside kind's recommended envelope.
// Pool allocators accept small sizes; everything is bounded below by
// AbsoluteMinSize.
func ValidSize(kind Kind, size int) bool {
	if size < AbsoluteMinSize {
		return false
	}
	r := Limits(kind)
	return size >= r.Min && size <= r.Max
}

// AdjustSize maps a requested size onto one the kind accepts: zero or
// out-of-range requests are replaced with the kind's default, valid requests
// pass through untouched.
func AdjustSize(kind Kind, size int) int {
	if size != 0 && ValidSize(kind, size) {
		return size
	}
	return Limits(kind).Default
}
