// Package align contains the power-of-two alignment math shared by the zone
// table and the allocator strategies. All helpers operate on byte offsets
// relative to a block base, never on raw addresses, so they stay valid when a
// backing block is a Go slice rather than a fixed mapping.
package align

// IsPowerOfTwo reports whether n is a positive power of two.
// Zero and negative values are not powers of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Up returns off rounded up to the next multiple of alignment.
// alignment must be a power of two; callers validate before calling.
//
// Example:
//
//	Up(1, 8)   = 8
//	Up(8, 8)   = 8
//	Up(9, 16)  = 16
//	Up(17, 16) = 32
func Up(off, alignment int) int {
	mask := alignment - 1
	return (off + mask) &^ mask
}

// Down returns off rounded down to the previous multiple of alignment.
// alignment must be a power of two.
//
// Example:
//
//	Down(7, 8)  = 0
//	Down(8, 8)  = 8
//	Down(31, 16) = 16
func Down(off, alignment int) int {
	return off &^ (alignment - 1)
}

// IsAligned reports whether off is a multiple of alignment.
// alignment must be a power of two.
func IsAligned(off, alignment int) bool {
	return off&(alignment-1) == 0
}

// Padding returns the number of bytes between off and the next multiple of
// alignment. Zero when off is already aligned.
func Padding(off, alignment int) int {
	return Up(off, alignment) - off
}
