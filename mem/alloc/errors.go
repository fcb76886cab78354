package alloc

import "github.com/cockroachdb/errors"

var (
	// ErrNoBacking indicates an allocator was constructed over a nil or
	// empty block.
	ErrNoBacking = errors.New("alloc: nil or empty backing block")

	// ErrZeroSize indicates an allocation request of zero or negative size.
	ErrZeroSize = errors.New("alloc: allocation size must be positive")

	// ErrInvalidAlignment indicates an alignment that is not a power of two.
	ErrInvalidAlignment = errors.New("alloc: alignment must be a power of two")

	// ErrExhausted indicates the request exceeds the allocator's remaining
	// capacity. State is unchanged.
	ErrExhausted = errors.New("alloc: out of capacity")

	// ErrInvalidMarker indicates a Rewind target beyond the capacity or
	// above the current cursor.
	ErrInvalidMarker = errors.New("alloc: invalid rewind marker")

	// ErrNotOwned indicates a buffer that does not belong to this allocator.
	ErrNotOwned = errors.New("alloc: buffer not owned by this allocator")

	// ErrBadElementSize indicates a pool element size that is invalid at
	// construction or exceeded by an allocation request.
	ErrBadElementSize = errors.New("alloc: bad pool element size")

	// ErrCorrupt indicates a failed validation: a clobbered debug header or
	// an inconsistent free list.
	ErrCorrupt = errors.New("alloc: corrupt allocator state")

	// ErrUnsupported indicates an operation the strategy does not provide,
	// such as reallocating a fixed-size pool slot.
	ErrUnsupported = errors.New("alloc: operation not supported by this strategy")
)
