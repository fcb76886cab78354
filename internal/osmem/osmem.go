// Package osmem is the bridge between the memory manager and the operating
// system: it reserves and releases the single contiguous block every zone is
// carved from. Each platform provides ReserveCommit and Release; everything
// above this package works with plain byte slices and offsets.
package osmem

import "github.com/cockroachdb/errors"

// ErrBadSize is returned when a reservation size is zero or negative.
var ErrBadSize = errors.New("osmem: reservation size must be positive")

// Zero overwrites the whole block with zero bytes. Fresh reservations are
// already zero-filled on every platform; this exists for callers that want a
// deterministic wipe of a block that has been written to, such as tests that
// reuse a manager.
func Zero(block []byte) {
	clear(block)
}
