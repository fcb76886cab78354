//go:build !unix && !windows

package osmem

import "github.com/cockroachdb/errors"

// ReserveCommit falls back to the Go heap on platforms without a native
// reservation primitive. make() returns zeroed memory, matching the mmap and
// VirtualAlloc paths.
func ReserveCommit(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrBadSize, "osmem: reserve %d bytes", size)
	}
	return make([]byte, size), nil
}

// Release drops the reference; the Go runtime reclaims the block.
func Release(block []byte) error {
	return nil
}
