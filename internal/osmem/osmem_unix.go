//go:build unix

package osmem

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// ReserveCommit reserves address space and commits physical backing for size
// bytes in a single call, as an anonymous private mapping. The returned block
// is zero-filled by the kernel.
func ReserveCommit(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrBadSize, "osmem: reserve %d bytes", size)
	}
	block, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "osmem: mmap %d bytes", size)
	}
	return block, nil
}

// Release returns a block obtained from ReserveCommit to the operating system.
// Releasing a nil or empty block is a no-op, as is a double release.
func Release(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	err := unix.Munmap(block)
	if errors.Is(err, unix.EINVAL) {
		// Already unmapped; treat as no-op for callers.
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "osmem: munmap")
	}
	return nil
}
