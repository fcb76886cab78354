//go:build windows

package osmem

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/windows"
)

// ReserveCommit reserves address space and commits physical backing for size
// bytes in a single VirtualAlloc call. Committed pages are zero-filled.
func ReserveCommit(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrBadSize, "osmem: reserve %d bytes", size)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrapf(err, "osmem: VirtualAlloc %d bytes", size)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// Release returns a block obtained from ReserveCommit to the operating system.
// Releasing a nil or empty block is a no-op.
func Release(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(block)))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return errors.Wrap(err, "osmem: VirtualFree")
	}
	return nil
}
