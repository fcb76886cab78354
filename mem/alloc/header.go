package alloc

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/vantorre/memkit/internal/align"
)

// Debug header layout. When Config.DebugHeaders is enabled each allocation is
// preceded by a fixed header written just before the payload:
//
//	offset  size  field
//	0       8     payload size in bytes
//	8       4     padding between header end and payload start
//	12      4     magic (headerMagic)
//	16      8     allocation id (monotonic per allocator)
//
// Headers always start at an 8-byte boundary so a walker can find them
// without knowing the payload alignment: round the walk position up to 8,
// verify the magic, then skip header+padding+size to reach the next one.
const (
	// HeaderSize is the on-buffer size of one debug header.
	HeaderSize = 24

	// headerAlign is the boundary headers are placed on.
	headerAlign = 8

	headerMagic = 0xDEADBEEF
)

// Header is the decoded form of one debug header.
type Header struct {
	Size    int
	Padding int
	AllocID uint64
}

// putHeader writes a header into block at off. The caller guarantees
// off is headerAlign-aligned and block has HeaderSize bytes available.
func putHeader(block []byte, off int, h Header) {
	b := block[off : off+HeaderSize]
	binary.LittleEndian.PutUint64(b[0:8], uint64(h.Size))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Padding))
	binary.LittleEndian.PutUint32(b[12:16], headerMagic)
	binary.LittleEndian.PutUint64(b[16:24], h.AllocID)
}

// readHeader decodes the header at off. Returns ErrCorrupt if the magic does
// not match.
func readHeader(block []byte, off int) (Header, error) {
	if off < 0 || off+HeaderSize > len(block) {
		return Header{}, errors.Wrapf(ErrCorrupt, "header at %d exceeds block of %d bytes", off, len(block))
	}
	b := block[off : off+HeaderSize]
	if magic := binary.LittleEndian.Uint32(b[12:16]); magic != headerMagic {
		return Header{}, errors.Wrapf(ErrCorrupt, "header at %d: magic %#x, want %#x", off, magic, uint32(headerMagic))
	}
	return Header{
		Size:    int(binary.LittleEndian.Uint64(b[0:8])),
		Padding: int(binary.LittleEndian.Uint32(b[8:12])),
		AllocID: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// headerFor locates and decodes the header that precedes the payload at
// payloadOff. The header start is 8-aligned and separated from the payload by
// the recorded padding, so candidate slots are probed downward from the
// highest 8-aligned offset that leaves room for the header, accepting the
// first slot whose magic and padding both check out.
func headerFor(block []byte, payloadOff int) (Header, int, error) {
	if payloadOff < HeaderSize {
		return Header{}, 0, errors.Wrapf(ErrCorrupt, "payload at %d leaves no room for a header", payloadOff)
	}
	for start := align.Down(payloadOff-HeaderSize, headerAlign); start >= 0; start -= headerAlign {
		h, err := readHeader(block, start)
		if err != nil {
			continue
		}
		if start+HeaderSize+h.Padding == payloadOff {
			return h, start, nil
		}
	}
	return Header{}, 0, errors.Wrapf(ErrCorrupt, "no header found before payload at %d", payloadOff)
}

// walkHeaders visits every header in block[0:used] in address order, calling
// fn with the decoded header and the payload offset. Walking stops at the
// first corrupt header or when fn returns false.
func walkHeaders(block []byte, used int, fn func(h Header, payloadOff int) bool) error {
	pos := 0
	for {
		start := align.Up(pos, headerAlign)
		if start+HeaderSize > used {
			return nil
		}
		h, err := readHeader(block, start)
		if err != nil {
			return err
		}
		payload := start + HeaderSize + h.Padding
		if payload+h.Size > used {
			return errors.Wrapf(ErrCorrupt,
				"allocation %d at %d runs past used region (%d+%d > %d)",
				h.AllocID, payload, payload, h.Size, used)
		}
		if !fn(h, payload) {
			return nil
		}
		pos = payload + h.Size
	}
}
