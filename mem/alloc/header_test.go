package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeader_RoundTrip tests encode/decode of one header.
func TestHeader_RoundTrip(t *testing.T) {
	block := make([]byte, 64)
	in := Header{Size: 1234, Padding: 8, AllocID: 99}
	putHeader(block, 8, in)

	out, err := readHeader(block, 8)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

// TestHeader_BadMagic tests that a wrong magic is rejected.
func TestHeader_BadMagic(t *testing.T) {
	block := make([]byte, 64)
	putHeader(block, 0, Header{Size: 10})
	block[14] ^= 0x01

	_, err := readHeader(block, 0)
	require.ErrorIs(t, err, ErrCorrupt)
}

// TestHeader_Bounds tests out-of-range header offsets.
func TestHeader_Bounds(t *testing.T) {
	block := make([]byte, 32)
	_, err := readHeader(block, 16)
	assert.ErrorIs(t, err, ErrCorrupt, "header would run past the block")
	_, err = readHeader(block, -8)
	assert.ErrorIs(t, err, ErrCorrupt)
}

// TestWalkHeaders_TruncatedAllocation tests the walk error when a recorded
// size runs past the used region.
func TestWalkHeaders_TruncatedAllocation(t *testing.T) {
	block := make([]byte, 256)
	putHeader(block, 0, Header{Size: 500, Padding: 0, AllocID: 1})

	err := walkHeaders(block, 128, func(Header, int) bool { return true })
	require.ErrorIs(t, err, ErrCorrupt, "size beyond the used region must fail the walk")
}

// TestWalkHeaders_EarlyStop tests that the callback can end the walk.
func TestWalkHeaders_EarlyStop(t *testing.T) {
	block := make([]byte, 256)
	putHeader(block, 0, Header{Size: 8, Padding: 0, AllocID: 1})
	// Payload of the first allocation ends at 32; the next header starts
	// there.
	putHeader(block, 32, Header{Size: 8, Padding: 0, AllocID: 2})

	visited := 0
	require.NoError(t, walkHeaders(block, 64, func(Header, int) bool {
		visited++
		return false
	}))
	assert.Equal(t, 1, visited, "returning false stops the walk")
}

// TestHeaderFor_MissingHeader tests lookup failure on a payload with no
// header behind it.
func TestHeaderFor_MissingHeader(t *testing.T) {
	block := make([]byte, 128)
	_, _, err := headerFor(block, 64)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, _, err = headerFor(block, 8)
	assert.ErrorIs(t, err, ErrCorrupt, "offsets below one header size cannot have a header")
}
