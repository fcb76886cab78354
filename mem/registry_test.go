package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantorre/memkit/internal/testutil"
	"github.com/vantorre/memkit/mem/alloc"
)

// TestRegistry_RegisterUnregister tests the record list bookkeeping.
func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry(testutil.NewCaptureLogger())

	a, err := alloc.NewStack(make([]byte, 4096), "a", nil)
	require.NoError(t, err)
	b, err := alloc.NewStack(make([]byte, 4096), "b", nil)
	require.NoError(t, err)

	r.Register(a, ZoneFrameTemp, 4096)
	r.Register(b, ZoneGeneral, 4096)
	assert.Equal(t, 2, r.Count())

	recs := r.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Name, "records keep registration order")
	assert.Equal(t, ZoneFrameTemp, recs[0].Zone)
	assert.False(t, recs[0].Created.IsZero())

	assert.True(t, r.Unregister(a))
	assert.Equal(t, 1, r.Count())
	assert.False(t, r.Unregister(a), "already removed")
	assert.Equal(t, "b", r.Records()[0].Name)
}

// TestRegistry_LeakCheck tests the live-allocation sweep and its warnings.
func TestRegistry_LeakCheck(t *testing.T) {
	log := testutil.NewCaptureLogger()
	r := NewRegistry(log)

	clean, err := alloc.NewStack(make([]byte, 4096), "clean", nil)
	require.NoError(t, err)
	leaky, err := alloc.NewStack(make([]byte, 4096), "leaky", nil)
	require.NoError(t, err)
	for range 3 {
		_, err = leaky.Allocate(64, 8)
		require.NoError(t, err)
	}

	r.Register(clean, ZoneFrameTemp, 4096)
	r.Register(leaky, ZoneGeneral, 4096)

	assert.Equal(t, int64(3), r.LeakCheck())
	assert.True(t, log.Contains("warn", "live allocations"))
	assert.Equal(t, 1, log.CountLevel("warn"), "only the leaky allocator warns")
}

// TestRegistry_ValidateAll tests the validation sweep against one corrupted
// allocator.
func TestRegistry_ValidateAll(t *testing.T) {
	log := testutil.NewCaptureLogger()
	r := NewRegistry(log)

	healthy, err := alloc.NewStack(make([]byte, 4096), "healthy", nil)
	require.NoError(t, err)
	r.Register(healthy, ZoneFrameTemp, 4096)
	require.NoError(t, r.ValidateAll())

	block := make([]byte, 4096)
	bad, err := alloc.NewStack(block, "bad", &alloc.Config{DebugHeaders: true})
	require.NoError(t, err)
	_, err = bad.Allocate(64, 8)
	require.NoError(t, err)
	block[12] ^= 0xFF // clobber the first header's magic
	r.Register(bad, ZoneGeneral, 4096)

	err = r.ValidateAll()
	require.ErrorIs(t, err, alloc.ErrCorrupt)
	assert.Contains(t, err.Error(), "bad")
	assert.True(t, log.Contains("error", "failed validation"))
}
