package alloc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestHeapAllocator_RandomAllocFree performs random alloc/free traffic and
// validates the free structures after every step.
func TestHeapAllocator_RandomAllocFree(t *testing.T) {
	h, err := NewHeap(make([]byte, 256*KiB), "general", nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42)) // fixed seed for reproducibility
	live := make([][]byte, 0, 128)

	for i := range 400 {
		switch {
		case rng.Intn(3) < 2 || len(live) == 0:
			size := 1 + rng.Intn(2000)
			if rng.Intn(10) == 0 {
				size = 16*KiB + rng.Intn(16*KiB) // exercise the large list
			}
			buf, allocErr := h.Allocate(size, 16)
			if allocErr == nil {
				require.Len(t, buf, size, "step %d", i)
				live = append(live, buf)
			} else {
				require.ErrorIs(t, allocErr, ErrExhausted, "step %d: only exhaustion is acceptable", i)
			}
		default:
			j := rng.Intn(len(live))
			require.NoError(t, h.Free(live[j]), "step %d: free failed", i)
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}

		require.NoError(t, h.Validate(), "step %d: invariant check failed", i)
	}

	t.Logf("final state: %d live allocations, %d bytes used", len(live), h.Used())

	// Drain and confirm the space coalesces back to one maximal span.
	for _, buf := range live {
		require.NoError(t, h.Free(buf))
	}
	require.NoError(t, h.Validate())
	require.Zero(t, h.Used())

	whole, err := h.Allocate(256*KiB, 16)
	require.NoError(t, err, "a drained heap must be one contiguous span")
	require.Len(t, whole, 256*KiB)
}

// TestHeapAllocator_ChurnReuse runs repeated fill/drain cycles and checks
// that capacity never leaks across cycles.
func TestHeapAllocator_ChurnReuse(t *testing.T) {
	h, err := NewHeap(make([]byte, 64*KiB), "general", nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for cycle := range 10 {
		var bufs [][]byte
		for {
			buf, err := h.Allocate(64+rng.Intn(1024), 16)
			if err != nil {
				require.ErrorIs(t, err, ErrExhausted)
				break
			}
			bufs = append(bufs, buf)
		}
		require.NotEmpty(t, bufs, "cycle %d should fit allocations", cycle)

		rng.Shuffle(len(bufs), func(i, j int) { bufs[i], bufs[j] = bufs[j], bufs[i] })
		for _, buf := range bufs {
			require.NoError(t, h.Free(buf), "cycle %d", cycle)
		}
		require.NoError(t, h.Validate(), "cycle %d", cycle)
		require.Zero(t, h.Used(), "cycle %d leaked", cycle)
	}
}
