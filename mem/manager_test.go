package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantorre/memkit/internal/testutil"
	"github.com/vantorre/memkit/mem/alloc"
)

// testBudget declares three zones summing exactly to its 64 MiB total:
// frame-temp 16 MiB, entities 32 MiB, general 16 MiB.
func testBudget() Budget {
	return Budget{
		TotalBytes: 64 * alloc.MiB,
		Zones: []ZoneSpec{
			{Zone: ZoneFrameTemp, Weight: 0.25, MinBytes: alloc.MiB, MaxBytes: 16 * alloc.MiB, CanGrow: true},
			{Zone: ZoneEntities, Weight: 0.5, MinBytes: alloc.MiB, MaxBytes: 32 * alloc.MiB, CanGrow: true},
			{Zone: ZoneGeneral, Weight: 0.25, MinBytes: alloc.MiB, MaxBytes: 16 * alloc.MiB, CanGrow: false},
		},
	}
}

func newTestManager(t *testing.T) (*Manager, *testutil.CaptureLogger) {
	t.Helper()
	log := testutil.NewCaptureLogger()
	m := New(&Options{Logger: log})
	require.NoError(t, m.Initialize(testBudget()))
	t.Cleanup(func() { _ = m.Shutdown() })
	return m, log
}

// TestManager_LifecycleGates tests that every operation fails with
// ErrNotInitialized outside the Initialize/Shutdown window.
func TestManager_LifecycleGates(t *testing.T) {
	m := New(&Options{Logger: testutil.NewCaptureLogger()})
	assert.False(t, m.Initialized())

	_, err := m.AllocateFromZone(ZoneGeneral, 1024)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, m.DeallocateToZone(ZoneGeneral, make([]byte, 8)), ErrNotInitialized)
	_, err = m.CreateStackAllocator(ZoneGeneral, 0, "early")
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.GlobalStats()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = m.CheckMemoryLeaks()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, m.ValidateAllAllocators(), ErrNotInitialized)
	require.ErrorIs(t, m.RebalanceZones(), ErrNotInitialized)
	_, ok := m.Zone(ZoneGeneral)
	assert.False(t, ok)

	require.NoError(t, m.Initialize(testBudget()))
	assert.True(t, m.Initialized())
	require.NoError(t, m.Shutdown())
	assert.False(t, m.Initialized())

	_, err = m.AllocateFromZone(ZoneGeneral, 1024)
	require.ErrorIs(t, err, ErrNotInitialized, "the gate closes again after shutdown")
}

// TestManager_Initialize_PartitionsContiguously tests that zones are laid
// out back to back in declaration order at their realized sizes.
func TestManager_Initialize_PartitionsContiguously(t *testing.T) {
	m, _ := newTestManager(t)

	frame, ok := m.Zone(ZoneFrameTemp)
	require.True(t, ok)
	entities, ok := m.Zone(ZoneEntities)
	require.True(t, ok)
	general, ok := m.Zone(ZoneGeneral)
	require.True(t, ok)

	assert.Equal(t, 0, frame.base)
	assert.Equal(t, 16*alloc.MiB, frame.Capacity())
	assert.Equal(t, 16*alloc.MiB, entities.base, "each base is the previous end")
	assert.Equal(t, 32*alloc.MiB, entities.Capacity())
	assert.Equal(t, 48*alloc.MiB, general.base)
	assert.Equal(t, 16*alloc.MiB, general.Capacity())

	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 64*alloc.MiB, stats.TotalReserved)
	assert.Zero(t, stats.TotalUsed)

	_, ok = m.Zone(ZoneAudio)
	assert.False(t, ok, "zones outside the budget do not exist")
}

// TestManager_Initialize_RejectsInvalidBudget tests validation before any
// reservation happens.
func TestManager_Initialize_RejectsInvalidBudget(t *testing.T) {
	m := New(&Options{Logger: testutil.NewCaptureLogger()})
	require.ErrorIs(t, m.Initialize(Budget{}), ErrInvalidBudget)
	assert.False(t, m.Initialized())
}

// TestManager_Initialize_RepeatSameBudgetIsNoOp tests idempotent
// initialization: same budget, same partition, one reservation.
func TestManager_Initialize_RepeatSameBudgetIsNoOp(t *testing.T) {
	m, log := newTestManager(t)

	before, ok := m.Zone(ZoneEntities)
	require.True(t, ok)
	_, err := m.AllocateFromZone(ZoneEntities, 1000)
	require.NoError(t, err)

	require.NoError(t, m.Initialize(testBudget()))
	assert.True(t, log.Contains("warn", "already initialized"))

	after, ok := m.Zone(ZoneEntities)
	require.True(t, ok)
	assert.Same(t, before, after, "the partition survives a repeat initialize")
	assert.Equal(t, 1000, after.Used())
}

// TestManager_Initialize_MismatchKeepsLiveState tests that re-initializing
// with a different budget fails and changes nothing.
func TestManager_Initialize_MismatchKeepsLiveState(t *testing.T) {
	m, log := newTestManager(t)

	other := testBudget()
	other.TotalBytes = 128 * alloc.MiB
	require.ErrorIs(t, m.Initialize(other), ErrAlreadyInitialized)
	assert.True(t, log.Contains("error", "different budget"))

	assert.Equal(t, 64*alloc.MiB, m.Budget().TotalBytes)
	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 64*alloc.MiB, stats.TotalReserved)
}

// TestManager_Initialize_GrowsOvercommittedReservation tests that zone
// minimums beyond the declared total grow the reservation instead of
// shorting the last zones.
func TestManager_Initialize_GrowsOvercommittedReservation(t *testing.T) {
	log := testutil.NewCaptureLogger()
	m := New(&Options{Logger: log})
	over := Budget{
		TotalBytes: 16 * alloc.MiB,
		Zones: []ZoneSpec{
			{Zone: ZoneFrameTemp, Weight: 0.1, MinBytes: 12 * alloc.MiB, MaxBytes: 32 * alloc.MiB},
			{Zone: ZoneGeneral, Weight: 0.1, MinBytes: 12 * alloc.MiB, MaxBytes: 32 * alloc.MiB},
		},
	}
	require.NoError(t, m.Initialize(over))
	t.Cleanup(func() { _ = m.Shutdown() })

	assert.True(t, log.Contains("warn", "growing reservation"))
	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 24*alloc.MiB, stats.TotalReserved)

	for _, kind := range []ZoneKind{ZoneFrameTemp, ZoneGeneral} {
		z, ok := m.Zone(kind)
		require.True(t, ok)
		assert.Equal(t, 12*alloc.MiB, z.Capacity(), "zone %s keeps its full minimum", kind)
	}
}

// TestManager_AllocateFromZone tests carving: usable disjoint sub-slices and
// accurate zone accounting.
func TestManager_AllocateFromZone(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.AllocateFromZone(ZoneEntities, 1000)
	require.NoError(t, err)
	require.Len(t, a, 1000)
	assert.Equal(t, 1000, cap(a), "carves are full slices, no append room")

	b, err := m.AllocateFromZone(ZoneEntities, 500)
	require.NoError(t, err)

	for i := range a {
		a[i] = 0xAA
	}
	for i := range b {
		b[i] = 0xBB
	}
	assert.Equal(t, byte(0xAA), a[999], "carves do not alias")

	z, _ := m.Zone(ZoneEntities)
	assert.Equal(t, 1500, z.Used())

	offA, ok := m.reservationOffset(a)
	require.True(t, ok)
	offB, ok := m.reservationOffset(b)
	require.True(t, ok)
	assert.GreaterOrEqual(t, offB, offA+1000, "second carve starts past the first")
	assert.Zero(t, offB%16, "carves are aligned within the reservation")
}

// TestManager_AllocateFromZone_Exhaustion tests that an oversized carve
// fails cleanly and leaves the zone untouched.
func TestManager_AllocateFromZone_Exhaustion(t *testing.T) {
	m, log := newTestManager(t)

	_, err := m.AllocateFromZone(ZoneFrameTemp, 16*alloc.MiB)
	require.NoError(t, err, "a zone-sized carve fits exactly")

	_, err = m.AllocateFromZone(ZoneFrameTemp, 1)
	require.ErrorIs(t, err, ErrZoneExhausted)
	assert.True(t, log.Contains("warn", "carve failed"))

	z, _ := m.Zone(ZoneFrameTemp)
	assert.Equal(t, 16*alloc.MiB, z.Carved(), "the failed carve moved nothing")
}

// TestManager_AllocateFromZone_Errors tests vocabulary and size misuse.
func TestManager_AllocateFromZone_Errors(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.AllocateFromZone(ZoneKind(99), 1024)
	require.ErrorIs(t, err, ErrUnknownZone)

	_, err = m.AllocateFromZone(ZoneAudio, 1024)
	require.ErrorIs(t, err, ErrUnknownZone, "audio is not in the test budget")

	_, err = m.AllocateFromZone(ZoneGeneral, 0)
	require.ErrorIs(t, err, alloc.ErrZeroSize)
	_, err = m.AllocateFromZone(ZoneGeneral, -5)
	require.ErrorIs(t, err, alloc.ErrZeroSize)
}

// TestManager_DeallocateToZone tests the statistics-only credit path.
func TestManager_DeallocateToZone(t *testing.T) {
	m, log := newTestManager(t)

	buf, err := m.AllocateFromZone(ZoneGeneral, 2048)
	require.NoError(t, err)
	z, _ := m.Zone(ZoneGeneral)
	require.Equal(t, 2048, z.Used())

	require.NoError(t, m.DeallocateToZone(ZoneGeneral, buf))
	assert.Zero(t, z.Used())
	assert.Equal(t, 2048, z.Carved(), "credits never return bytes to the zone")

	require.NoError(t, m.DeallocateToZone(ZoneGeneral, nil), "nil credit is a no-op")

	require.NoError(t, m.DeallocateToZone(ZoneGeneral, buf))
	assert.Equal(t, -2048, z.Used())
	assert.True(t, log.Contains("warn", "negative"), "double credits are loud")

	foreign := make([]byte, 64)
	require.NoError(t, m.DeallocateToZone(ZoneGeneral, foreign))
	assert.True(t, log.Contains("warn", "outside the zone"))
}

// TestManager_CreateAllocators tests one allocator of each strategy carved
// from the zones it was asked for.
func TestManager_CreateAllocators(t *testing.T) {
	m, _ := newTestManager(t)

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 1*alloc.MiB, "frame")
	require.NoError(t, err)
	assert.Equal(t, alloc.KindStack, stack.Kind())
	assert.Equal(t, 1*alloc.MiB, stack.Capacity())
	assert.Equal(t, "frame", stack.Name())

	linear, err := m.CreateLinearAllocator(ZoneEntities, 128*alloc.KiB, "spawn-scratch")
	require.NoError(t, err)
	assert.Equal(t, alloc.KindLinear, linear.Kind())
	assert.Equal(t, 128*alloc.KiB, linear.Capacity())

	pool, err := m.CreatePoolAllocator(ZoneEntities, 64, 1024, "particles")
	require.NoError(t, err)
	assert.Equal(t, alloc.KindPool, pool.Kind())
	assert.Equal(t, 1024, pool.Slots())
	assert.Equal(t, 64, pool.ElemSize())

	heap, err := m.CreateHeapAllocator(ZoneGeneral, 2*alloc.MiB, "general")
	require.NoError(t, err)
	assert.Equal(t, alloc.KindHeap, heap.Kind())

	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.AllocatorCount)

	entities, _ := m.Zone(ZoneEntities)
	assert.Equal(t, 128*alloc.KiB+64*1024, entities.Used(), "zone usage is the carved backing blocks")

	buf, err := stack.Allocate(4096, 0)
	require.NoError(t, err)
	assert.Len(t, buf, 4096, "allocators hand out their carved bytes")
}

// TestManager_Create_DefaultSizes tests that size zero selects each kind's
// default.
func TestManager_Create_DefaultSizes(t *testing.T) {
	m, _ := newTestManager(t)

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 0, "stack-default")
	require.NoError(t, err)
	assert.Equal(t, alloc.DefaultStackSize, stack.Capacity())

	linear, err := m.CreateLinearAllocator(ZoneGeneral, 0, "linear-default")
	require.NoError(t, err)
	assert.Equal(t, alloc.DefaultLinearSize, linear.Capacity())

	heap, err := m.CreateHeapAllocator(ZoneEntities, 0, "heap-default")
	require.NoError(t, err)
	assert.Equal(t, alloc.DefaultHeapSize, heap.Capacity(), "the 32 MiB default fills the entities zone")
}

// TestManager_Create_AdjustsOutOfRangeSize tests default substitution for a
// size below the stack minimum.
func TestManager_Create_AdjustsOutOfRangeSize(t *testing.T) {
	m, log := newTestManager(t)

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 1024, "tiny-request")
	require.NoError(t, err)
	assert.Equal(t, alloc.DefaultStackSize, stack.Capacity())
	assert.True(t, log.Contains("warn", "size out of range"))
}

// TestManager_Create_FailsWhenZoneFull tests that a valid allocator size can
// still exhaust its zone, without a registration leak.
func TestManager_Create_FailsWhenZoneFull(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.CreateHeapAllocator(ZoneGeneral, 17*alloc.MiB, "too-big")
	require.ErrorIs(t, err, ErrZoneExhausted)

	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Zero(t, stats.AllocatorCount)
	z, _ := m.Zone(ZoneGeneral)
	assert.Zero(t, z.Used())
}

// TestManager_CreatePool_Geometry tests pool sizing: stride rounding, the
// default substitution for undersized pools, and bad geometry rejection.
func TestManager_CreatePool_Geometry(t *testing.T) {
	m, log := newTestManager(t)

	pool, err := m.CreatePoolAllocator(ZoneEntities, 48, 100, "events")
	require.NoError(t, err)
	assert.Equal(t, 100, pool.Slots())
	assert.Equal(t, 4800, pool.Capacity())

	small, err := m.CreatePoolAllocator(ZoneEntities, 20, 100, "undersized")
	require.NoError(t, err)
	assert.Equal(t, alloc.DefaultPoolSize, small.Capacity(), "3200 bytes is below the pool minimum")
	assert.Equal(t, alloc.DefaultPoolSize/32, small.Slots(), "slot count follows the adjusted block")
	assert.True(t, log.Contains("warn", "size out of range"))

	_, err = m.CreatePoolAllocator(ZoneEntities, 0, 100, "zero-elem")
	require.ErrorIs(t, err, alloc.ErrBadElementSize)
	_, err = m.CreatePoolAllocator(ZoneEntities, 64, 0, "zero-count")
	require.ErrorIs(t, err, alloc.ErrBadElementSize)
}

// TestManager_DestroyAllocator tests retiring an allocator: unregistered,
// usage credited, bytes still carved.
func TestManager_DestroyAllocator(t *testing.T) {
	m, _ := newTestManager(t)

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 1*alloc.MiB, "short-lived")
	require.NoError(t, err)
	z, _ := m.Zone(ZoneFrameTemp)
	require.Equal(t, 1*alloc.MiB, z.Used())

	require.NoError(t, m.DestroyAllocator(stack))
	assert.Zero(t, z.Used())
	assert.Equal(t, 1*alloc.MiB, z.Carved(), "the block stays carved until shutdown")

	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Zero(t, stats.AllocatorCount)

	require.ErrorIs(t, m.DestroyAllocator(stack), alloc.ErrNotOwned, "double destroy")
}

// TestManager_GlobalStats tests recomputed usage, active allocation sums,
// and the monotone peak.
func TestManager_GlobalStats(t *testing.T) {
	m, _ := newTestManager(t)

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 1*alloc.MiB, "frame")
	require.NoError(t, err)
	for range 3 {
		_, err = stack.Allocate(256, 0)
		require.NoError(t, err)
	}
	raw, err := m.AllocateFromZone(ZoneGeneral, 4096)
	require.NoError(t, err)

	stats, err := m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 64*alloc.MiB, stats.TotalReserved)
	assert.Equal(t, 1*alloc.MiB+4096, stats.TotalUsed)
	assert.Equal(t, stats.TotalReserved-stats.TotalUsed, stats.TotalAvailable)
	assert.Equal(t, 1, stats.AllocatorCount)
	assert.Equal(t, int64(3), stats.ActiveAllocations)
	assert.GreaterOrEqual(t, stats.PeakUsage, stats.TotalUsed)

	require.Len(t, stats.Zones, 3)
	assert.Equal(t, ZoneFrameTemp, stats.Zones[0].Kind, "zone stats follow declaration order")
	assert.Equal(t, ZoneEntities, stats.Zones[1].Kind)
	assert.Equal(t, ZoneGeneral, stats.Zones[2].Kind)

	peakBefore := stats.PeakUsage
	require.NoError(t, m.DeallocateToZone(ZoneGeneral, raw))
	stats, err = m.GlobalStats()
	require.NoError(t, err)
	assert.Equal(t, 1*alloc.MiB, stats.TotalUsed, "usage is recomputed, not cached")
	assert.Equal(t, peakBefore, stats.PeakUsage, "peak never moves down")
}

// TestManager_RebalanceZones tests the diagnostic survey output.
func TestManager_RebalanceZones(t *testing.T) {
	m, log := newTestManager(t)

	_, err := m.AllocateFromZone(ZoneEntities, 8*alloc.MiB)
	require.NoError(t, err)

	log.Reset()
	require.NoError(t, m.RebalanceZones())
	assert.Equal(t, 4, log.CountLevel("info"), "one line per zone plus the summary")
	assert.True(t, log.Contains("info", "zone load"))
	assert.True(t, log.Contains("info", "boundaries are fixed"))
}

// TestManager_Shutdown tests the release path with leaked allocations.
func TestManager_Shutdown(t *testing.T) {
	log := testutil.NewCaptureLogger()
	m := New(&Options{Logger: log})
	require.NoError(t, m.Initialize(testBudget()))

	stack, err := m.CreateStackAllocator(ZoneFrameTemp, 1*alloc.MiB, "leaky")
	require.NoError(t, err)
	_, err = stack.Allocate(512, 0)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown())
	assert.False(t, m.Initialized())
	assert.True(t, log.Contains("warn", "live allocations"))

	require.NoError(t, m.Shutdown(), "repeat shutdown is a no-op")
}
