package memmetrics

import (
	"testing"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantorre/memkit/internal/testutil"
	"github.com/vantorre/memkit/mem"
	"github.com/vantorre/memkit/mem/alloc"
)

func metricsTestManager(t *testing.T) *mem.Manager {
	t.Helper()
	m := mem.New(&mem.Options{Logger: testutil.NewCaptureLogger()})
	budget := mem.Budget{
		TotalBytes: 32 * alloc.MiB,
		Zones: []mem.ZoneSpec{
			{Zone: mem.ZoneFrameTemp, Weight: 0.5, MinBytes: alloc.MiB, MaxBytes: 16 * alloc.MiB},
			{Zone: mem.ZoneGeneral, Weight: 0.5, MinBytes: alloc.MiB, MaxBytes: 16 * alloc.MiB},
		},
	}
	require.NoError(t, m.Initialize(budget))
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func gaugeValue(t *testing.T, r metrics.Registry, name string) int64 {
	t.Helper()
	g, ok := r.Get(name).(metrics.Gauge)
	require.True(t, ok, "gauge %s not registered", name)
	return g.Value()
}

// TestRegister_Gauges tests that gauge reads track the live manager.
func TestRegister_Gauges(t *testing.T) {
	m := metricsTestManager(t)
	r := metrics.NewRegistry()

	c, err := Register(m, r)
	require.NoError(t, err)

	assert.Equal(t, int64(32*alloc.MiB), gaugeValue(t, r, "memkit/reserved"))
	assert.Zero(t, gaugeValue(t, r, "memkit/used"))
	assert.Equal(t, int64(16*alloc.MiB), gaugeValue(t, r, "memkit/zone/general/capacity"))

	_, err = m.AllocateFromZone(mem.ZoneGeneral, 4096)
	require.NoError(t, err)

	assert.Equal(t, int64(4096), gaugeValue(t, r, "memkit/used"), "reads are live, not sampled")
	assert.Equal(t, int64(4096), gaugeValue(t, r, "memkit/zone/general/used"))
	assert.Zero(t, gaugeValue(t, r, "memkit/zone/frame-temp/used"))
	assert.Equal(t, int64(4096), gaugeValue(t, r, "memkit/peak"))

	_, err = m.CreateStackAllocator(mem.ZoneFrameTemp, alloc.MiB, "frame")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gaugeValue(t, r, "memkit/allocators"))

	c.Unregister()
	assert.Nil(t, r.Get("memkit/used"))
	assert.Nil(t, r.Get("memkit/zone/general/used"))
}

// TestRegister_RequiresInitialized tests the lifecycle gate at registration.
func TestRegister_RequiresInitialized(t *testing.T) {
	m := mem.New(&mem.Options{Logger: testutil.NewCaptureLogger()})
	_, err := Register(m, metrics.NewRegistry())
	require.ErrorIs(t, err, mem.ErrNotInitialized)
}

// TestRegister_DuplicateLeavesFirstIntact tests that a second registration
// on the same registry fails without tearing down the first collector.
func TestRegister_DuplicateLeavesFirstIntact(t *testing.T) {
	m := metricsTestManager(t)
	r := metrics.NewRegistry()

	_, err := Register(m, r)
	require.NoError(t, err)
	_, err = Register(m, r)
	require.Error(t, err, "duplicate gauge names")

	require.NotNil(t, r.Get("memkit/used"), "the first collector survives")
}

// TestGauges_ReadZeroAfterShutdown tests that scraping a shut-down manager
// degrades to zeros instead of failing.
func TestGauges_ReadZeroAfterShutdown(t *testing.T) {
	m := metricsTestManager(t)
	r := metrics.NewRegistry()
	_, err := Register(m, r)
	require.NoError(t, err)

	_, err = m.AllocateFromZone(mem.ZoneGeneral, 4096)
	require.NoError(t, err)
	require.NoError(t, m.Shutdown())

	assert.Zero(t, gaugeValue(t, r, "memkit/used"))
	assert.Zero(t, gaugeValue(t, r, "memkit/zone/general/capacity"))
}
