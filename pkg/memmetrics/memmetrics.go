// Package memmetrics exposes a live Manager's counters as go-metrics
// functional gauges, for embedders that already scrape a metrics registry.
// The core never imports this package; the dependency points one way.
package memmetrics

import (
	"fmt"

	"github.com/rcrowley/go-metrics"

	"github.com/vantorre/memkit/mem"
)

// Collector owns the gauge names registered for one Manager so they can be
// cleanly unregistered.
type Collector struct {
	registry metrics.Registry
	names    []string
}

// Register installs functional gauges for the manager's global counters and
// one used/carved/capacity triple per budgeted zone. Gauge reads pull live
// values; nothing is sampled or cached. The manager must be initialized so
// the zone set is known. A nil registry selects metrics.DefaultRegistry.
func Register(m *mem.Manager, registry metrics.Registry) (*Collector, error) {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	if !m.Initialized() {
		return nil, mem.ErrNotInitialized
	}

	c := &Collector{registry: registry}

	global := map[string]func() int64{
		"memkit/reserved":   func() int64 { return int64(globalStats(m).TotalReserved) },
		"memkit/used":       func() int64 { return int64(globalStats(m).TotalUsed) },
		"memkit/available":  func() int64 { return int64(globalStats(m).TotalAvailable) },
		"memkit/peak":       func() int64 { return int64(globalStats(m).PeakUsage) },
		"memkit/allocators": func() int64 { return int64(globalStats(m).AllocatorCount) },
		"memkit/live":       func() int64 { return globalStats(m).ActiveAllocations },
	}
	for name, f := range global {
		if err := c.add(name, f); err != nil {
			c.Unregister()
			return nil, err
		}
	}

	for _, spec := range m.Budget().Zones {
		kind := spec.Zone
		triple := map[string]func() int64{
			fmt.Sprintf("memkit/zone/%s/capacity", kind): func() int64 { return int64(zoneStats(m, kind).Capacity) },
			fmt.Sprintf("memkit/zone/%s/used", kind):     func() int64 { return int64(zoneStats(m, kind).Used) },
			fmt.Sprintf("memkit/zone/%s/carved", kind):   func() int64 { return int64(zoneStats(m, kind).Carved) },
		}
		for name, f := range triple {
			if err := c.add(name, f); err != nil {
				c.Unregister()
				return nil, err
			}
		}
	}
	return c, nil
}

// Unregister removes every gauge this collector registered.
func (c *Collector) Unregister() {
	for _, name := range c.names {
		c.registry.Unregister(name)
	}
	c.names = nil
}

func (c *Collector) add(name string, f func() int64) error {
	if err := c.registry.Register(name, metrics.NewFunctionalGauge(f)); err != nil {
		return err
	}
	c.names = append(c.names, name)
	return nil
}

// globalStats swallows the not-initialized error: a scraped-after-shutdown
// manager reads as zero rather than failing the whole scrape.
func globalStats(m *mem.Manager) mem.GlobalStats {
	stats, err := m.GlobalStats()
	if err != nil {
		return mem.GlobalStats{}
	}
	return stats
}

func zoneStats(m *mem.Manager, kind mem.ZoneKind) mem.ZoneStats {
	z, ok := m.Zone(kind)
	if !ok {
		return mem.ZoneStats{}
	}
	return z.Stats()
}
