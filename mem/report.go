package mem

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DebugReport renders a human-readable snapshot of the whole Manager: the
// global totals, the zone table, and one line per registered allocator.
// Intended for logs, crash dumps, and the memctl CLI, not for parsing.
func (m *Manager) DebugReport() (string, error) {
	stats, err := m.GlobalStats()
	if err != nil {
		return "", err
	}
	records := m.Registry().Records()
	p := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "memory manager report\n")
	fmt.Fprintf(&b, "  reserved %s  used %s  available %s  peak %s\n",
		ibytes(stats.TotalReserved), ibytes(stats.TotalUsed),
		ibytes(stats.TotalAvailable), ibytes(stats.PeakUsage))
	fmt.Fprintf(&b, "  allocators %d  live allocations %s\n\n",
		stats.AllocatorCount, p.Sprintf("%d", stats.ActiveAllocations))

	fmt.Fprintf(&b, "%-14s %10s %10s %10s %7s  %s\n",
		"zone", "capacity", "carved", "used", "load", "grow")
	for _, zs := range stats.Zones {
		load := "-"
		if zs.Capacity > 0 {
			load = fmt.Sprintf("%.1f%%", 100*float64(zs.Carved)/float64(zs.Capacity))
		}
		grow := "no"
		if zs.CanGrow {
			grow = "yes"
		}
		fmt.Fprintf(&b, "%-14s %10s %10s %10s %7s  %s\n",
			zs.Kind, ibytes(zs.Capacity), ibytes(zs.Carved), ibytes(zs.Used), load, grow)
	}

	if len(records) > 0 {
		fmt.Fprintf(&b, "\n%-14s %-7s %-14s %10s %10s %10s %12s\n",
			"allocator", "kind", "zone", "capacity", "used", "peak", "allocs")
		for _, rec := range records {
			as := rec.Allocator.Stats()
			fmt.Fprintf(&b, "%-14s %-7s %-14s %10s %10s %10s %12s\n",
				rec.Name, rec.Allocator.Kind(), rec.Zone,
				ibytes(as.Capacity), ibytes(as.Used), ibytes(as.PeakUsage),
				p.Sprintf("%d", as.AllocationCount))
		}
	}
	return b.String(), nil
}

// CheckMemoryLeaks sweeps every registered allocator and returns the number
// of live allocations, logging per offender. Diagnostic only.
func (m *Manager) CheckMemoryLeaks() (int64, error) {
	if !m.initialized.Load() {
		return 0, ErrNotInitialized
	}
	return m.Registry().LeakCheck(), nil
}

// ValidateAllAllocators runs structural validation on every registered
// allocator, including debug-header walks where headers are enabled, and
// combines the failures.
func (m *Manager) ValidateAllAllocators() error {
	if !m.initialized.Load() {
		return ErrNotInitialized
	}
	return m.Registry().ValidateAll()
}

func ibytes(n int) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}
