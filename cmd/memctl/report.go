package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantorre/memkit/mem"
	"github.com/vantorre/memkit/mem/alloc"
	"github.com/vantorre/memkit/pkg/memlog"
)

var (
	reportFile    string
	reportHeaders bool
)

func init() {
	cmd := newReportCmd()
	cmd.Flags().StringVar(&reportFile, "file", "", "Read the budget from a TOML file instead of a preset")
	cmd.Flags().BoolVar(&reportHeaders, "debug-headers", false, "Enable per-allocation debug headers")
	rootCmd.AddCommand(cmd)
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [preset]",
		Short: "Initialize a manager, carve sample allocators, print its report",
		Long: `The report command brings up a live manager on the chosen budget,
creates a representative allocator in each zone the budget declares, performs
a few allocations, and prints the manager's debug report.

Example:
  memctl report
  memctl report constrained --debug-headers
  memctl report --file game.toml --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(args)
		},
	}
}

type jsonZoneStats struct {
	Zone     string `json:"zone"`
	Capacity int    `json:"capacity"`
	Used     int    `json:"used"`
	Carved   int    `json:"carved"`
	CanGrow  bool   `json:"can_grow"`
}

type jsonReport struct {
	Reserved        int             `json:"reserved"`
	Used            int             `json:"used"`
	Available       int             `json:"available"`
	Peak            int             `json:"peak"`
	Allocators      int             `json:"allocators"`
	LiveAllocations int64           `json:"live_allocations"`
	Zones           []jsonZoneStats `json:"zones"`
}

func runReport(args []string) error {
	budget, source, err := resolveBudget(args, reportFile)
	if err != nil {
		return err
	}
	printVerbose("Budget source: %s\n", source)

	logger := memlog.Discard()
	if verbose {
		logger = memlog.Default()
	}
	m := mem.New(&mem.Options{Logger: logger, DebugHeaders: reportHeaders})
	if err := m.Initialize(budget); err != nil {
		return err
	}
	defer func() { _ = m.Shutdown() }()

	if err := carveSamples(m, budget); err != nil {
		return err
	}

	if jsonOut {
		stats, err := m.GlobalStats()
		if err != nil {
			return err
		}
		out := jsonReport{
			Reserved:        stats.TotalReserved,
			Used:            stats.TotalUsed,
			Available:       stats.TotalAvailable,
			Peak:            stats.PeakUsage,
			Allocators:      stats.AllocatorCount,
			LiveAllocations: stats.ActiveAllocations,
		}
		for _, zs := range stats.Zones {
			out.Zones = append(out.Zones, jsonZoneStats{
				Zone:     zs.Kind.String(),
				Capacity: zs.Capacity,
				Used:     zs.Used,
				Carved:   zs.Carved,
				CanGrow:  zs.CanGrow,
			})
		}
		return printJSON(out)
	}

	report, err := m.DebugReport()
	if err != nil {
		return err
	}
	printInfo("%s", report)
	return nil
}

// carveSamples creates one representative allocator per zone the budget
// declares with a nonzero size, and touches each so the report has usage to
// show.
func carveSamples(m *mem.Manager, budget mem.Budget) error {
	for _, spec := range budget.Zones {
		if budget.ZoneSize(spec.Zone) == 0 {
			continue
		}
		if err := carveSample(m, spec.Zone); err != nil {
			return fmt.Errorf("sample allocator for zone %s: %w", spec.Zone, err)
		}
	}
	return nil
}

func carveSample(m *mem.Manager, zone mem.ZoneKind) error {
	name := "sample-" + zone.String()
	switch zone {
	case mem.ZoneFrameTemp, mem.ZoneThreadLocal:
		a, err := m.CreateStackAllocator(zone, alloc.MinSmallAllocator, name)
		if err != nil {
			return err
		}
		_, err = a.Allocate(16*alloc.KiB, 0)
		return err
	case mem.ZoneEntities:
		a, err := m.CreatePoolAllocator(zone, 128, 4096, name)
		if err != nil {
			return err
		}
		for range 64 {
			if _, err := a.Allocate(128, 0); err != nil {
				return err
			}
		}
		return nil
	case mem.ZoneAssets:
		a, err := m.CreateLinearAllocator(zone, alloc.MinMediumAllocator, name)
		if err != nil {
			return err
		}
		_, err = a.Allocate(256*alloc.KiB, 0)
		return err
	default:
		a, err := m.CreateHeapAllocator(zone, alloc.MinMediumAllocator, name)
		if err != nil {
			return err
		}
		for range 16 {
			if _, err := a.Allocate(4*alloc.KiB, 0); err != nil {
				return err
			}
		}
		return nil
	}
}
