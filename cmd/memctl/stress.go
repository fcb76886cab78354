package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vantorre/memkit/mem"
	"github.com/vantorre/memkit/mem/alloc"
	"github.com/vantorre/memkit/pkg/memlog"
)

var (
	stressFile       string
	stressZone       string
	stressGoroutines int
	stressAllocs     int
	stressSize       int
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().StringVar(&stressFile, "file", "", "Read the budget from a TOML file instead of a preset")
	cmd.Flags().StringVar(&stressZone, "zone", "frame-temp", "Zone to carve the worker allocators from")
	cmd.Flags().IntVar(&stressGoroutines, "goroutines", 8, "Number of worker goroutines")
	cmd.Flags().IntVar(&stressAllocs, "allocs", 100000, "Allocations per goroutine")
	cmd.Flags().IntVar(&stressSize, "size", 256, "Bytes per allocation")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress [preset]",
		Short: "Run an allocation storm against a live manager",
		Long: `The stress command initializes a manager, carves one stack allocator
per goroutine from the chosen zone, and runs the frame pattern hard: allocate
until the stack fills, rewind, repeat. It reports throughput and the final
manager statistics.

Example:
  memctl stress
  memctl stress constrained --zone thread-local --goroutines 4
  memctl stress --size 64 --allocs 1000000 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(args)
		},
	}
}

type stressResult struct {
	Zone        string  `json:"zone"`
	Goroutines  int     `json:"goroutines"`
	Allocations int64   `json:"allocations"`
	Resets      int64   `json:"resets"`
	Bytes       int64   `json:"bytes"`
	DurationMS  float64 `json:"duration_ms"`
	AllocsPerMS float64 `json:"allocs_per_ms"`
	PeakUsage   int     `json:"peak_usage"`
	Leaked      int64   `json:"leaked"`
}

func runStress(args []string) error {
	if stressGoroutines <= 0 || stressAllocs <= 0 || stressSize <= 0 {
		return fmt.Errorf("goroutines, allocs, and size must all be positive")
	}
	budget, source, err := resolveBudget(args, stressFile)
	if err != nil {
		return err
	}
	zone, err := mem.ParseZone(stressZone)
	if err != nil {
		return err
	}
	printVerbose("Budget source: %s, zone %s\n", source, zone)

	logger := memlog.Discard()
	if verbose {
		logger = memlog.Default()
	}
	m := mem.New(&mem.Options{Logger: logger})
	if err := m.Initialize(budget); err != nil {
		return err
	}
	defer func() { _ = m.Shutdown() }()

	workers := make([]*alloc.StackAllocator, stressGoroutines)
	for i := range workers {
		workers[i], err = m.CreateStackAllocator(zone, 0, fmt.Sprintf("stress-%d", i))
		if err != nil {
			return fmt.Errorf("worker %d: %w", i, err)
		}
	}

	var totalAllocs, resets int64
	var countMu sync.Mutex
	var wg sync.WaitGroup
	start := time.Now()
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var allocated, rewound int64
			for range stressAllocs {
				if _, err := w.Allocate(stressSize, 0); err != nil {
					w.Reset()
					rewound++
					continue
				}
				allocated++
			}
			w.Reset()
			countMu.Lock()
			totalAllocs += allocated
			resets += rewound
			countMu.Unlock()
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	stats, err := m.GlobalStats()
	if err != nil {
		return err
	}
	// Retire the workers before the sweep; stack counters are cumulative, so
	// a leak check only means something once the storm allocators are gone.
	for i, w := range workers {
		if err := m.DestroyAllocator(w); err != nil {
			return fmt.Errorf("retire worker %d: %w", i, err)
		}
	}
	leaked, err := m.CheckMemoryLeaks()
	if err != nil {
		return err
	}

	result := stressResult{
		Zone:        zone.String(),
		Goroutines:  stressGoroutines,
		Allocations: totalAllocs,
		Resets:      resets,
		Bytes:       totalAllocs * int64(stressSize),
		DurationMS:  float64(elapsed.Microseconds()) / 1000,
		PeakUsage:   stats.PeakUsage,
		Leaked:      leaked,
	}
	if result.DurationMS > 0 {
		result.AllocsPerMS = float64(result.Allocations) / result.DurationMS
	}

	if jsonOut {
		return printJSON(result)
	}
	printInfo("stress: %d goroutines x %d allocations of %s from zone %s\n",
		result.Goroutines, stressAllocs, humanize.IBytes(uint64(stressSize)), result.Zone)
	printInfo("  completed %d allocations (%s) in %.1fms (%.0f allocs/ms)\n",
		result.Allocations, humanize.IBytes(uint64(result.Bytes)), result.DurationMS, result.AllocsPerMS)
	printInfo("  stack rewinds: %d, manager peak: %s, live allocations at sweep: %d\n",
		result.Resets, humanize.IBytes(uint64(result.PeakUsage)), result.Leaked)
	return nil
}
