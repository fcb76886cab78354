package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vantorre/memkit/mem"
)

var zonesFile string

func init() {
	cmd := newZonesCmd()
	cmd.Flags().StringVar(&zonesFile, "file", "", "Read the budget from a TOML file instead of a preset")
	rootCmd.AddCommand(cmd)
}

func newZonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zones [preset]",
		Short: "Show the zone table for a budget",
		Long: `The zones command renders a budget's zone table: declared weight and
bounds plus the size each zone actually realizes.

Example:
  memctl zones
  memctl zones constrained
  memctl zones --file game.toml --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runZones(args)
		},
	}
}

type zoneRow struct {
	Zone      string  `json:"zone"`
	Weight    float64 `json:"weight"`
	MinBytes  int     `json:"min_bytes"`
	MaxBytes  int     `json:"max_bytes"`
	SizeBytes int     `json:"size_bytes"`
	CanGrow   bool    `json:"can_grow"`
}

type zoneTable struct {
	Budget        string    `json:"budget"`
	TotalBytes    int       `json:"total_bytes"`
	RequiredBytes int       `json:"required_bytes"`
	Zones         []zoneRow `json:"zones"`
}

func runZones(args []string) error {
	budget, source, err := resolveBudget(args, zonesFile)
	if err != nil {
		return err
	}
	printVerbose("Budget source: %s\n", source)

	table := buildZoneTable(budget, source)
	if jsonOut {
		return printJSON(table)
	}
	printInfo("%s", renderZoneTable(table))
	return nil
}

func buildZoneTable(b mem.Budget, source string) zoneTable {
	table := zoneTable{
		Budget:        source,
		TotalBytes:    b.TotalBytes,
		RequiredBytes: b.RequiredBytes(),
		Zones:         make([]zoneRow, 0, len(b.Zones)),
	}
	for _, spec := range b.Zones {
		table.Zones = append(table.Zones, zoneRow{
			Zone:      spec.Zone.String(),
			Weight:    spec.Weight,
			MinBytes:  spec.MinBytes,
			MaxBytes:  spec.MaxBytes,
			SizeBytes: b.ZoneSize(spec.Zone),
			CanGrow:   spec.CanGrow,
		})
	}
	return table
}

func renderZoneTable(table zoneTable) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "budget %s: total %s, zone minimums require %s\n\n",
		table.Budget,
		humanize.IBytes(uint64(table.TotalBytes)),
		humanize.IBytes(uint64(table.RequiredBytes)))
	fmt.Fprintf(&sb, "%-14s %7s %10s %10s %10s %6s\n",
		"zone", "weight", "min", "max", "size", "grow")
	for _, row := range table.Zones {
		grow := "no"
		if row.CanGrow {
			grow = "yes"
		}
		fmt.Fprintf(&sb, "%-14s %6.1f%% %10s %10s %10s %6s\n",
			row.Zone, row.Weight*100,
			humanize.IBytes(uint64(row.MinBytes)),
			humanize.IBytes(uint64(row.MaxBytes)),
			humanize.IBytes(uint64(row.SizeBytes)),
			grow)
	}
	return sb.String()
}
