package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newPresetsCmd())
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in memory budgets",
		Long: `The presets command lists the built-in budgets with their declared
totals and the bytes the zone minimums actually require.

Example:
  memctl presets
  memctl presets --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPresets()
		},
	}
}

type presetInfo struct {
	Name          string `json:"name"`
	TotalBytes    int    `json:"total_bytes"`
	RequiredBytes int    `json:"required_bytes"`
	Zones         int    `json:"zones"`
}

func runPresets() error {
	infos := make([]presetInfo, 0, 3)
	for _, name := range []string{"desktop", "authoring", "constrained"} {
		b, err := presetByName(name)
		if err != nil {
			return err
		}
		infos = append(infos, presetInfo{
			Name:          name,
			TotalBytes:    b.TotalBytes,
			RequiredBytes: b.RequiredBytes(),
			Zones:         len(b.Zones),
		})
	}

	if jsonOut {
		return printJSON(infos)
	}

	printInfo("%-12s %10s %10s %6s\n", "preset", "total", "required", "zones")
	for _, info := range infos {
		note := ""
		if info.RequiredBytes > info.TotalBytes {
			note = "  (minimums exceed total)"
		}
		printInfo("%-12s %10s %10s %6d%s\n",
			info.Name,
			humanize.IBytes(uint64(info.TotalBytes)),
			humanize.IBytes(uint64(info.RequiredBytes)),
			info.Zones, note)
	}
	return nil
}
