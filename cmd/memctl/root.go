package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vantorre/memkit/mem"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "memctl",
	Short: "Inspect and exercise memkit memory budgets",
	Long: `memctl is a tool for working with memkit zone budgets and memory
managers. It renders built-in and file-based budgets as zone tables, runs
allocation storms against a live manager, and prints manager debug reports.`,
	Version: "0.1.0",
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// presetByName resolves a built-in budget name.
func presetByName(name string) (mem.Budget, error) {
	switch strings.ToLower(name) {
	case "desktop":
		return mem.DesktopBudget(), nil
	case "authoring":
		return mem.AuthoringBudget(), nil
	case "constrained":
		return mem.ConstrainedBudget(), nil
	}
	return mem.Budget{}, fmt.Errorf("unknown preset %q (want desktop, authoring, or constrained)", name)
}

// resolveBudget picks the budget a command should operate on: --file wins,
// then an optional positional preset name, then the desktop preset.
func resolveBudget(args []string, file string) (mem.Budget, string, error) {
	if file != "" {
		b, err := mem.LoadBudgetFile(file)
		return b, file, err
	}
	name := "desktop"
	if len(args) > 0 {
		name = args[0]
	}
	b, err := presetByName(name)
	return b, name, err
}
