// Package commands implements the golden-record CLI: PDF discovery, the
// multi-agent extraction pipeline, and schema migration.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "golden-record",
	Short: "Chemical product Golden Record extraction pipeline",
	Long: `golden-record ingests heterogeneous chemical product PDFs (TDS, SDS, RPI,
CoA, brochures) and produces one canonical structured record per product,
with provenance, confidence, and versioned history per regional variant.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
