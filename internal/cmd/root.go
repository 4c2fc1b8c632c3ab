// Package cmd implements the xlbuild command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xlbuild",
	Short: "Build xlsx workbooks from templates and bank CSV exports",
	Long: `xlbuild renders YAML workbook templates against data files, statically
validates templates without data, and imports bank account CSV exports,
producing xlsx workbooks with validated formulas and named ranges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render(iconFail+" "+err.Error()))
		return 1
	}
	return 0
}
