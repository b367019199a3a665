// Package cmd wires the uvmasm CLI, grounded on the teacher's
// cmd/cli/cmd/root.go (the same rootCmd/Execute/init shape, one
// sub-command group instead of an architecture group).
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uvmasm",
	Short: "UVM assembler front end",
	Long:  `uvmasm parses and type-checks UVM assembly source, reporting diagnostics or an encoding-ready AST summary.`,
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "pipeline",
		Title: "Pipeline",
	})
	rootCmd.AddCommand(assembleCmd)
}
