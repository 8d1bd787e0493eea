// Package cli wires the warden commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Runtime governance layer for autonomous agents",
	Long: "Mediates what context an agent may see and what actions it may take,\n" +
		"resolving every request against declarative atlas manifests and recording\n" +
		"each decision in a tamper-evident hash-chained audit trail.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
