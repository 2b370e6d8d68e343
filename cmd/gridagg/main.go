// Package main provides the entry point for the gridagg CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gridagg/cmd/gridagg/commands"
	"github.com/Sumatoshi-tech/gridagg/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridagg",
		Short: "gridagg - station capacity and load aggregation",
		Long: `gridagg aggregates filtered station records of a distribution grid and
writes capacity-sorted reports, plus top and bottom stations by margin.

Commands:
  run       Aggregate one tier/consumer selection`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
