package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/algomatic/regime-backtest/pkg/strategy"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List registered strategy variants",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-4s %-12s %-28s %s\n", "ID", "Name", "Display Name", "Description")
		fmt.Fprintln(out, strings.Repeat("-", 80))
		for _, d := range strategy.GetAll() {
			name := d.Name
			if name == strategy.Default {
				name += "*"
			}
			fmt.Fprintf(out, "%-4d %-12s %-28s %s\n", d.ID, name, d.DisplayName, d.Description)
		}
		fmt.Fprintf(out, "\nTotal: %d strategies (* default)\n", strategy.Count())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
