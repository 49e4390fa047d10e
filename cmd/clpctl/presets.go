package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"ClpWatch/internal/usecase"

	"github.com/spf13/cobra"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List sensitivity and watchlist presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SENSITIVITY\tZWIN\tPOLICY\tP_STRESS\tP_EXTREME\tK_STRESS\tK_EXTREME")
			for _, s := range usecase.Sensitivities() {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\t%.2f\t%.1f\t%.1f\n", s.Name, s.ZWindow, s.Policy,
					s.Thresholds.PStress, s.Thresholds.PExtreme, s.Thresholds.KStress, s.Thresholds.KExtreme)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "WATCHLIST\tSYMBOLS")
			for _, wl := range usecase.Watchlists() {
				fmt.Fprintf(tw, "%s\t%s\n", wl.Name, strings.Join(wl.Symbols, ","))
			}
			return tw.Flush()
		},
	}
}
