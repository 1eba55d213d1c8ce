package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/planner"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print fleet-wide capacity utilization",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			s, err := p.GetRouteUtilizationStats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
