package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/planner"
)

var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "Edit the ordered stops of a route",
}

var (
	stopAddress string
	stopDwell   int
	stopOrder   int
)

var stopsListCmd = &cobra.Command{
	Use:   "list <route-id>",
	Short: "List stops in order",
	Args:  cobra.ExactArgs(1),
	RunE: routeOp(func(ctx context.Context, p *planner.Planner, id int64) (any, error) {
		return p.ListStops(ctx, id)
	}),
}

var stopsAddCmd = &cobra.Command{
	Use:   "add <route-id> <name>",
	Short: "Append a stop, or place it at an explicit --order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("route-id", args[0])
		if err != nil {
			return err
		}
		stop := model.RouteStop{Name: args[1], Address: stopAddress, DwellMinutes: stopDwell, StopOrder: stopOrder}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			s, err := p.AddStopToRoute(ctx, id, stop)
			if err != nil {
				return err
			}
			if _, err := p.ComputeAndPersistTiming(ctx, id); err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

var stopsRemoveCmd = &cobra.Command{
	Use:   "remove <route-id> <stop-id>",
	Short: "Remove a stop",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			if err := p.RemoveStopFromRoute(ctx, ids[0], ids[1]); err != nil {
				return err
			}
			return printTiming(ctx, cmd, p, ids[0])
		})
	},
}

var stopsReorderCmd = &cobra.Command{
	Use:   "reorder <route-id> <stop-id>...",
	Short: "Set the stop order to the given sequence of ids",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			if _, err := p.ReorderStops(ctx, ids[0], ids[1:]); err != nil {
				return err
			}
			return printTiming(ctx, cmd, p, ids[0])
		})
	},
}

var stopsUpCmd = &cobra.Command{
	Use:   "up <route-id> <stop-id>",
	Short: "Swap a stop with its predecessor",
	Args:  cobra.ExactArgs(2),
	RunE:  moveStop((*planner.Planner).MoveStopUp),
}

var stopsDownCmd = &cobra.Command{
	Use:   "down <route-id> <stop-id>",
	Short: "Swap a stop with its successor",
	Args:  cobra.ExactArgs(2),
	RunE:  moveStop((*planner.Planner).MoveStopDown),
}

func init() {
	stopsAddCmd.Flags().StringVar(&stopAddress, "address", "", "street address")
	stopsAddCmd.Flags().IntVar(&stopDwell, "dwell", 0, "dwell minutes (default applies when unset)")
	stopsAddCmd.Flags().IntVar(&stopOrder, "order", 0, "explicit stop order (next free order when unset)")

	stopsCmd.AddCommand(stopsListCmd, stopsAddCmd, stopsRemoveCmd, stopsReorderCmd, stopsUpCmd, stopsDownCmd)
	routeCmd.AddCommand(stopsCmd)
}

type moveFunc func(p *planner.Planner, ctx context.Context, routeID, stopID int64) ([]model.RouteStop, error)

func moveStop(fn moveFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			if _, err := fn(p, ctx, ids[0], ids[1]); err != nil {
				return err
			}
			return printTiming(ctx, cmd, p, ids[0])
		})
	}
}

// printTiming recomputes the route schedule and prints it.
func printTiming(ctx context.Context, cmd *cobra.Command, p *planner.Planner, routeID int64) error {
	s, err := p.ComputeAndPersistTiming(ctx, routeID)
	if err != nil {
		return err
	}
	return printJSON(cmd, s)
}
