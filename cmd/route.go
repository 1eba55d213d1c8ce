package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/outcome"
	"github.com/kilianp07/busroute/core/planner"
	"github.com/kilianp07/busroute/core/store"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Create and manage routes",
}

var (
	routeDesc   string
	routeDate   string
	routeSchool string
	routeActive string
)

var routeCreateCmd = &cobra.Command{
	Use:   "create <name> <YYYY-MM-DD>",
	Short: "Create a draft route",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDate(args[1])
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			r, err := p.CreateRoute(ctx, args[0], date, routeDesc)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		})
	},
}

var routeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := routeFilter()
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			routes, err := p.ListRoutes(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(cmd, routes)
		})
	},
}

var routeShowCmd = &cobra.Command{
	Use:   "show <route-id>",
	Short: "Show a route and its stops",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("route-id", args[0])
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			r, err := p.GetRoute(ctx, id)
			if err != nil {
				return err
			}
			stops, err := p.ListStops(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"route": r, "stops": stops})
		})
	},
}

var routeValidateCmd = &cobra.Command{
	Use:   "validate <route-id>",
	Short: "Report activation issues and warnings",
	Args:  cobra.ExactArgs(1),
	RunE: routeOp(func(ctx context.Context, p *planner.Planner, id int64) (any, error) {
		return p.ValidateRouteForActivation(ctx, id)
	}),
}

var routeActivateCmd = &cobra.Command{
	Use:   "activate <route-id>",
	Short: "Activate a route after validation",
	Args:  cobra.ExactArgs(1),
	RunE: routeOp(func(ctx context.Context, p *planner.Planner, id int64) (any, error) {
		return p.ActivateRoute(ctx, id)
	}),
}

var routeDeactivateCmd = &cobra.Command{
	Use:   "deactivate <route-id>",
	Short: "Return a route to draft",
	Args:  cobra.ExactArgs(1),
	RunE: routeOp(func(ctx context.Context, p *planner.Planner, id int64) (any, error) {
		return p.DeactivateRoute(ctx, id)
	}),
}

var routeTimingCmd = &cobra.Command{
	Use:   "timing <route-id>",
	Short: "Recompute and store stop arrival times",
	Args:  cobra.ExactArgs(1),
	RunE: routeOp(func(ctx context.Context, p *planner.Planner, id int64) (any, error) {
		return p.ComputeAndPersistTiming(ctx, id)
	}),
}

var routeCloneCmd = &cobra.Command{
	Use:   "clone <route-id> <YYYY-MM-DD> <name>",
	Short: "Copy a route and its stops to another date",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("route-id", args[0])
		if err != nil {
			return err
		}
		date, err := parseDate(args[1])
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			r, err := p.CloneRoute(ctx, id, date, args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		})
	},
}

func init() {
	routeCreateCmd.Flags().StringVarP(&routeDesc, "description", "d", "", "route description")
	routeListCmd.Flags().StringVar(&routeDate, "date", "", "only routes on this date (YYYY-MM-DD)")
	routeListCmd.Flags().StringVar(&routeSchool, "school", "", "only routes serving this school")
	routeListCmd.Flags().StringVar(&routeActive, "active", "", "only active (true) or draft (false) routes")

	routeCmd.AddCommand(routeCreateCmd, routeListCmd, routeShowCmd, routeValidateCmd,
		routeActivateCmd, routeDeactivateCmd, routeTimingCmd, routeCloneCmd)
	rootCmd.AddCommand(routeCmd)
}

// routeOp adapts a single route id operation to a cobra RunE.
func routeOp(fn func(ctx context.Context, p *planner.Planner, id int64) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID("route-id", args[0])
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			v, err := fn(ctx, p, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		})
	}
}

func routeFilter() (store.RouteFilter, error) {
	var f store.RouteFilter
	if routeDate != "" {
		d, err := parseDate(routeDate)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	if routeActive != "" {
		b, err := strconv.ParseBool(routeActive)
		if err != nil {
			return f, outcome.Invalid("active must be true or false")
		}
		f.Active = &b
	}
	f.School = routeSchool
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, outcome.Invalid("date %q is not YYYY-MM-DD", s)
	}
	return d, nil
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, outcome.Invalid("%s must be an integer", name)
	}
	return id, nil
}

func parseIDs(name string, args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(name, a)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
