package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/planner"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign vehicles, drivers and students to routes",
}

var assignSlot string

var assignVehicleCmd = &cobra.Command{
	Use:   "vehicle <route-id> <vehicle-id>",
	Short: "Assign a vehicle to the --slot of a route",
	Args:  cobra.ExactArgs(2),
	RunE: slotAssign(func(ctx context.Context, p *planner.Planner, routeID, id int64, slot model.TimeSlot) (model.Route, error) {
		return p.AssignVehicleToRoute(ctx, routeID, id, slot)
	}),
}

var assignDriverCmd = &cobra.Command{
	Use:   "driver <route-id> <driver-id>",
	Short: "Assign a driver to the --slot of a route",
	Args:  cobra.ExactArgs(2),
	RunE: slotAssign(func(ctx context.Context, p *planner.Planner, routeID, id int64, slot model.TimeSlot) (model.Route, error) {
		return p.AssignDriverToRoute(ctx, routeID, id, slot)
	}),
}

var assignStudentCmd = &cobra.Command{
	Use:   "student <route-id> <student-id>",
	Short: "Assign a student to the free AM or PM slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			slot, err := p.AssignStudentToRoute(ctx, ids[1], ids[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"route_id": ids[0], "student_id": ids[1], "slot": slot.String()})
		})
	},
}

var unassignStudentCmd = &cobra.Command{
	Use:   "unassign <route-id> <student-id>",
	Short: "Remove a student from a route",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			if err := p.RemoveStudentFromRoute(ctx, ids[1], ids[0]); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"route_id": ids[0], "student_id": ids[1], "removed": true})
		})
	},
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible <route-id> <student-id>",
	Short: "Report the slot a student would take without assigning",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			slot, err := p.CanAssignStudent(ctx, ids[1], ids[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"route_id": ids[0], "student_id": ids[1], "slot": slot.String()})
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{assignVehicleCmd, assignDriverCmd} {
		c.Flags().StringVar(&assignSlot, "slot", "AM", "AM, PM or Both")
	}
	assignCmd.AddCommand(assignVehicleCmd, assignDriverCmd, assignStudentCmd, unassignStudentCmd, eligibleCmd)
	rootCmd.AddCommand(assignCmd)
}

type slotFunc func(ctx context.Context, p *planner.Planner, routeID, id int64, slot model.TimeSlot) (model.Route, error)

func slotAssign(fn slotFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs("id", args)
		if err != nil {
			return err
		}
		slot, err := model.ParseTimeSlot(assignSlot)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			r, err := fn(ctx, p, ids[0], ids[1], slot)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		})
	}
}
