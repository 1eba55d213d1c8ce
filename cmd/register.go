package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/planner"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Add vehicles, drivers and students",
}

var (
	regSeats   int
	regLicense string
	regGrade   string
)

var registerVehicleCmd = &cobra.Command{
	Use:   "vehicle <number>",
	Short: "Register a bus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			v, err := p.RegisterVehicle(ctx, model.Vehicle{Number: args[0], SeatingCapacity: regSeats})
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		})
	},
}

var registerDriverCmd = &cobra.Command{
	Use:   "driver <name>",
	Short: "Register a driver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			d, err := p.RegisterDriver(ctx, model.Driver{Name: args[0], LicenseClass: regLicense})
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		})
	},
}

var registerStudentCmd = &cobra.Command{
	Use:   "student <name>",
	Short: "Register a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
			s, err := p.RegisterStudent(ctx, model.Student{Name: args[0], Grade: regGrade})
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		})
	},
}

func init() {
	registerVehicleCmd.Flags().IntVar(&regSeats, "seats", 0, "seating capacity")
	registerDriverCmd.Flags().StringVar(&regLicense, "license", "", "license class")
	registerStudentCmd.Flags().StringVar(&regGrade, "grade", "", "school grade")
	registerCmd.AddCommand(registerVehicleCmd, registerDriverCmd, registerStudentCmd)
	rootCmd.AddCommand(registerCmd)
}
