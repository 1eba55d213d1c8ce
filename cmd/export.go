package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/busroute/core/planner"
	"github.com/kilianp07/busroute/pkg/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <route-id>...",
	Short: "Write the stop schedule of routes as JSON, CSV or YAML",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "json, csv or yaml")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (stdout when empty)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	ids, err := parseIDs("route-id", args)
	if err != nil {
		return err
	}
	return withPlanner(cmd, func(ctx context.Context, p *planner.Planner) error {
		var rows []export.Row
		for _, id := range ids {
			r, err := p.GetRoute(ctx, id)
			if err != nil {
				return err
			}
			stops, err := p.ListStops(ctx, id)
			if err != nil {
				return err
			}
			rows = append(rows, export.Rows(r, stops)...)
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer func() {
				if err := f.Close(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "close output: %v\n", err)
				}
			}()
			w = f
		}
		return export.Write(w, format, rows)
	})
}
