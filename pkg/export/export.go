// Package export writes route schedules as JSON, CSV or YAML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/busroute/core/model"
	"github.com/kilianp07/busroute/core/sequencer"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, csv, yaml or yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Row is one stop of an exported schedule.
type Row struct {
	RouteID      int64  `json:"route_id" yaml:"route_id"`
	Route        string `json:"route" yaml:"route"`
	Date         string `json:"date" yaml:"date"`
	StopOrder    int    `json:"stop_order" yaml:"stop_order"`
	StopID       int64  `json:"stop_id" yaml:"stop_id"`
	Stop         string `json:"stop" yaml:"stop"`
	Address      string `json:"address,omitempty" yaml:"address,omitempty"`
	Arrival      string `json:"arrival" yaml:"arrival"`
	Departure    string `json:"departure" yaml:"departure"`
	DwellMinutes int    `json:"dwell_minutes" yaml:"dwell_minutes"`
}

var header = []string{"route_id", "route", "date", "stop_order", "stop_id", "stop", "address", "arrival", "departure", "dwell_minutes"}

func clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

// Rows flattens the stops of r in stop order.
func Rows(r model.Route, stops []model.RouteStop) []Row {
	sorted := make([]model.RouteStop, len(stops))
	copy(sorted, stops)
	sequencer.SortByOrder(sorted)
	rows := make([]Row, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, Row{
			RouteID:      r.ID,
			Route:        r.Name,
			Date:         r.Date.Format(time.DateOnly),
			StopOrder:    s.StopOrder,
			StopID:       s.ID,
			Stop:         s.Name,
			Address:      s.Address,
			Arrival:      clock(s.EstimatedArrival),
			Departure:    clock(s.EstimatedDeparture),
			DwellMinutes: int(s.Dwell() / time.Minute),
		})
	}
	return rows
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rows)
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatYAML:
		return WriteYAML(w, rows)
	default:
		return fmt.Errorf("unsupported export format: %s", f)
	}
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteYAML writes rows as a YAML sequence.
func WriteYAML(w io.Writer, rows []Row) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.RouteID, 10),
			r.Route,
			r.Date,
			strconv.Itoa(r.StopOrder),
			strconv.FormatInt(r.StopID, 10),
			r.Stop,
			r.Address,
			r.Arrival,
			r.Departure,
			strconv.Itoa(r.DwellMinutes),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
