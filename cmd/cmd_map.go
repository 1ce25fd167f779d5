// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/touristsafety/safemap/cluster"
	"github.com/touristsafety/safemap/mapview"
	"github.com/touristsafety/safemap/spatial"
	"github.com/touristsafety/safemap/tracking"
)

var (
	mapOpts  = &mapOptions{}
	mapJSON  bool
	mapQuery string
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Project and cluster positions without a server",
}

var mapProjectCmd = &cobra.Command{
	Use:   "project LAT LNG",
	Short: "Prints the canvas pixel for a position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		cfg, err := mapOpts.config()
		if err != nil {
			return err
		}

		px := cfg.Projector().Project(p)
		out := cmd.OutOrStdout()

		if mapJSON {
			return json.NewEncoder(out).Encode(map[string]any{
				"point":  p,
				"pixel":  px,
				"inside": cfg.Bounds.Contains(p),
			})
		}

		where := "inside"
		if !cfg.Bounds.Contains(p) {
			where = "outside, clamped to the edge"
		}

		_, err = fmt.Fprintf(out, "%s -> x=%.3f y=%.3f (%s)\n", p, px.X, px.Y, where)

		return err
	},
}

var mapClusterCmd = &cobra.Command{
	Use:   "cluster [FILE]",
	Short: "Clusters the tourists in FILE, or the demo fixture when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mapOpts.config()
		if err != nil {
			return err
		}

		entities := mapview.Demo()

		if len(args) == 1 {
			tourists, err := readTouristsFile(args[0])
			if err != nil {
				return err
			}

			for i, t := range tourists {
				t.ID = strconv.Itoa(i + 1)
			}

			entities = tracking.Entities(tourists)
		}

		markers := mapview.Layout(mapview.Filter(entities, mapQuery), cfg)

		if mapJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(markers)
		}

		return printMarkers(cmd.OutOrStdout(), markers)
	},
}

func parsePoint(lat, lng string) (spatial.Point, error) {
	var p spatial.Point

	var err error

	if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
		return p, fmt.Errorf("invalid latitude %q", lat)
	}

	if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
		return p, fmt.Errorf("invalid longitude %q", lng)
	}

	return p, nil
}

func memberNames(members []cluster.Entity) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}

	return strings.Join(names, ", ")
}

func printMarkers(w io.Writer, markers []mapview.Marker) error {
	a, b, c, d := strings.Repeat("─", 18), strings.Repeat("─", 17), strings.Repeat("─", 9), strings.Repeat("─", 5)

	fmt.Fprintf(w, "╭─%s─┬─%s─┬─%s─┬─%s─╮\n", a, b, c, d)
	fmt.Fprintf(w, "│ %-18s │ %-17s │ %-9s │ %5s │\n", "Key", "Pixel", "Severity", "Count")
	fmt.Fprintf(w, "├─%s─┼─%s─┼─%s─┼─%s─┤\n", a, b, c, d)

	for _, m := range markers {
		px := fmt.Sprintf("(%.1f, %.1f)", m.X, m.Y)
		fmt.Fprintf(w, "│ %-18s │ %-17s │ %-9s │ %5d │\n", m.Key, px, m.Severity, m.Count)
	}

	_, err := fmt.Fprintf(w, "╰─%s─┴─%s─┴─%s─┴─%s─╯\n", a, b, c, d)
	if err != nil {
		return err
	}

	for _, m := range markers {
		if m.IsCluster {
			fmt.Fprintf(w, "%s: %s\n", m.Key, memberNames(m.Members))
		}
	}

	return nil
}

func init() {
	mapOpts.bind(mapCmd.PersistentFlags())
	mapCmd.PersistentFlags().BoolVar(&mapJSON, "json", false, "print JSON instead of a table")
	mapClusterCmd.Flags().StringVarP(&mapQuery, "query", "q", "", "only keep tourists whose name or group matches")

	mapCmd.AddCommand(mapProjectCmd)
	mapCmd.AddCommand(mapClusterCmd)
	rootCmd.AddCommand(mapCmd)
}
