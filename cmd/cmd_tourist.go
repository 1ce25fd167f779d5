// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/touristsafety/safemap/api"
	"github.com/touristsafety/safemap/client"
	"github.com/touristsafety/safemap/server"
	"github.com/touristsafety/safemap/tracking"
)

type touristOptions struct {
	Server      string
	Trace       bool
	Group       string
	Status      string
	Battery     int
	SafetyScore int
}

var touristOpts = &touristOptions{}

var touristCmd = &cobra.Command{
	Use:   "tourist",
	Short: "Register and move devices on a running server",
}

func newClient() (*client.Client, error) {
	var opts []client.Option
	if touristOpts.Trace {
		opts = append(opts, client.WithTrace(os.Stderr))
	}

	return client.New(touristOpts.Server, opts...)
}

var touristRegisterCmd = &cobra.Command{
	Use:   "register NAME LAT LNG",
	Short: "Registers a device at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePoint(args[1], args[2])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		req := api.RegisterRequest{
			Name:   args[0],
			Lat:    &p.Lat,
			Lon:    &p.Lng,
			Group:  touristOpts.Group,
			Status: touristOpts.Status,
		}

		if cmd.Flags().Changed("battery") {
			req.Battery = &touristOpts.Battery
		}

		if cmd.Flags().Changed("safety-score") {
			req.SafetyScore = &touristOpts.SafetyScore
		}

		t, created, err := c.Register(cmd.Context(), req)
		if err != nil {
			return err
		}

		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was already registered\n", t.Name)
		}

		return printTourists(cmd.OutOrStdout(), []*tracking.Tourist{t})
	},
}

var touristMoveCmd = &cobra.Command{
	Use:   "move NAME LAT LNG",
	Short: "Reports a new position for a registered device",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePoint(args[1], args[2])
		if err != nil {
			return err
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		var battery *int
		if cmd.Flags().Changed("battery") {
			battery = &touristOpts.Battery
		}

		t, err := c.UpdateLocation(cmd.Context(), args[0], p.Lat, p.Lng, battery)
		if client.IsNotFound(err) {
			return fmt.Errorf("%s is not registered, run 'safemap tourist register' first", args[0])
		}

		if err != nil {
			return err
		}

		return printTourists(cmd.OutOrStdout(), []*tracking.Tourist{t})
	},
}

var touristListCmd = &cobra.Command{
	Use:   "list [QUERY]",
	Short: "Lists registered tourists, optionally filtered by name or group",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		tourists, err := c.Tourists(cmd.Context(), query)
		if err != nil {
			return err
		}

		return printTourists(cmd.OutOrStdout(), tourists)
	},
}

func printTourists(w io.Writer, tourists []*tracking.Tourist) error {
	for _, t := range tourists {
		_, err := fmt.Fprintf(w, "%-20s %-10s %9.5f %9.5f battery=%3d%% score=%3d updated=%s\n",
			t.Name, t.Status, t.Lat, t.Lng, t.Battery, t.SafetyScore, t.UpdatedAt.Local().Format(time.DateTime))
		if err != nil {
			return err
		}
	}

	return nil
}

func init() {
	touristCmd.PersistentFlags().StringVar(
		&touristOpts.Server,
		"server",
		envOr("SAFEMAP_SERVER", "http://"+server.DefaultAddr),
		"server base url (env SAFEMAP_SERVER)",
	)
	touristCmd.PersistentFlags().BoolVar(&touristOpts.Trace, "trace", false, "dump HTTP traffic to stderr")

	touristRegisterCmd.Flags().StringVar(&touristOpts.Group, "group", "", "tour group")
	touristRegisterCmd.Flags().StringVar(&touristOpts.Status, "status", "", "safe, warning, danger or emergency")
	touristRegisterCmd.Flags().IntVar(&touristOpts.Battery, "battery", tracking.DefaultBattery, "battery level in percent")
	touristRegisterCmd.Flags().IntVar(&touristOpts.SafetyScore, "safety-score", tracking.DefaultSafetyScore, "safety score in percent")
	touristMoveCmd.Flags().IntVar(&touristOpts.Battery, "battery", tracking.DefaultBattery, "battery level in percent, kept when omitted")

	touristCmd.AddCommand(touristRegisterCmd, touristMoveCmd, touristListCmd)
	rootCmd.AddCommand(touristCmd)
}
