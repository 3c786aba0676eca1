// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

func newPinsCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "pins",
		Short: "List the GPIO pins of the host.",
		Long: "pins initializes the host drivers and lists the GPIO pins a " +
			"segment electrode can be wired to.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := host.Init()
			if err != nil {
				return err
			}
			for _, f := range state.Failed {
				r.log.WithField("driver", f.D).Debug(f.Err)
			}
			return listPins(cmd.OutOrStdout(), gpioreg.All())
		},
	}
}

func listPins(w io.Writer, pins []gpio.PinIO) error {
	if len(pins) == 0 {
		_, err := fmt.Fprintln(w, "no GPIO pin found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNUMBER\tFUNCTION")
	for _, p := range pins {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Name(), p.Number(), p.Function())
	}
	return tw.Flush()
}
