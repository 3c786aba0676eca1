// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/GermanBionicSystems/ecd/ecd/ecdsim"
	"github.com/spf13/cobra"
)

func newSnapshotCmd(r *root) *cobra.Command {
	sc := &scenario{}
	opts := ecdsim.SnapshotOpts{}
	out := ""
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Drive a simulated panel and save it as a PNG image.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := sc.run(cmd.Context(), r.settings, r.log, func(*ecdsim.Panel) error { return nil })
			if err != nil {
				return err
			}
			if err := ecdsim.SavePNG(out, p, &opts); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return err
		},
	}
	sc.addFlags(cmd)
	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "panel.png", "output file")
	f.IntVar(&opts.Cell, "cell", 48, "segment size in pixels")
	f.IntVar(&opts.Columns, "columns", 8, "segments per row")
	f.BoolVar(&opts.Labels, "labels", true, "print the index and coloration of each segment")
	return cmd
}
