// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"github.com/GermanBionicSystems/ecd/ecd/ecdsim"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// scenario is a sequence of driver calls against a simulated panel: begin,
// color some segments, then let the panel drift and refresh it a few times.
type scenario struct {
	segments int
	color    []int
	stuck    []int
	drift    time.Duration
	cycles   int
	frame    time.Duration
}

func (sc *scenario) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&sc.segments, "segments", 7, "number of segments")
	f.IntSliceVar(&sc.color, "color", []int{1, 2}, "segments to color")
	f.IntSliceVar(&sc.stuck, "stuck", nil, "segments that ignore the drive voltage")
	f.DurationVar(&sc.drift, "drift", 6*time.Hour, "simulated time between refreshes")
	f.IntVar(&sc.cycles, "cycles", 4, "number of refreshes")
}

// run plays the scenario. frame is called after every step. An interrupt
// sets the stop flag of the driver, which aborts the call in progress.
func (sc *scenario) run(ctx context.Context, s *settings, log *logrus.Logger, frame func(*ecdsim.Panel) error) (*ecdsim.Panel, error) {
	p, err := ecdsim.New(sc.segments, &ecdsim.Opts{SupplyVoltage: s.supply, Resolution: s.resolution})
	if err != nil {
		return nil, err
	}
	for _, i := range sc.stuck {
		if i < 0 || i >= sc.segments {
			return nil, fmt.Errorf("stuck segment %d out of range", i)
		}
		p.SetStuck(i, true)
	}
	d, err := ecd.New(p.Segments(), p.CounterElectrode(), &ecd.Opts{
		Config:        s.cfg,
		SupplyVoltage: s.supply,
		Resolution:    s.resolution,
		Sleep:         p.Sleep,
		Events:        ecd.NewLogrusSink(log),
	})
	if err != nil {
		return nil, err
	}
	defer d.Halt()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer stopOnInterrupt(d, log, cancel)()

	show := func(r ecd.Report, msg string) (bool, error) {
		log.WithFields(logrus.Fields{
			"outcome":       r.Outcome,
			"transitioned":  r.Transitioned,
			"refresh":       r.RefreshNeeded,
			"bleach_pulses": r.BleachPulses,
			"color_pulses":  r.ColorPulses,
			"stale":         r.Stale,
			"elapsed":       p.Elapsed(),
		}).Info(msg)
		if err := frame(p); err != nil {
			return false, err
		}
		return r.Outcome == ecd.Completed, nil
	}

	r, err := d.Begin(ctx)
	if err != nil {
		return p, err
	}
	if ok, err := show(r, "ecd: display initialized"); !ok || err != nil {
		return p, err
	}
	for _, i := range sc.color {
		if err := d.SetSegmentState(i, ecd.Colored); err != nil {
			return p, err
		}
	}
	if r, err = d.ExecuteDisplay(ctx); err != nil {
		return p, err
	}
	if ok, err := show(r, "ecd: display updated"); !ok || err != nil {
		return p, err
	}
	for c := 0; c < sc.cycles; c++ {
		p.Advance(sc.drift)
		if err := frame(p); err != nil {
			return p, err
		}
		if r, err = d.RefreshDisplay(ctx); err != nil {
			return p, err
		}
		if ok, err := show(r, "ecd: display refreshed"); !ok || err != nil {
			return p, err
		}
	}
	return p, nil
}

func newSimulateCmd(r *root) *cobra.Command {
	sc := &scenario{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a simulated panel and print it.",
		Long: "simulate begins a simulated display, colors the requested " +
			"segments, then lets the panel drift and refreshes it. Every step " +
			"is printed as a row of colored blocks, or as '#' and '.' when the " +
			"output is not a terminal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newConsole(cmd.OutOrStdout(), sc.segments)
			defer c.Halt()
			_, err := sc.run(cmd.Context(), r.settings, r.log, func(p *ecdsim.Panel) error {
				if err := c.Render(p); err != nil {
					return err
				}
				if sc.frame > 0 {
					time.Sleep(sc.frame)
				}
				return nil
			})
			return err
		},
	}
	sc.addFlags(cmd)
	cmd.Flags().DurationVar(&sc.frame, "frame", 300*time.Millisecond, "real time pause after each step")
	return cmd
}

// stopOnInterrupt sets the stop flag of d and calls cancel on every interrupt
// until the returned function is called.
func stopOnInterrupt(d *ecd.Dev, log logrus.FieldLogger, cancel context.CancelFunc) func() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		for range sig {
			log.Warn("ecd: interrupted, stopping the display")
			d.SetStopDrivingFlag()
			cancel()
		}
	}()
	return func() {
		signal.Stop(sig)
		close(sig)
	}
}

// newConsole prints escape sequences only to a terminal.
func newConsole(w io.Writer, n int) *ecdsim.Console {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return ecdsim.NewConsole(n, &ecdsim.ConsoleOpts{W: colorable.NewColorable(f)})
	}
	return ecdsim.NewConsole(n, &ecdsim.ConsoleOpts{W: w, Plain: true})
}
