// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"github.com/GermanBionicSystems/ecd/ecd/mcp4725"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// wiring describes a display on real hardware: one GPIO and one ADC channel
// per segment, and an MCP4725 on the counter electrode.
type wiring struct {
	bus      string
	addr     uint16
	pins     []string
	iio      string
	channels []int
	adcBits  int
}

func (w *wiring) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&w.bus, "i2c", "", "I²C bus of the counter electrode DAC, the first one if empty")
	f.Uint16Var(&w.addr, "addr", uint16(mcp4725.DefaultAddress), "I²C address of the MCP4725")
	f.StringSliceVar(&w.pins, "pins", nil, "GPIO of each segment, e.g. GPIO5,GPIO6")
	f.StringVar(&w.iio, "iio", "/sys/bus/iio/devices/iio:device0", "IIO device sampling the segments")
	f.IntSliceVar(&w.channels, "channels", nil, "ADC channel of each segment, in order by default")
	f.IntVar(&w.adcBits, "adc-bits", 12, "width of the ADC")
}

// open resolves the pins. pin looks up a GPIO by name.
func (w *wiring) open(s *settings, bus i2c.Bus, pin func(string) gpio.PinIO) ([]ecd.SegmentPin, *mcp4725.Dev, error) {
	if len(w.pins) == 0 {
		return nil, nil, fmt.Errorf("no segment pin given, use --pins")
	}
	if len(w.channels) != 0 && len(w.channels) != len(w.pins) {
		return nil, nil, fmt.Errorf("%d ADC channels for %d pins", len(w.channels), len(w.pins))
	}
	segs := make([]ecd.SegmentPin, len(w.pins))
	for i, name := range w.pins {
		p := pin(name)
		if p == nil {
			return nil, nil, fmt.Errorf("unknown pin %q", name)
		}
		ch := i
		if len(w.channels) != 0 {
			ch = w.channels[i]
		}
		a, err := newIIOADC(w.iio, ch, w.adcBits, s.supply)
		if err != nil {
			return nil, nil, err
		}
		segs[i] = ecd.SegmentPin{IO: p, Sense: a}
	}
	dac, err := mcp4725.New(bus, &mcp4725.Opts{Addr: i2c.Addr(w.addr), VRef: s.supply})
	if err != nil {
		return nil, nil, err
	}
	return segs, dac, nil
}

// show sets the segments in color, the others bleached, then refreshes the
// display every period, count times or until interrupted when count is 0.
type show struct {
	color  []int
	period time.Duration
	count  int
}

func (sh *show) run(ctx context.Context, d *ecd.Dev, log logrus.FieldLogger, sleep func(context.Context, time.Duration) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer stopOnInterrupt(d, log, cancel)()
	report := func(r ecd.Report, msg string) bool {
		log.WithFields(logrus.Fields{
			"outcome":       r.Outcome,
			"transitioned":  r.Transitioned,
			"refresh":       r.RefreshNeeded,
			"bleach_pulses": r.BleachPulses,
			"color_pulses":  r.ColorPulses,
			"stale":         r.Stale,
		}).Info(msg)
		return r.Outcome == ecd.Completed
	}
	r, err := d.Begin(ctx)
	if err != nil || !report(r, "ecd: display initialized") {
		return err
	}
	for _, i := range sh.color {
		if err := d.SetSegmentState(i, ecd.Colored); err != nil {
			return err
		}
	}
	if r, err = d.ExecuteDisplay(ctx); err != nil || !report(r, "ecd: display updated") {
		return err
	}
	for c := 0; sh.count == 0 || c < sh.count; c++ {
		if err := sleep(ctx, sh.period); err != nil {
			return nil
		}
		if r, err = d.RefreshDisplay(ctx); err != nil || !report(r, "ecd: display refreshed") {
			return err
		}
	}
	return nil
}

func newDriveCmd(r *root) *cobra.Command {
	w := &wiring{}
	sh := &show{}
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Drive a display wired to the host.",
		Long: "drive initializes the host drivers, colors the requested " +
			"segments of a display wired to GPIO pins, IIO ADC channels and an " +
			"MCP4725 counter electrode, then refreshes it periodically. The " +
			"driver resolution must match the 12 bits of the MCP4725.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := host.Init()
			if err != nil {
				return err
			}
			for _, f := range state.Failed {
				r.log.WithField("driver", f.D).Debug(f.Err)
			}
			bus, err := i2creg.Open(w.bus)
			if err != nil {
				return err
			}
			defer bus.Close()
			segs, dac, err := w.open(r.settings, bus, gpioreg.ByName)
			if err != nil {
				return err
			}
			d, err := ecd.New(segs, dac, &ecd.Opts{
				Config:        r.settings.cfg,
				SupplyVoltage: r.settings.supply,
				Resolution:    r.settings.resolution,
				Events:        ecd.NewLogrusSink(r.log),
			})
			if err != nil {
				return err
			}
			defer d.Halt()
			return sh.run(cmd.Context(), d, r.log, sleepContext)
		},
	}
	w.addFlags(cmd)
	f := cmd.Flags()
	f.IntSliceVar(&sh.color, "color", nil, "segments to color")
	f.DurationVar(&sh.period, "refresh", 10*time.Minute, "time between refreshes")
	f.IntVar(&sh.count, "cycles", 0, "number of refreshes, 0 to run until interrupted")
	return cmd
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
