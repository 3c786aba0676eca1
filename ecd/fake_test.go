// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

// fakeHAL records every operation done on the display pins, in order.
type fakeHAL struct {
	ops []string
	// sample returns the measurement of segment i.
	sample func(i int) int32
	// driven holds the last level each segment was driven to.
	driven map[int]gpio.Level
	outErr error
	// onSleep is called before a sleep is recorded.
	onSleep func(d time.Duration)
}

func (h *fakeHAL) record(format string, a ...any) {
	h.ops = append(h.ops, fmt.Sprintf(format, a...))
}

// filter returns the operations starting with prefix.
func (h *fakeHAL) filter(prefix string) []string {
	var out []string
	for _, op := range h.ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

func (h *fakeHAL) reset() {
	h.ops = nil
}

func (h *fakeHAL) sleep(ctx context.Context, d time.Duration) error {
	if h.onSleep != nil {
		h.onSleep(d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h.record("sleep %s", d)
	return nil
}

type segPin struct {
	*gpiotest.Pin
	h *fakeHAL
	i int
}

func (p *segPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.h.record("float %s", p.N)
	return p.Pin.In(pull, edge)
}

func (p *segPin) Out(l gpio.Level) error {
	if p.h.outErr != nil {
		return p.h.outErr
	}
	p.h.record("out %s %s", p.N, l)
	p.h.driven[p.i] = l
	return p.Pin.Out(l)
}

type sensePin struct {
	h    *fakeHAL
	i    int
	name string
}

func (p *sensePin) String() string   { return p.name }
func (p *sensePin) Halt() error      { return nil }
func (p *sensePin) Name() string     { return p.name }
func (p *sensePin) Number() int      { return p.i }
func (p *sensePin) Function() string { return "ADC" }

func (p *sensePin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: DefaultSupplyVoltage, Raw: 4095}
}

func (p *sensePin) Read() (analog.Sample, error) {
	v := p.h.sample(p.i)
	p.h.record("read %s %d", p.name, v)
	return analog.Sample{Raw: v}, nil
}

type dacPin struct {
	h    *fakeHAL
	bits int
}

func (p *dacPin) String() string   { return "CE" }
func (p *dacPin) Halt() error      { return nil }
func (p *dacPin) Name() string     { return "CE" }
func (p *dacPin) Number() int      { return -1 }
func (p *dacPin) Function() string { return "DAC" }

func (p *dacPin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: DefaultSupplyVoltage, Raw: 4095}
}

func (p *dacPin) Out(v int32) error {
	p.h.record("ce %d", v)
	return nil
}

func (p *dacPin) SetResolution(bits int) error {
	p.bits = bits
	return nil
}

// newTestDev returns a Dev on fake pins numbered from nums. Unless the test
// replaces h.sample, segments read back in range for the state they were
// last driven to.
func newTestDev(t *testing.T, nums []int, opts *Opts) (*Dev, *fakeHAL) {
	t.Helper()
	h := &fakeHAL{driven: map[int]gpio.Level{}}
	pins := make([]SegmentPin, len(nums))
	for i, n := range nums {
		name := fmt.Sprintf("GPIO%d", n)
		pins[i] = SegmentPin{
			IO:    &segPin{Pin: &gpiotest.Pin{N: name, Num: n}, h: h, i: i},
			Sense: &sensePin{h: h, i: i, name: name},
		}
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	o.Sleep = h.sleep
	if o.Events == nil {
		o.Events = Discard
	}
	d, err := New(pins, &dacPin{h: h}, &o)
	if err != nil {
		t.Fatal(err)
	}
	h.sample = func(i int) int32 {
		return inRange(d, h, i)
	}
	h.reset()
	return d, h
}

// inRange returns a measurement that passes every refresh threshold for the
// level segment i was last driven to.
func inRange(d *Dev, h *fakeHAL, i int) int32 {
	l, ok := h.driven[i]
	switch {
	case !ok:
		return d.maxLSB / 2
	case l == gpio.High:
		return d.limits.ColorHigh + 5
	default:
		return d.limits.BleachLow - 5
	}
}

func volts(v float64) physic.ElectricPotential {
	return physic.ElectricPotential(v * float64(physic.Volt))
}
