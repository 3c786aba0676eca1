// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecdsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// step is the integration step while a segment is driven.
const step = 10 * time.Millisecond

// Opts holds the panel model parameters. Zero fields take the defaults.
type Opts struct {
	// SupplyVoltage is the full scale of the ADC and DAC. Default
	// ecd.DefaultSupplyVoltage.
	SupplyVoltage physic.ElectricPotential
	// Resolution is the ADC and DAC width in bits. Default
	// ecd.DefaultResolution. The driver may change it.
	Resolution int
	// CellVoltage is the open circuit potential of a fully colored cell
	// above the counter electrode. A fully bleached cell sits as far below.
	// Default 500mV.
	CellVoltage physic.ElectricPotential
	// DriveRate is the coloration change per volt per second while a
	// segment is driven. Default 0.5.
	DriveRate float64
	// DriftTime is the time constant of the relaxation toward a neutral
	// tint of a floating cell. Default 12h.
	DriftTime time.Duration
	// FirstPin is the pin number of segment 0. Default 2.
	FirstPin int
}

// Panel is a simulated display. It is safe for concurrent use.
type Panel struct {
	mu      sync.Mutex
	opts    Opts
	maxLSB  int32
	cells   []cell
	ce      int32
	elapsed time.Duration
	io      []*segmentIO
	adc     []*segmentADC
	dac     *counterElectrode
}

type cell struct {
	// q is the coloration, 0 bleached, 1 colored.
	q      float64
	driven bool
	level  gpio.Level
	pulses int
	stuck  bool
}

// New returns a panel of n neutral segments.
func New(n int, opts *Opts) (*Panel, error) {
	if n <= 0 {
		return nil, errors.New("ecdsim: at least one segment is required")
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.SupplyVoltage == 0 {
		o.SupplyVoltage = ecd.DefaultSupplyVoltage
	}
	if o.Resolution == 0 {
		o.Resolution = ecd.DefaultResolution
	}
	if o.CellVoltage == 0 {
		o.CellVoltage = 500 * physic.MilliVolt
	}
	if o.DriveRate == 0 {
		o.DriveRate = 0.5
	}
	if o.DriftTime == 0 {
		o.DriftTime = 12 * time.Hour
	}
	if o.FirstPin == 0 {
		o.FirstPin = 2
	}
	if o.SupplyVoltage < 0 || o.Resolution < 1 || o.Resolution > 16 || o.DriveRate < 0 || o.DriftTime < 0 {
		return nil, fmt.Errorf("ecdsim: invalid options %+v", o)
	}
	p := &Panel{
		opts:   o,
		maxLSB: 1<<o.Resolution - 1,
		cells:  make([]cell, n),
	}
	for i := range p.cells {
		p.cells[i].q = 0.5
		num := o.FirstPin + i
		p.io = append(p.io, &segmentIO{p: p, i: i, num: num})
		p.adc = append(p.adc, &segmentADC{p: p, i: i, num: num})
	}
	p.dac = &counterElectrode{p: p}
	return p, nil
}

func (p *Panel) String() string {
	return fmt.Sprintf("ecdsim.Panel{%d segments}", len(p.cells))
}

// Len returns the number of segments.
func (p *Panel) Len() int {
	return len(p.cells)
}

// Segment returns the pins of segment i.
func (p *Panel) Segment(i int) ecd.SegmentPin {
	return ecd.SegmentPin{IO: p.io[i], Sense: p.adc[i]}
}

// Segments returns the pins of every segment, ready for ecd.New.
func (p *Panel) Segments() []ecd.SegmentPin {
	out := make([]ecd.SegmentPin, len(p.cells))
	for i := range out {
		out[i] = p.Segment(i)
	}
	return out
}

// CounterElectrode returns the counter electrode DAC.
func (p *Panel) CounterElectrode() analog.PinDAC {
	return p.dac
}

// CounterElectrodeVoltage returns the counter electrode output.
func (p *Panel) CounterElectrodeVoltage() physic.ElectricPotential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ceVoltage()
}

// Coloration returns the coloration of segment i, from 0 (bleached) to 1
// (colored).
func (p *Panel) Coloration(i int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cells[i].q
}

// SetColoration forces the coloration of segment i.
func (p *Panel) SetColoration(i int, q float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cells[i].q = clamp(q, 0, 1)
}

// SetStuck makes segment i ignore the drive voltage, like a damaged cell.
func (p *Panel) SetStuck(i int, stuck bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cells[i].stuck = stuck
}

// Pulses returns how many times segment i was driven.
func (p *Panel) Pulses(i int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cells[i].pulses
}

// Elapsed returns the virtual time since the panel was created.
func (p *Panel) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed
}

// Sleep advances the virtual time by d. It has the signature of
// ecd.Opts.Sleep.
func (p *Panel) Sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dt := min(d, step)
		p.Advance(dt)
		d -= dt
	}
	return ctx.Err()
}

// Advance lets d of virtual time pass: driven segments change color and
// floating ones drift.
func (p *Panel) Advance(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for d > 0 {
		dt := d
		if p.anyDriven() {
			dt = min(d, step)
		}
		p.integrate(dt)
		p.elapsed += dt
		d -= dt
	}
}

func (p *Panel) anyDriven() bool {
	for _, c := range p.cells {
		if c.driven {
			return true
		}
	}
	return false
}

func (p *Panel) integrate(dt time.Duration) {
	vce := p.ceVoltage()
	decay := math.Exp(-float64(dt) / float64(p.opts.DriftTime))
	for i := range p.cells {
		c := &p.cells[i]
		if !c.driven {
			c.q = 0.5 + (c.q-0.5)*decay
			continue
		}
		if c.stuck {
			continue
		}
		diff := float64(p.levelVoltage(c.level)-vce) / float64(physic.Volt)
		c.q = clamp(c.q+p.opts.DriveRate*diff*dt.Seconds(), 0, 1)
	}
}

func (p *Panel) ceVoltage() physic.ElectricPotential {
	return physic.ElectricPotential(float64(p.ce) * float64(p.opts.SupplyVoltage) / float64(p.maxLSB))
}

func (p *Panel) levelVoltage(l gpio.Level) physic.ElectricPotential {
	if l {
		return p.opts.SupplyVoltage
	}
	return 0
}

// potential returns what the ADC sees on segment i.
func (p *Panel) potential(i int) physic.ElectricPotential {
	c := &p.cells[i]
	if c.driven {
		return p.levelVoltage(c.level)
	}
	v := p.ceVoltage() + physic.ElectricPotential((2*c.q-1)*float64(p.opts.CellVoltage))
	return physic.ElectricPotential(clamp(float64(v), 0, float64(p.opts.SupplyVoltage)))
}

func (p *Panel) setResolution(bits int) error {
	if bits < 1 || bits > 16 {
		return fmt.Errorf("ecdsim: unsupported resolution %d", bits)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m := int32(1<<bits - 1)
	p.ce = int32(int64(p.ce) * int64(m) / int64(p.maxLSB))
	p.maxLSB = m
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
