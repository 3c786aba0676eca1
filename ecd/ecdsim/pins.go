// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecdsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// segmentIO is the digital side of a segment electrode.
type segmentIO struct {
	p   *Panel
	i   int
	num int
}

func (s *segmentIO) String() string {
	return s.Name()
}

func (s *segmentIO) Halt() error {
	return s.In(gpio.Float, gpio.NoEdge)
}

func (s *segmentIO) Name() string {
	return fmt.Sprintf("GPIO%d", s.num)
}

func (s *segmentIO) Number() int {
	return s.num
}

func (s *segmentIO) Function() string {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.cells[s.i].driven {
		return "Out/" + s.p.cells[s.i].level.String()
	}
	return "In/Float"
}

// In floats the electrode. Pulls and edges are not simulated.
func (s *segmentIO) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("ecdsim: edge detection is not supported")
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.cells[s.i].driven = false
	return nil
}

// Read returns the logic level of the electrode potential.
func (s *segmentIO) Read() gpio.Level {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	return s.p.potential(s.i) > s.p.opts.SupplyVoltage/2
}

func (s *segmentIO) WaitForEdge(timeout time.Duration) bool {
	return false
}

func (s *segmentIO) Pull() gpio.Pull {
	return gpio.Float
}

func (s *segmentIO) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Out drives the electrode to the supply or to ground.
func (s *segmentIO) Out(l gpio.Level) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	c := &s.p.cells[s.i]
	if !c.driven || c.level != l {
		c.pulses++
	}
	c.driven = true
	c.level = l
	return nil
}

func (s *segmentIO) PWM(duty gpio.Duty, f physic.Frequency) error {
	return errors.New("ecdsim: PWM is not supported")
}

// segmentADC samples a segment electrode.
type segmentADC struct {
	p   *Panel
	i   int
	num int
}

func (a *segmentADC) String() string {
	return a.Name()
}

func (a *segmentADC) Halt() error {
	return nil
}

func (a *segmentADC) Name() string {
	return fmt.Sprintf("ADC%d", a.num)
}

func (a *segmentADC) Number() int {
	return a.num
}

func (a *segmentADC) Function() string {
	return "ADC"
}

func (a *segmentADC) Range() (analog.Sample, analog.Sample) {
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	return analog.Sample{}, analog.Sample{V: a.p.opts.SupplyVoltage, Raw: a.p.maxLSB}
}

func (a *segmentADC) Read() (analog.Sample, error) {
	a.p.mu.Lock()
	defer a.p.mu.Unlock()
	v := a.p.potential(a.i)
	raw := int32(float64(v) * float64(a.p.maxLSB) / float64(a.p.opts.SupplyVoltage))
	return analog.Sample{V: v, Raw: raw}, nil
}

func (a *segmentADC) SetResolution(bits int) error {
	return a.p.setResolution(bits)
}

// counterElectrode is the DAC output tied to the counter electrode.
type counterElectrode struct {
	p *Panel
}

func (c *counterElectrode) String() string {
	return c.Name()
}

func (c *counterElectrode) Halt() error {
	return c.Out(0)
}

func (c *counterElectrode) Name() string {
	return "DAC0"
}

func (c *counterElectrode) Number() int {
	return 0
}

func (c *counterElectrode) Function() string {
	return "DAC"
}

func (c *counterElectrode) Range() (analog.Sample, analog.Sample) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return analog.Sample{}, analog.Sample{V: c.p.opts.SupplyVoltage, Raw: c.p.maxLSB}
}

// Out sets the output register to v, in LSB of the panel resolution.
func (c *counterElectrode) Out(v int32) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if v < 0 || v > c.p.maxLSB {
		return fmt.Errorf("ecdsim: DAC value %d outside [0, %d]", v, c.p.maxLSB)
	}
	c.p.ce = v
	return nil
}

func (c *counterElectrode) SetResolution(bits int) error {
	return c.p.setResolution(bits)
}

var (
	_ gpio.PinIO       = &segmentIO{}
	_ analog.PinADC    = &segmentADC{}
	_ analog.PinDAC    = &counterElectrode{}
	_ ecd.Resolutioner = &segmentADC{}
	_ ecd.Resolutioner = &counterElectrode{}
)
