// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp4725 exposes a Microchip MCP4725 D/A converter as an analog
// output pin, ready to drive the counter electrode of an ecd.Dev.
//
// The MCP4725 uses VCC as its reference, so the output range matches the
// supply voltage given to the display driver.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/devicedoc/22039d.pdf
package mcp4725

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultAddress is the I²C address with A0 tied low.
	DefaultAddress i2c.Addr = 0x60
	// Resolution is the width of the converter in bits.
	Resolution = 12

	maxCount = 1<<Resolution - 1
)

// PDMode is the power down mode of the output.
type PDMode byte

const (
	PDModeNormal PDMode = iota
	// The remaining values tie the output to ground through a resistor.
	PDMode1K
	PDMode100K
	PDMode500K
)

var (
	errInvalidVoltage = errors.New("mcp4725: voltage out of range")
	errResolution     = errors.New("mcp4725: only 12 bits are supported")
)

// Opts holds the configuration options.
type Opts struct {
	Addr i2c.Addr
	// VRef is the supply voltage of the chip. Required.
	VRef physic.ElectricPotential
	// HaltMode is the power down mode Halt applies. The zero value ties the
	// output to ground through 1kΩ.
	HaltMode PDMode
}

// Dev is an MCP4725 used as an analog.PinDAC.
type Dev struct {
	mu   sync.Mutex
	d    i2c.Dev
	vRef physic.ElectricPotential
	halt PDMode
	last analog.Sample
}

// New returns the DAC at opts.Addr on bus.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil || opts.VRef <= 0 {
		return nil, errors.New("mcp4725: reference voltage is required")
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddress
	}
	halt := opts.HaltMode
	if halt == PDModeNormal {
		halt = PDMode1K
	}
	return &Dev{
		d:    i2c.Dev{Bus: bus, Addr: uint16(addr)},
		vRef: opts.VRef,
		halt: halt,
	}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("MCP4725{%s}", &d.d)
}

// Name implements pin.Pin.
func (d *Dev) Name() string {
	return fmt.Sprintf("MCP4725(%#x)", d.d.Addr)
}

// Number implements pin.Pin.
func (d *Dev) Number() int {
	return 0
}

// Function implements pin.Pin.
func (d *Dev) Function() string {
	return "DAC"
}

// Halt implements conn.Resource.
//
// It powers the output down.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fastWrite(0, d.halt); err != nil {
		return err
	}
	d.last = analog.Sample{}
	return nil
}

// Range implements analog.PinDAC.
func (d *Dev) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: d.vRef, Raw: maxCount}
}

// Out implements analog.PinDAC.
//
// v is the 12 bit count.
func (d *Dev) Out(v int32) error {
	if v < 0 || v > maxCount {
		return fmt.Errorf("mcp4725: count %d outside [0, %d]", v, maxCount)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fastWrite(uint16(v), PDModeNormal); err != nil {
		return err
	}
	d.last = analog.Sample{V: d.countToPotential(uint16(v)), Raw: v}
	return nil
}

// OutPotential sets the output to the count nearest to v.
func (d *Dev) OutPotential(v physic.ElectricPotential) error {
	c, err := d.PotentialToCount(v)
	if err != nil {
		return err
	}
	return d.Out(int32(c))
}

// Last returns the last value written.
func (d *Dev) Last() analog.Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// SetResolution implements ecd.Resolutioner. The converter is fixed at 12
// bits.
func (d *Dev) SetResolution(bits int) error {
	if bits != Resolution {
		return errResolution
	}
	return nil
}

// PotentialToCount converts v to a converter count, rounded to the nearest
// step.
func (d *Dev) PotentialToCount(v physic.ElectricPotential) (uint16, error) {
	if v < 0 || v > d.vRef {
		return 0, errInvalidVoltage
	}
	return uint16(float64(v)*maxCount/float64(d.vRef) + 0.5), nil
}

func (d *Dev) countToPotential(c uint16) physic.ElectricPotential {
	return physic.ElectricPotential(float64(d.vRef) * float64(c) / maxCount)
}

// fastWrite sends the fast mode write command: the power down bits then the
// 12 bit count, in two bytes.
func (d *Dev) fastWrite(count uint16, pd PDMode) error {
	w := []byte{byte(pd&3)<<4 | byte(count>>8)&0x0f, byte(count)}
	if err := d.d.Tx(w, nil); err != nil {
		return fmt.Errorf("mcp4725: %w", err)
	}
	return nil
}

var _ analog.PinDAC = &Dev{}
