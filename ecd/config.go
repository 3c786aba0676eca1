// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	// MaxRefreshRetries is the number of correction pulses a refresh pass
	// applies to a drifting segment before it gives up on it.
	MaxRefreshRetries = 5
	// RefreshSettleTime is the pause between a refresh pulse and the
	// measurement that verifies it.
	RefreshSettleTime = 500 * time.Millisecond
	// CounterElectrodeSettleTime is the pause after the counter electrode
	// output changes.
	CounterElectrodeSettleTime = 50 * time.Millisecond

	// DefaultSupplyVoltage is the analog rail of the reference driver board.
	DefaultSupplyVoltage = 3300 * physic.MilliVolt
	// DefaultResolution is the ADC and DAC resolution in bits.
	DefaultResolution = 12
)

// Config is the set of driving parameters of a display. The values depend on
// the ink chemistry and the segment area; DefaultConfig suits small
// Ynvisible segment displays.
type Config struct {
	// ColoringVoltage is the potential between a coloring segment and the
	// counter electrode.
	ColoringVoltage physic.ElectricPotential
	// BleachingVoltage is the counter electrode output while segments
	// bleach. Bleaching segments are driven low.
	BleachingVoltage physic.ElectricPotential
	ColoringTime     time.Duration
	BleachingTime    time.Duration

	// Refresh pulses are weaker and shorter than a full transition.
	RefreshColoringVoltage  physic.ElectricPotential
	RefreshBleachingVoltage physic.ElectricPotential
	RefreshColorPulseTime   time.Duration
	RefreshBleachPulseTime  time.Duration

	// The limit voltages are offsets used to derive the refresh thresholds.
	// See Limits.
	RefreshColorLimitHighVoltage  physic.ElectricPotential
	RefreshColorLimitLowVoltage   physic.ElectricPotential
	RefreshBleachLimitHighVoltage physic.ElectricPotential
	RefreshBleachLimitLowVoltage  physic.ElectricPotential
}

// DefaultConfig is a configuration suitable for most segment displays on a
// 3.3V board.
var DefaultConfig = Config{
	ColoringVoltage:  1500 * physic.MilliVolt,
	BleachingVoltage: 1200 * physic.MilliVolt,
	ColoringTime:     1500 * time.Millisecond,
	BleachingTime:    1500 * time.Millisecond,

	RefreshColoringVoltage:  1200 * physic.MilliVolt,
	RefreshBleachingVoltage: 1000 * physic.MilliVolt,
	RefreshColorPulseTime:   200 * time.Millisecond,
	RefreshBleachPulseTime:  200 * time.Millisecond,

	RefreshColorLimitHighVoltage:  300 * physic.MilliVolt,
	RefreshColorLimitLowVoltage:   200 * physic.MilliVolt,
	RefreshBleachLimitHighVoltage: 200 * physic.MilliVolt,
	RefreshBleachLimitLowVoltage:  300 * physic.MilliVolt,
}

// Validate checks the configuration against the supply voltage it will be
// used with.
func (c *Config) Validate(supply physic.ElectricPotential) error {
	if supply <= 0 {
		return fmt.Errorf("%w: supply voltage %s", ErrInvalidConfig, supply)
	}
	drive := []struct {
		name string
		v    physic.ElectricPotential
	}{
		{"coloring voltage", c.ColoringVoltage},
		{"bleaching voltage", c.BleachingVoltage},
		{"refresh coloring voltage", c.RefreshColoringVoltage},
		{"refresh bleaching voltage", c.RefreshBleachingVoltage},
	}
	for _, p := range drive {
		if p.v <= 0 || p.v > supply {
			return fmt.Errorf("%w: %s %s outside (0, %s]", ErrInvalidConfig, p.name, p.v, supply)
		}
	}
	offsets := []struct {
		name string
		v    physic.ElectricPotential
	}{
		{"color limit high", c.RefreshColorLimitHighVoltage},
		{"color limit low", c.RefreshColorLimitLowVoltage},
		{"bleach limit high", c.RefreshBleachLimitHighVoltage},
		{"bleach limit low", c.RefreshBleachLimitLowVoltage},
	}
	for _, p := range offsets {
		if p.v < 0 || p.v >= supply {
			return fmt.Errorf("%w: %s %s outside [0, %s)", ErrInvalidConfig, p.name, p.v, supply)
		}
	}
	times := []struct {
		name string
		d    time.Duration
	}{
		{"coloring time", c.ColoringTime},
		{"bleaching time", c.BleachingTime},
		{"refresh color pulse", c.RefreshColorPulseTime},
		{"refresh bleach pulse", c.RefreshBleachPulseTime},
	}
	for _, p := range times {
		if p.d < 0 {
			return fmt.Errorf("%w: negative %s %s", ErrInvalidConfig, p.name, p.d)
		}
	}
	return nil
}

// Limits are the refresh thresholds in the sample domain (LSB).
//
// ColorLow and BleachHigh classify segments during the refresh check, when
// the counter electrode sits at mid-rail: a colored segment reading below
// ColorLow, or a bleached one reading above BleachHigh, has drifted.
// ColorHigh and BleachLow verify a refresh pulse, read while the counter
// electrode still holds the refresh voltage.
type Limits struct {
	ColorHigh  int32
	ColorLow   int32
	BleachHigh int32
	BleachLow  int32
}

func (l Limits) String() string {
	return fmt.Sprintf("color [%d, %d] bleach [%d, %d] LSB", l.ColorLow, l.ColorHigh, l.BleachLow, l.BleachHigh)
}

// computeLimits derives the thresholds from the configuration. All four
// depend on the supply voltage because the ADC measures a fraction of it.
func computeLimits(c *Config, supply physic.ElectricPotential, maxLSB int32) Limits {
	mid := supply / 2
	return Limits{
		ColorHigh:  potentialToLSB(supply-c.RefreshColoringVoltage+c.RefreshColorLimitHighVoltage, supply, maxLSB),
		ColorLow:   potentialToLSB(mid+c.RefreshColorLimitLowVoltage, supply, maxLSB),
		BleachHigh: potentialToLSB(mid-c.RefreshBleachLimitHighVoltage, supply, maxLSB),
		BleachLow:  potentialToLSB(c.RefreshBleachingVoltage-c.RefreshBleachLimitLowVoltage, supply, maxLSB),
	}
}

// potentialToLSB converts v to a sample count. The result is truncated and
// not clamped; a threshold may fall outside the ADC range.
func potentialToLSB(v, supply physic.ElectricPotential, maxLSB int32) int32 {
	return int32(float64(v) * float64(maxLSB) / float64(supply))
}
