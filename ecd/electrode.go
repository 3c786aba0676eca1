// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// enableCounterElectrode sets the counter electrode output to v and waits
// for it to settle.
func (d *Dev) enableCounterElectrode(ctx context.Context, p Phase, v physic.ElectricPotential) (Outcome, error) {
	raw := potentialToLSB(v, d.supply, d.maxLSB)
	if raw < 0 {
		raw = 0
	} else if raw > d.maxLSB {
		raw = d.maxLSB
	}
	if err := d.ce.Out(raw); err != nil {
		return Aborted, fmt.Errorf("ecd: counter electrode: %w", err)
	}
	if err := d.sleep(ctx, CounterElectrodeSettleTime); err != nil {
		d.emit(Event{Kind: EventAbort, Phase: p, Segment: -1})
		return Aborted, nil
	}
	d.emit(Event{Kind: EventPhaseStart, Phase: p, Segment: -1, Voltage: v})
	return Completed, nil
}

// disableCounterElectrode sets the counter electrode output to zero.
func (d *Dev) disableCounterElectrode() error {
	if err := d.ce.Out(0); err != nil {
		return fmt.Errorf("ecd: counter electrode: %w", err)
	}
	return nil
}

// disableAllSegments puts every segment electrode in high impedance. This
// stops driving; it does not bleach.
func (d *Dev) disableAllSegments() error {
	var errs []error
	for i := range d.segments {
		if err := d.floatSegment(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dev) floatSegment(i int) error {
	if err := d.segments[i].pin.IO.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("ecd: segment %d: %w", i, err)
	}
	return nil
}

func (d *Dev) driveSegment(i int, l gpio.Level) error {
	if err := d.segments[i].pin.IO.Out(l); err != nil {
		return fmt.Errorf("ecd: segment %d: %w", i, err)
	}
	return nil
}

// sampleSegment floats segment i and measures its potential.
func (d *Dev) sampleSegment(i int, p Phase) (int32, error) {
	if err := d.floatSegment(i); err != nil {
		return 0, err
	}
	s, err := d.segments[i].pin.Sense.Read()
	if err != nil {
		return 0, fmt.Errorf("ecd: segment %d: %w", i, err)
	}
	d.segments[i].sample = s.Raw
	d.emit(Event{Kind: EventSample, Phase: p, Segment: i, Pin: d.segments[i].pin.IO.Name(), Sample: s.Raw})
	return s.Raw, nil
}
