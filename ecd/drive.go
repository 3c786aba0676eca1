// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"context"
	"errors"
	"time"

	"periph.io/x/conn/v3/physic"
)

// ExecuteDisplay drives every segment whose requested state differs from its
// current state, then runs a refresh pass like RefreshDisplay.
//
// Bleaching segments are driven first, with the counter electrode at the
// bleaching voltage and the segments low. Coloring segments follow, with the
// counter electrode at the supply voltage minus the coloring voltage and the
// segments high. A phase without work does not hold.
//
// When the call is aborted the segments already driven keep their new state
// and the others keep their previous one.
func (d *Dev) ExecuteDisplay(ctx context.Context) (Report, error) {
	ctx, done := d.start(ctx)
	defer done()

	r := Report{}
	phases := [...]struct {
		phase Phase
		state State
		ce    physic.ElectricPotential
		t     time.Duration
	}{
		{PhaseBleach, Bleached, d.cfg.BleachingVoltage, d.cfg.BleachingTime},
		{PhaseColor, Colored, d.supply - d.cfg.ColoringVoltage, d.cfg.ColoringTime},
	}
	for _, p := range phases {
		o, err := d.transition(ctx, &r, p.phase, p.state, p.ce, p.t)
		if err != nil || o == Aborted {
			r.Outcome = Aborted
			return r, err
		}
	}
	ref, err := d.refresh(ctx)
	r.merge(ref)
	return r, err
}

// transition runs one phase of ExecuteDisplay.
func (d *Dev) transition(ctx context.Context, r *Report, p Phase, s State, ce physic.ElectricPotential, t time.Duration) (Outcome, error) {
	if d.checkpoint(ctx, p) == Aborted {
		return Aborted, nil
	}
	if o, err := d.enableCounterElectrode(ctx, p, ce); err != nil || o == Aborted {
		return Aborted, err
	}
	driven := false
	for i := range d.segments {
		if d.checkpoint(ctx, p) == Aborted {
			return Aborted, d.release(driven)
		}
		seg := &d.segments[i]
		if seg.next == seg.current || seg.next != s {
			continue
		}
		if err := d.driveSegment(i, s.level()); err != nil {
			return Aborted, errors.Join(err, d.release(true))
		}
		seg.current = seg.next
		driven = true
		r.Transitioned = append(r.Transitioned, i)
		d.emit(Event{Kind: EventTransition, Phase: p, Segment: i, Pin: seg.pin.IO.Name(), State: s})
	}
	if driven && d.hold(ctx, p, t) == Aborted {
		return Aborted, d.release(true)
	}
	if err := d.disableAllSegments(); err != nil {
		return Aborted, err
	}
	if err := d.disableCounterElectrode(); err != nil {
		return Aborted, err
	}
	d.emit(Event{Kind: EventPhaseEnd, Phase: p, Segment: -1})
	return Completed, nil
}

// release floats the segments after an abort, if any was driven. Nothing
// else is undone.
func (d *Dev) release(driven bool) error {
	if !driven {
		return nil
	}
	return d.disableAllSegments()
}
