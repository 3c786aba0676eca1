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

// RefreshDisplay measures every segment and pulses those that drifted away
// from their state. Call it periodically, for example after waking up from
// sleep. It returns quickly when no segment drifted.
//
// Each drifted segment gets up to MaxRefreshRetries pulses. Segments still
// out of range afterwards are listed in Report.Stale; they are not an error.
func (d *Dev) RefreshDisplay(ctx context.Context) (Report, error) {
	ctx, done := d.start(ctx)
	defer done()
	return d.refresh(ctx)
}

func (d *Dev) refresh(ctx context.Context) (Report, error) {
	r := Report{Outcome: Aborted}
	if d.checkpoint(ctx, PhaseRefreshCheck) == Aborted {
		return r, nil
	}
	if o, err := d.enableCounterElectrode(ctx, PhaseRefreshCheck, d.supply/2); err != nil || o == Aborted {
		return r, err
	}
	if err := d.disableAllSegments(); err != nil {
		return r, err
	}
	d.emit(Event{Kind: EventLimits, Phase: PhaseRefreshCheck, Segment: -1, Voltage: d.supply, Limits: d.limits})

	var bleach, color bool
	for i := range d.segments {
		if d.checkpoint(ctx, PhaseRefreshCheck) == Aborted {
			return r, nil
		}
		seg := &d.segments[i]
		seg.refreshNeeded = false
		v, err := d.sampleSegment(i, PhaseRefreshCheck)
		if err != nil {
			return r, err
		}
		switch {
		case seg.current == Colored && v < d.limits.ColorLow:
			color = true
		case seg.current == Bleached && v > d.limits.BleachHigh:
			bleach = true
		default:
			continue
		}
		seg.refreshNeeded = true
		d.emit(Event{Kind: EventRefreshFlagged, Phase: PhaseRefreshCheck, Segment: i, Pin: seg.pin.IO.Name(), State: seg.current, Sample: v})
	}
	if d.checkpoint(ctx, PhaseRefreshCheck) == Aborted {
		return r, nil
	}
	if !bleach && !color {
		d.emit(Event{Kind: EventPhaseEnd, Phase: PhaseRefreshCheck, Segment: -1})
		r.Outcome = Completed
		return r, d.disableCounterElectrode()
	}
	r.RefreshNeeded = true

	passes := []refreshPass{
		{
			phase:     PhaseRefreshBleach,
			state:     Bleached,
			ce:        d.cfg.RefreshBleachingVoltage,
			pulse:     d.cfg.RefreshBleachPulseTime,
			recovered: func(v int32) bool { return v <= d.limits.BleachLow },
			pulses:    &r.BleachPulses,
		},
		{
			phase:     PhaseRefreshColor,
			state:     Colored,
			ce:        d.supply - d.cfg.RefreshColoringVoltage,
			pulse:     d.cfg.RefreshColorPulseTime,
			recovered: func(v int32) bool { return v >= d.limits.ColorHigh },
			pulses:    &r.ColorPulses,
		},
	}
	for _, p := range passes {
		o, err := d.correct(ctx, &r, &p)
		if err != nil || o == Aborted {
			return r, err
		}
	}
	r.Outcome = Completed
	return r, d.disableCounterElectrode()
}

// refreshPass describes one correction loop of the refresh.
type refreshPass struct {
	phase Phase
	state State
	// ce is the counter electrode output during the whole pass.
	ce    physic.ElectricPotential
	pulse time.Duration
	// recovered tells whether a measurement taken after a pulse is back in
	// range.
	recovered func(v int32) bool
	pulses    *int
}

// correct pulses the flagged segments in state p.state until they all
// recover or MaxRefreshRetries pulses were applied.
func (d *Dev) correct(ctx context.Context, r *Report, p *refreshPass) (Outcome, error) {
	var pending []int
	for i, seg := range d.segments {
		if seg.refreshNeeded && seg.current == p.state {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return Completed, nil
	}
	if o, err := d.enableCounterElectrode(ctx, p.phase, p.ce); err != nil || o == Aborted {
		return Aborted, err
	}
	for retries := 0; len(pending) > 0; {
		if d.checkpoint(ctx, p.phase) == Aborted {
			return Aborted, nil
		}
		if retries == MaxRefreshRetries {
			for _, i := range pending {
				r.Stale = append(r.Stale, i)
				d.emit(Event{Kind: EventGiveUp, Phase: p.phase, Segment: i, Pin: d.segments[i].pin.IO.Name(), Sample: d.segments[i].sample, Retry: retries})
			}
			break
		}
		for n, i := range pending {
			if d.checkpoint(ctx, p.phase) == Aborted {
				return Aborted, d.release(n > 0)
			}
			if err := d.driveSegment(i, p.state.level()); err != nil {
				return Aborted, errors.Join(err, d.release(true))
			}
			d.emit(Event{Kind: EventTransition, Phase: p.phase, Segment: i, Pin: d.segments[i].pin.IO.Name(), State: p.state})
		}
		*p.pulses++
		if d.hold(ctx, p.phase, p.pulse) == Aborted {
			return Aborted, d.release(true)
		}
		if err := d.disableAllSegments(); err != nil {
			return Aborted, err
		}
		if d.hold(ctx, p.phase, RefreshSettleTime) == Aborted {
			return Aborted, nil
		}
		still := pending[:0]
		for _, i := range pending {
			if d.checkpoint(ctx, p.phase) == Aborted {
				return Aborted, nil
			}
			v, err := d.sampleSegment(i, p.phase)
			if err != nil {
				return Aborted, err
			}
			if p.recovered(v) {
				d.segments[i].refreshNeeded = false
				continue
			}
			d.emit(Event{Kind: EventRefreshFlagged, Phase: p.phase, Segment: i, Pin: d.segments[i].pin.IO.Name(), State: p.state, Sample: v})
			still = append(still, i)
		}
		pending = still
		retries++
		d.emit(Event{Kind: EventRetry, Phase: p.phase, Segment: -1, Retry: retries})
	}
	d.emit(Event{Kind: EventPhaseEnd, Phase: p.phase, Segment: -1})
	return Completed, nil
}
