// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import "fmt"

// Outcome tells whether a drive call ran to the end.
type Outcome uint8

const (
	// Completed means the call ran every phase.
	Completed Outcome = iota
	// Aborted means the call returned early, because the context was
	// cancelled, the stop flag was set or a pin failed. The display is left
	// mid-transition.
	Aborted
)

func (o Outcome) String() string {
	if o == Aborted {
		return "aborted"
	}
	return "completed"
}

// Report summarizes an ExecuteDisplay or RefreshDisplay call.
type Report struct {
	Outcome Outcome
	// Transitioned lists the segments driven to a new state, in the order
	// they were driven.
	Transitioned []int
	// RefreshNeeded is set when the refresh check found drifted segments.
	RefreshNeeded bool
	// BleachPulses and ColorPulses count the refresh pulses applied. A pulse
	// covers every flagged segment at once.
	BleachPulses int
	ColorPulses  int
	// Stale lists the segments still flagged after MaxRefreshRetries pulses.
	Stale []int
}

// OK reports whether the call completed and left no segment uncorrected.
func (r Report) OK() bool {
	return r.Outcome == Completed && len(r.Stale) == 0
}

func (r Report) String() string {
	return fmt.Sprintf("%s: transitioned %v, bleach pulses %d, color pulses %d, stale %v",
		r.Outcome, r.Transitioned, r.BleachPulses, r.ColorPulses, r.Stale)
}

// merge folds the result of the refresh pass run by ExecuteDisplay.
func (r *Report) merge(o Report) {
	r.Outcome = o.Outcome
	r.RefreshNeeded = o.RefreshNeeded
	r.BleachPulses += o.BleachPulses
	r.ColorPulses += o.ColorPulses
	r.Stale = append(r.Stale, o.Stale...)
}
