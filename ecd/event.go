// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// Phase identifies the part of the drive algorithm an Event comes from.
type Phase uint8

const (
	// PhaseNone is used by events outside of a drive phase.
	PhaseNone Phase = iota
	// PhaseBleach drives the segments to bleach to ground.
	PhaseBleach
	// PhaseColor drives the segments to color to the supply.
	PhaseColor
	// PhaseRefreshCheck samples every segment with the counter electrode at
	// mid-rail.
	PhaseRefreshCheck
	// PhaseRefreshBleach pulses the bleached segments that drifted.
	PhaseRefreshBleach
	// PhaseRefreshColor pulses the colored segments that drifted.
	PhaseRefreshColor
)

func (p Phase) String() string {
	switch p {
	case PhaseBleach:
		return "bleach"
	case PhaseColor:
		return "color"
	case PhaseRefreshCheck:
		return "refresh-check"
	case PhaseRefreshBleach:
		return "refresh-bleach"
	case PhaseRefreshColor:
		return "refresh-color"
	default:
		return "none"
	}
}

// EventKind is the checkpoint an Event reports.
type EventKind uint8

const (
	// EventPhaseStart is emitted once the counter electrode is set for a
	// phase. Voltage holds the counter electrode output.
	EventPhaseStart EventKind = iota
	// EventPhaseEnd is emitted after the segments of a phase are floated.
	EventPhaseEnd
	// EventTransition reports a segment being driven to a new state.
	EventTransition
	// EventHold reports a timed hold. Duration is the hold time.
	EventHold
	// EventLimits reports recomputed refresh thresholds.
	EventLimits
	// EventSample reports a segment measurement in Sample.
	EventSample
	// EventRefreshFlagged reports a segment that needs a refresh pulse.
	EventRefreshFlagged
	// EventRetry reports the end of a refresh retry. Retry holds the count.
	EventRetry
	// EventGiveUp reports a segment left uncorrected after MaxRefreshRetries.
	EventGiveUp
	// EventAbort reports a cooperative abort.
	EventAbort
)

func (k EventKind) String() string {
	switch k {
	case EventPhaseStart:
		return "phase-start"
	case EventPhaseEnd:
		return "phase-end"
	case EventTransition:
		return "transition"
	case EventHold:
		return "hold"
	case EventLimits:
		return "limits"
	case EventSample:
		return "sample"
	case EventRefreshFlagged:
		return "refresh-flagged"
	case EventRetry:
		return "retry"
	case EventGiveUp:
		return "give-up"
	case EventAbort:
		return "aborted"
	default:
		return "unknown"
	}
}

// Event is a diagnostic checkpoint of the drive algorithm. Fields that do
// not apply to the Kind are left zero; Segment is -1 when no segment is
// involved.
type Event struct {
	Kind     EventKind
	Phase    Phase
	Segment  int
	Pin      string
	State    State
	Sample   int32
	Voltage  physic.ElectricPotential
	Duration time.Duration
	Retry    int
	Limits   Limits
}

// EventSink receives the events of a Dev. It is called synchronously from
// the driving goroutine.
type EventSink interface {
	Event(e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(e Event)

// Event implements EventSink.
func (f EventSinkFunc) Event(e Event) {
	f(e)
}

// Discard drops every event.
var Discard EventSink = EventSinkFunc(func(Event) {})

// NewLogrusSink returns an EventSink that writes events to l. Give-up and
// abort events are logged at info level, everything else at debug level.
func NewLogrusSink(l *logrus.Logger) EventSink {
	return &logrusSink{l: l}
}

type logrusSink struct {
	l *logrus.Logger
}

func (s *logrusSink) Event(e Event) {
	f := logrus.Fields{"phase": e.Phase.String()}
	if e.Segment >= 0 {
		f["segment"] = e.Segment
		if e.Pin != "" {
			f["pin"] = e.Pin
		}
	}
	switch e.Kind {
	case EventPhaseStart:
		f["counter_electrode"] = e.Voltage.String()
	case EventTransition:
		f["state"] = e.State.String()
	case EventHold:
		f["duration"] = e.Duration.String()
	case EventLimits:
		f["supply"] = e.Voltage.String()
		f["color_high"] = e.Limits.ColorHigh
		f["color_low"] = e.Limits.ColorLow
		f["bleach_high"] = e.Limits.BleachHigh
		f["bleach_low"] = e.Limits.BleachLow
	case EventSample, EventRefreshFlagged:
		f["sample"] = e.Sample
	case EventRetry:
		f["retry"] = e.Retry
	case EventGiveUp:
		f["retry"] = e.Retry
		f["sample"] = e.Sample
	}
	entry := s.l.WithFields(f)
	switch e.Kind {
	case EventGiveUp:
		entry.Info("ecd: segment not corrected, giving up")
	case EventAbort:
		entry.Info("ecd: stop requested, aborting")
	default:
		entry.Debug("ecd: " + e.Kind.String())
	}
}
