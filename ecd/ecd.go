// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

var (
	ErrSegmentIndex  = errors.New("ecd: segment index out of range")
	ErrInvalidState  = errors.New("ecd: segment state must be Bleached or Colored")
	ErrInvalidConfig = errors.New("ecd: invalid configuration")
	errNoSegments    = errors.New("ecd: at least one segment is required")
	errResolution    = errors.New("ecd: resolution must be within 1 and 16 bits")
)

// State is the optical state of a segment.
type State uint8

const (
	// Undefined is the state of a segment that was never driven.
	Undefined State = iota
	// Bleached is the transparent state.
	Bleached
	// Colored is the opaque state.
	Colored
)

func (s State) String() string {
	switch s {
	case Bleached:
		return "bleached"
	case Colored:
		return "colored"
	default:
		return "undefined"
	}
}

// level is the logic level a segment electrode is driven to for state s.
func (s State) level() gpio.Level {
	return s == Colored
}

// SegmentPin binds a segment electrode to the pins that control it. Both
// usually refer to the same physical pin: IO drives or floats it and Sense
// samples it while it floats.
type SegmentPin struct {
	IO    gpio.PinIO
	Sense analog.PinADC
}

// Resolutioner is implemented by analog pins with a configurable sample
// width. New calls SetResolution on every pin that implements it.
type Resolutioner interface {
	SetResolution(bits int) error
}

// Opts holds the configuration options.
type Opts struct {
	// Config holds the driving parameters. The zero value selects
	// DefaultConfig.
	Config Config
	// SupplyVoltage is the full scale voltage of the ADC and the DAC.
	// Defaults to DefaultSupplyVoltage.
	SupplyVoltage physic.ElectricPotential
	// Resolution is the sample width in bits. Defaults to DefaultResolution.
	Resolution int
	// Sleep blocks for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Events receives the diagnostic events. Defaults to a logrus sink on
	// the standard logger.
	Events EventSink
}

// SegmentStatus is a snapshot of a segment.
type SegmentStatus struct {
	Index         int
	Pin           string
	Current       State
	Next          State
	RefreshNeeded bool
	// Sample is the last measurement of the segment, in LSB.
	Sample int32
}

type segment struct {
	pin           SegmentPin
	current       State
	next          State
	refreshNeeded bool
	sample        int32
}

// Dev drives an electrochromic segment display.
//
// Dev is not safe for concurrent use, except for SetStopDrivingFlag,
// ClearStopDriving and Stopping which may be called from any goroutine.
type Dev struct {
	segments []segment
	ce       analog.PinDAC

	cfg        Config
	supply     physic.ElectricPotential
	resolution int
	maxLSB     int32
	limits     Limits

	sleep  func(ctx context.Context, d time.Duration) error
	events EventSink

	stop   atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc
}

// New returns a driver for the segments, in display order, and the counter
// electrode ce.
//
// The counter electrode output is set to zero and every segment floats.
func New(segments []SegmentPin, ce analog.PinDAC, opts *Opts) (*Dev, error) {
	if len(segments) == 0 {
		return nil, errNoSegments
	}
	if ce == nil {
		return nil, errors.New("ecd: counter electrode pin is required")
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.Config == (Config{}) {
		o.Config = DefaultConfig
	}
	if o.SupplyVoltage == 0 {
		o.SupplyVoltage = DefaultSupplyVoltage
	}
	if o.Resolution == 0 {
		o.Resolution = DefaultResolution
	}
	if o.Resolution < 1 || o.Resolution > 16 {
		return nil, errResolution
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.Events == nil {
		o.Events = NewLogrusSink(logrus.StandardLogger())
	}
	if err := o.Config.Validate(o.SupplyVoltage); err != nil {
		return nil, err
	}

	d := &Dev{
		segments:   make([]segment, len(segments)),
		ce:         ce,
		cfg:        o.Config,
		supply:     o.SupplyVoltage,
		resolution: o.Resolution,
		maxLSB:     1<<o.Resolution - 1,
		sleep:      o.Sleep,
		events:     o.Events,
	}
	for i, p := range segments {
		if p.IO == nil || p.Sense == nil {
			return nil, fmt.Errorf("ecd: segment %d: missing pin", i)
		}
		d.segments[i] = segment{pin: p}
	}
	if err := d.setResolution(); err != nil {
		return nil, err
	}
	if err := d.disableCounterElectrode(); err != nil {
		return nil, err
	}
	if err := d.disableAllSegments(); err != nil {
		return nil, err
	}
	d.updateRefreshLimits()
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("ECD{%d segments, %s}", len(d.segments), d.ce)
}

// Halt implements conn.Resource.
//
// It floats every segment and disables the counter electrode. The segments
// keep their optical state.
func (d *Dev) Halt() error {
	return errors.Join(d.disableAllSegments(), d.disableCounterElectrode())
}

// Begin brings the display to a known state: every segment is colored, then
// every segment is bleached.
func (d *Dev) Begin(ctx context.Context) (Report, error) {
	for i := range d.segments {
		d.segments[i].next = Colored
	}
	r, err := d.ExecuteDisplay(ctx)
	if err != nil || r.Outcome == Aborted {
		return r, err
	}
	d.SetAllSegmentsBleach()
	return d.ExecuteDisplay(ctx)
}

// SetSegmentState sets the state segment i takes on the next ExecuteDisplay.
func (d *Dev) SetSegmentState(i int, s State) error {
	if i < 0 || i >= len(d.segments) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrSegmentIndex, i, len(d.segments))
	}
	if s != Bleached && s != Colored {
		return ErrInvalidState
	}
	d.segments[i].next = s
	return nil
}

// SetAllSegmentsBleach requests every segment to bleach on the next
// ExecuteDisplay.
func (d *Dev) SetAllSegmentsBleach() {
	for i := range d.segments {
		d.segments[i].next = Bleached
	}
}

// NumSegments returns the number of segments.
func (d *Dev) NumSegments() int {
	return len(d.segments)
}

// Segments returns a snapshot of every segment.
func (d *Dev) Segments() []SegmentStatus {
	out := make([]SegmentStatus, len(d.segments))
	for i, s := range d.segments {
		out[i] = SegmentStatus{
			Index:         i,
			Pin:           s.pin.IO.Name(),
			Current:       s.current,
			Next:          s.next,
			RefreshNeeded: s.refreshNeeded,
			Sample:        s.sample,
		}
	}
	return out
}

// UpdateSupplyVoltage sets the supply voltage, for example after measuring a
// battery, and recomputes the refresh limits.
func (d *Dev) UpdateSupplyVoltage(v physic.ElectricPotential) error {
	if err := d.cfg.Validate(v); err != nil {
		return err
	}
	d.supply = v
	d.updateRefreshLimits()
	return nil
}

// SupplyVoltage returns the supply voltage in use.
func (d *Dev) SupplyVoltage() physic.ElectricPotential {
	return d.supply
}

// SetConfig replaces the driving parameters and recomputes the refresh
// limits.
func (d *Dev) SetConfig(c Config) error {
	if err := c.Validate(d.supply); err != nil {
		return err
	}
	d.cfg = c
	d.updateRefreshLimits()
	return nil
}

// Config returns the driving parameters in use.
func (d *Dev) Config() Config {
	return d.cfg
}

// Limits returns the current refresh thresholds.
func (d *Dev) Limits() Limits {
	return d.limits
}

// SetStopDrivingFlag requests the running ExecuteDisplay or RefreshDisplay
// to stop. The flag stays set, so later calls return immediately, until
// ClearStopDriving is called.
func (d *Dev) SetStopDrivingFlag() {
	d.stop.Store(true)
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
}

// ClearStopDriving allows the display to be driven again.
func (d *Dev) ClearStopDriving() {
	d.stop.Store(false)
}

// Stopping reports whether the stop flag is set.
func (d *Dev) Stopping() bool {
	return d.stop.Load()
}

// updateRefreshLimits must be called whenever the supply voltage or the
// configuration changes.
func (d *Dev) updateRefreshLimits() {
	d.limits = computeLimits(&d.cfg, d.supply, d.maxLSB)
	d.emit(Event{Kind: EventLimits, Segment: -1, Voltage: d.supply, Limits: d.limits})
}

func (d *Dev) setResolution() error {
	var pins []any
	pins = append(pins, d.ce)
	for _, s := range d.segments {
		pins = append(pins, s.pin.Sense)
	}
	for _, p := range pins {
		if r, ok := p.(Resolutioner); ok {
			if err := r.SetResolution(d.resolution); err != nil {
				return fmt.Errorf("ecd: %v: %w", p, err)
			}
		}
	}
	return nil
}

// start binds the cancellation of a blocking call to the stop flag.
func (d *Dev) start(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()
	if d.stop.Load() {
		cancel()
	}
	return ctx, func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		cancel()
	}
}

// checkpoint is evaluated at every loop boundary and before every hold.
func (d *Dev) checkpoint(ctx context.Context, p Phase) Outcome {
	if d.stop.Load() || ctx.Err() != nil {
		d.emit(Event{Kind: EventAbort, Phase: p, Segment: -1})
		return Aborted
	}
	return Completed
}

// hold waits for t. It returns Aborted when the wait was cut short.
func (d *Dev) hold(ctx context.Context, p Phase, t time.Duration) Outcome {
	if d.checkpoint(ctx, p) == Aborted {
		return Aborted
	}
	d.emit(Event{Kind: EventHold, Phase: p, Segment: -1, Duration: t})
	if err := d.sleep(ctx, t); err != nil {
		d.emit(Event{Kind: EventAbort, Phase: p, Segment: -1})
		return Aborted
	}
	return Completed
}

func (d *Dev) emit(e Event) {
	d.events.Event(e)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ conn.Resource = &Dev{}
