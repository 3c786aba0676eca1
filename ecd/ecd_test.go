// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ecd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestNew(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3, 4, 5}, nil)
	if n := d.NumSegments(); n != 4 {
		t.Fatalf("NumSegments() = %d", n)
	}
	for i, s := range d.Segments() {
		if s.Current != Undefined || s.Next != Undefined {
			t.Errorf("segment %d: %s -> %s, want undefined", i, s.Current, s.Next)
		}
		if p := d.segments[i].pin.IO.(*segPin).P; p != gpio.Float {
			t.Errorf("segment %d pull = %s, want float", i, p)
		}
	}
	if len(h.ops) != 0 {
		t.Errorf("unexpected operations %v", h.ops)
	}
	if bits := d.ce.(*dacPin).bits; bits != DefaultResolution {
		t.Errorf("resolution = %d", bits)
	}
	if s := d.String(); !strings.Contains(s, "4 segments") {
		t.Errorf("String() = %q", s)
	}
}

func TestNewErrors(t *testing.T) {
	h := &fakeHAL{driven: map[int]gpio.Level{}}
	seg := SegmentPin{IO: &segPin{Pin: &gpiotest.Pin{N: "GPIO2"}, h: h}, Sense: &sensePin{h: h, name: "GPIO2"}}
	bad := DefaultConfig
	bad.ColoringVoltage = 0
	for _, tc := range []struct {
		name     string
		segments []SegmentPin
		ce       *dacPin
		opts     *Opts
	}{
		{"no segments", nil, &dacPin{h: h}, nil},
		{"no counter electrode", []SegmentPin{seg}, nil, nil},
		{"missing sense pin", []SegmentPin{{IO: seg.IO}}, &dacPin{h: h}, nil},
		{"resolution", []SegmentPin{seg}, &dacPin{h: h}, &Opts{Resolution: 17}},
		{"config", []SegmentPin{seg}, &dacPin{h: h}, &Opts{Config: bad}},
		{"supply below coloring voltage", []SegmentPin{seg}, &dacPin{h: h}, &Opts{SupplyVoltage: volts(1)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.ce == nil {
				_, err = New(tc.segments, nil, tc.opts)
			} else {
				_, err = New(tc.segments, tc.ce, tc.opts)
			}
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSetSegmentState(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3}, nil)
	if err := d.SetSegmentState(1, Colored); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSegmentState(2, Colored); !errors.Is(err, ErrSegmentIndex) {
		t.Errorf("index 2: %v", err)
	}
	if err := d.SetSegmentState(-1, Colored); !errors.Is(err, ErrSegmentIndex) {
		t.Errorf("index -1: %v", err)
	}
	if err := d.SetSegmentState(0, Undefined); !errors.Is(err, ErrInvalidState) {
		t.Errorf("undefined state: %v", err)
	}
	if got := d.Segments()[1].Next; got != Colored {
		t.Errorf("next = %s", got)
	}
	d.SetAllSegmentsBleach()
	for _, s := range d.Segments() {
		if s.Next != Bleached {
			t.Errorf("segment %d next = %s", s.Index, s.Next)
		}
	}
	if len(h.ops) != 0 {
		t.Errorf("bookkeeping touched the hardware: %v", h.ops)
	}
}

func TestBeginAndColorOneSegment(t *testing.T) {
	cfg := DefaultConfig
	cfg.ColoringVoltage = volts(3)
	cfg.BleachingVoltage = volts(1)
	d, h := newTestDev(t, []int{2, 3, 4, 5}, &Opts{Config: cfg, SupplyVoltage: volts(5)})
	ctx := context.Background()

	r, err := d.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !r.OK() {
		t.Fatalf("Begin: %s", r)
	}
	if got, want := h.filter("out "), []string{
		"out GPIO2 High", "out GPIO3 High", "out GPIO4 High", "out GPIO5 High",
		"out GPIO2 Low", "out GPIO3 Low", "out GPIO4 Low", "out GPIO5 Low",
	}; !cmp.Equal(got, want) {
		t.Errorf("Begin difference (-got +want):\n%s", cmp.Diff(got, want))
	}
	for _, s := range d.Segments() {
		if s.Current != Bleached {
			t.Errorf("segment %d is %s after Begin", s.Index, s.Current)
		}
	}

	h.reset()
	if err := d.SetSegmentState(2, Colored); err != nil {
		t.Fatal(err)
	}
	r, err = d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(r.Transitioned, []int{2}); diff != "" {
		t.Errorf("Transitioned difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(h.filter("out "), []string{"out GPIO4 High"}); diff != "" {
		t.Errorf("driven pins difference (-got +want):\n%s", diff)
	}
	// bleach phase at 1V, color phase at 5V-3V, refresh check at mid-rail.
	if diff := cmp.Diff(h.filter("ce "), []string{"ce 819", "ce 0", "ce 1638", "ce 0", "ce 2047", "ce 0"}); diff != "" {
		t.Errorf("counter electrode difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(h.filter("sleep "), []string{"sleep 50ms", "sleep 50ms", "sleep 1.5s", "sleep 50ms"}); diff != "" {
		t.Errorf("holds difference (-got +want):\n%s", diff)
	}
	for i, s := range d.Segments() {
		want := Bleached
		if i == 2 {
			want = Colored
		}
		if s.Current != want {
			t.Errorf("segment %d is %s, want %s", i, s.Current, want)
		}
	}
}

func TestExecuteReachesRequestedState(t *testing.T) {
	d, _ := newTestDev(t, []int{10, 11, 12, 13, 14}, nil)
	ctx := context.Background()
	want := []State{Colored, Bleached, Colored, Colored, Bleached}
	for i, s := range want {
		if err := d.SetSegmentState(i, s); err != nil {
			t.Fatal(err)
		}
	}
	r, err := d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != Completed {
		t.Fatalf("outcome %s", r.Outcome)
	}
	// Bleached segments go first.
	if diff := cmp.Diff(r.Transitioned, []int{1, 4, 0, 2, 3}); diff != "" {
		t.Errorf("Transitioned difference (-got +want):\n%s", diff)
	}
	for i, s := range d.Segments() {
		if s.Current != want[i] || s.Current != s.Next {
			t.Errorf("segment %d: current %s next %s want %s", i, s.Current, s.Next, want[i])
		}
	}
}

func TestExecuteIdempotent(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3, 4}, nil)
	ctx := context.Background()
	if _, err := d.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSegmentState(1, Colored); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ExecuteDisplay(ctx); err != nil {
		t.Fatal(err)
	}
	h.reset()
	r, err := d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Transitioned) != 0 {
		t.Errorf("Transitioned = %v", r.Transitioned)
	}
	if got := h.filter("out "); len(got) != 0 {
		t.Errorf("second execute drove %v", got)
	}
	// Only the counter electrode settle delays remain.
	if diff := cmp.Diff(h.filter("sleep "), []string{"sleep 50ms", "sleep 50ms", "sleep 50ms"}); diff != "" {
		t.Errorf("holds difference (-got +want):\n%s", diff)
	}
}

func TestStopDrivingMidExecute(t *testing.T) {
	var d *Dev
	stopAt := 1
	sink := EventSinkFunc(func(e Event) {
		if e.Kind == EventTransition && e.Segment == stopAt {
			d.SetStopDrivingFlag()
		}
	})
	d, h := newTestDev(t, []int{2, 3, 4, 5}, &Opts{Events: sink})
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := d.SetSegmentState(i, Colored); err != nil {
			t.Fatal(err)
		}
	}

	r, err := d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != Aborted {
		t.Fatalf("outcome %s", r.Outcome)
	}
	if diff := cmp.Diff(r.Transitioned, []int{0, 1}); diff != "" {
		t.Errorf("Transitioned difference (-got +want):\n%s", diff)
	}
	want := []State{Colored, Colored, Undefined, Undefined}
	for i, s := range d.Segments() {
		if s.Current != want[i] {
			t.Errorf("segment %d is %s, want %s", i, s.Current, want[i])
		}
	}
	if got := h.filter("sleep 1.5s"); len(got) != 0 {
		t.Errorf("held after stop: %v", got)
	}
	// The driven segments are floated again.
	if got := h.ops[len(h.ops)-4:]; !cmp.Equal(got, []string{"float GPIO2", "float GPIO3", "float GPIO4", "float GPIO5"}) {
		t.Errorf("last operations %v", got)
	}

	// The flag sticks until cleared.
	h.reset()
	if r, _ := d.ExecuteDisplay(ctx); r.Outcome != Aborted || len(h.ops) != 0 {
		t.Errorf("execute with stop flag set: %s, %v", r, h.ops)
	}

	stopAt = -1
	d.ClearStopDriving()
	if d.Stopping() {
		t.Fatal("flag not cleared")
	}
	r, err = d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !r.OK() {
		t.Fatalf("resume: %s", r)
	}
	if diff := cmp.Diff(r.Transitioned, []int{2, 3}); diff != "" {
		t.Errorf("Transitioned difference (-got +want):\n%s", diff)
	}
}

func TestStopDuringHold(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3}, nil)
	h.onSleep = func(dur time.Duration) {
		if dur == d.cfg.ColoringTime {
			d.SetStopDrivingFlag()
		}
	}
	if err := d.SetSegmentState(0, Colored); err != nil {
		t.Fatal(err)
	}
	r, err := d.ExecuteDisplay(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != Aborted {
		t.Fatalf("outcome %s", r.Outcome)
	}
	if s := d.Segments()[0]; s.Current != Colored {
		t.Errorf("segment 0 is %s", s.Current)
	}
	if got := h.filter("read "); len(got) != 0 {
		t.Errorf("refresh ran after abort: %v", got)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3}, nil)
	if err := d.SetSegmentState(0, Colored); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := d.ExecuteDisplay(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Outcome != Aborted {
		t.Errorf("outcome %s", r.Outcome)
	}
	if len(h.ops) != 0 {
		t.Errorf("operations after cancel: %v", h.ops)
	}
	if s := d.Segments()[0]; s.Current != Undefined {
		t.Errorf("segment 0 is %s", s.Current)
	}
}

func TestExecutePinError(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3}, nil)
	boom := errors.New("boom")
	h.outErr = boom
	if err := d.SetSegmentState(1, Bleached); err != nil {
		t.Fatal(err)
	}
	r, err := d.ExecuteDisplay(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(err.Error(), "ecd: segment 1") {
		t.Errorf("err = %q", err)
	}
	if r.Outcome != Aborted {
		t.Errorf("outcome %s", r.Outcome)
	}
	if s := d.Segments()[1]; s.Current != Undefined {
		t.Errorf("segment 1 is %s", s.Current)
	}
}

func TestUpdateSupplyVoltage(t *testing.T) {
	d, _ := newTestDev(t, []int{2}, nil)
	before := d.Limits()
	if err := d.UpdateSupplyVoltage(2 * DefaultSupplyVoltage); err != nil {
		t.Fatal(err)
	}
	if got := d.SupplyVoltage(); got != 2*DefaultSupplyVoltage {
		t.Errorf("SupplyVoltage() = %s", got)
	}
	after := d.Limits()
	if want := computeLimits(&d.cfg, 2*DefaultSupplyVoltage, d.maxLSB); after != want {
		t.Errorf("Limits() = %s, want %s", after, want)
	}
	if after == before {
		t.Error("limits not recomputed")
	}
	if err := d.UpdateSupplyVoltage(0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero supply: %v", err)
	}
	if err := d.UpdateSupplyVoltage(volts(1)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("supply below coloring voltage: %v", err)
	}
	if got := d.Limits(); got != after {
		t.Errorf("rejected update changed limits to %s", got)
	}
}

func TestSetConfig(t *testing.T) {
	d, _ := newTestDev(t, []int{2}, nil)
	cfg := d.Config()
	cfg.RefreshBleachingVoltage = volts(1.5)
	if err := d.SetConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if want := computeLimits(&cfg, d.supply, d.maxLSB); d.Limits() != want {
		t.Errorf("Limits() = %s, want %s", d.Limits(), want)
	}
	cfg.ColoringTime = -1
	if err := d.SetConfig(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative time: %v", err)
	}
}

func TestHalt(t *testing.T) {
	d, h := newTestDev(t, []int{2, 3}, nil)
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(h.ops, []string{"float GPIO2", "float GPIO3", "ce 0"}); diff != "" {
		t.Errorf("Halt difference (-got +want):\n%s", diff)
	}
}

func TestLogrusSink(t *testing.T) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	d, h := newTestDev(t, []int{2, 3}, &Opts{Events: NewLogrusSink(l)})
	ctx := context.Background()
	if _, err := d.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	h.sample = func(i int) int32 { return d.maxLSB }
	hook.Reset()
	if _, err := d.RefreshDisplay(ctx); err != nil {
		t.Fatal(err)
	}
	var giveUps int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel && strings.Contains(e.Message, "giving up") {
			giveUps++
			if e.Data["phase"] != "refresh-bleach" {
				t.Errorf("phase = %v", e.Data["phase"])
			}
			if e.Data["retry"] != MaxRefreshRetries {
				t.Errorf("retry = %v", e.Data["retry"])
			}
		}
	}
	if giveUps != 2 {
		t.Errorf("%d give up entries, want 2", giveUps)
	}
}

func TestNames(t *testing.T) {
	for _, tc := range []struct {
		s    fmt.Stringer
		want string
	}{
		{Undefined, "undefined"},
		{Bleached, "bleached"},
		{Colored, "colored"},
		{PhaseNone, "none"},
		{PhaseBleach, "bleach"},
		{PhaseColor, "color"},
		{PhaseRefreshCheck, "refresh-check"},
		{PhaseRefreshBleach, "refresh-bleach"},
		{PhaseRefreshColor, "refresh-color"},
	} {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("%#v: %q, want %q", tc.s, got, tc.want)
		}
	}
}
