// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ecd drives segmented electrochromic displays (ECD).
//
// Each segment is a chemical cell between its own segment electrode and a
// counter electrode shared by every segment. A segment colors when its
// electrode is driven above the counter electrode and bleaches when it is
// driven below it. Once the voltage is removed the cell keeps its optical
// state, but slowly drifts back toward a neutral tint.
//
// The driver works in three steps:
//
//  1. SetSegmentState records the requested state of a segment. Nothing is
//     written to the hardware.
//  2. ExecuteDisplay applies the requested changes: first every segment that
//     must bleach, then every segment that must color, each phase held for the
//     configured time.
//  3. RefreshDisplay measures the open circuit potential of every segment
//     against a mid-rail counter electrode and pulses the segments that
//     drifted, retrying up to MaxRefreshRetries times. ExecuteDisplay always
//     ends with a refresh pass; call RefreshDisplay periodically afterwards.
//
// Segment electrodes must support digital output, high impedance input and
// analog sampling. The counter electrode is an analog output (a DAC channel).
//
// # Cancellation
//
// ExecuteDisplay and RefreshDisplay block for seconds. They stop at the next
// loop boundary or hold when the context is cancelled or SetStopDrivingFlag
// is called. An aborted call keeps the segments it already transitioned;
// call ExecuteDisplay again once it is safe to drive.
//
// # Reference
//
// Ynvisible segment displays:
//
// https://www.ynvisible.com/
package ecd
