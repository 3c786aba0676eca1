// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ecdsim simulates an electrochromic segment panel.
//
// A Panel exposes its segment electrodes and its counter electrode as periph
// pins, so an ecd.Dev drives it exactly like hardware. Time is virtual: pass
// Panel.Sleep as ecd.Opts.Sleep and the holds complete instantly while the
// cell model integrates them. Use Advance to let the panel drift.
//
// Console prints the panel to a terminal and Snapshot renders it to an image.
package ecdsim
