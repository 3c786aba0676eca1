// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ecd is a container for the electrochromic display driver.
//
// The driver is in ecd/ecd, a simulated panel for tests and demos in
// ecd/ecdsim and the command line tool in cmd/ecd.
package ecd
