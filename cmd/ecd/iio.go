// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/GermanBionicSystems/ecd/ecd"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// iioADC is one channel of a Linux industrial I/O ADC, read through
// in_voltage<n>_raw.
//
// Samples are rescaled from the converter width to the resolution the driver
// asks for with SetResolution.
type iioADC struct {
	dir    string
	ch     int
	hwBits int
	vRef   physic.ElectricPotential

	mu   sync.Mutex
	bits int
}

func newIIOADC(dir string, ch, hwBits int, vRef physic.ElectricPotential) (*iioADC, error) {
	if hwBits < 1 || hwBits > 16 {
		return nil, fmt.Errorf("iio: invalid converter width %d", hwBits)
	}
	a := &iioADC{dir: dir, ch: ch, hwBits: hwBits, vRef: vRef, bits: hwBits}
	if _, err := os.Stat(a.path()); err != nil {
		return nil, fmt.Errorf("iio: %w", err)
	}
	return a, nil
}

func (a *iioADC) path() string {
	return filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", a.ch))
}

func (a *iioADC) String() string {
	return a.Name()
}

func (a *iioADC) Halt() error {
	return nil
}

func (a *iioADC) Name() string {
	return fmt.Sprintf("%s:%d", filepath.Base(a.dir), a.ch)
}

func (a *iioADC) Number() int {
	return a.ch
}

func (a *iioADC) Function() string {
	return "ADC"
}

func (a *iioADC) Range() (analog.Sample, analog.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return analog.Sample{}, analog.Sample{V: a.vRef, Raw: 1<<a.bits - 1}
}

func (a *iioADC) Read() (analog.Sample, error) {
	b, err := os.ReadFile(a.path())
	if err != nil {
		return analog.Sample{}, fmt.Errorf("iio: %w", err)
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("iio: %s: %w", a.Name(), err)
	}
	hwMax := int64(1)<<a.hwBits - 1
	if raw < 0 || raw > hwMax {
		return analog.Sample{}, fmt.Errorf("iio: %s: sample %d outside [0, %d]", a.Name(), raw, hwMax)
	}
	a.mu.Lock()
	m := int64(1)<<a.bits - 1
	a.mu.Unlock()
	return analog.Sample{
		V:   physic.ElectricPotential(int64(a.vRef) / hwMax * raw),
		Raw: int32((raw*m + hwMax/2) / hwMax),
	}, nil
}

// SetResolution implements ecd.Resolutioner.
func (a *iioADC) SetResolution(bits int) error {
	if bits < 1 || bits > 16 {
		return fmt.Errorf("iio: invalid resolution %d", bits)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bits = bits
	return nil
}

var (
	_ analog.PinADC    = &iioADC{}
	_ ecd.Resolutioner = &iioADC{}
)
