// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// settings is the driver configuration read from the environment.
type settings struct {
	supply     physic.ElectricPotential
	resolution int
	cfg        ecd.Config
	level      logrus.Level
}

// lookupFunc has the signature of os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// envLookup returns a lookup on the process environment, then on the
// variables of the dotenv file path, if any.
func envLookup(path string) (lookupFunc, error) {
	file := map[string]string{}
	if path != "" {
		var err error
		if file, err = godotenv.Read(path); err != nil {
			return nil, err
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}, nil
}

// loadSettings starts from the driver defaults and applies the ECD_*
// variables. Voltages need a unit, like "1.5V" or "1500mV".
func loadSettings(lookup lookupFunc) (*settings, error) {
	s := &settings{
		supply:     ecd.DefaultSupplyVoltage,
		resolution: ecd.DefaultResolution,
		cfg:        ecd.DefaultConfig,
		level:      logrus.InfoLevel,
	}
	voltages := []struct {
		key string
		v   *physic.ElectricPotential
	}{
		{"ECD_SUPPLY_VOLTAGE", &s.supply},
		{"ECD_COLORING_VOLTAGE", &s.cfg.ColoringVoltage},
		{"ECD_BLEACHING_VOLTAGE", &s.cfg.BleachingVoltage},
		{"ECD_REFRESH_COLORING_VOLTAGE", &s.cfg.RefreshColoringVoltage},
		{"ECD_REFRESH_BLEACHING_VOLTAGE", &s.cfg.RefreshBleachingVoltage},
		{"ECD_COLOR_LIMIT_HIGH", &s.cfg.RefreshColorLimitHighVoltage},
		{"ECD_COLOR_LIMIT_LOW", &s.cfg.RefreshColorLimitLowVoltage},
		{"ECD_BLEACH_LIMIT_HIGH", &s.cfg.RefreshBleachLimitHighVoltage},
		{"ECD_BLEACH_LIMIT_LOW", &s.cfg.RefreshBleachLimitLowVoltage},
	}
	for _, e := range voltages {
		if v, ok := lookup(e.key); ok {
			if err := e.v.Set(v); err != nil {
				return nil, fmt.Errorf("%s: %w", e.key, err)
			}
		}
	}
	durations := []struct {
		key string
		d   *time.Duration
	}{
		{"ECD_COLORING_TIME", &s.cfg.ColoringTime},
		{"ECD_BLEACHING_TIME", &s.cfg.BleachingTime},
		{"ECD_REFRESH_COLOR_PULSE_TIME", &s.cfg.RefreshColorPulseTime},
		{"ECD_REFRESH_BLEACH_PULSE_TIME", &s.cfg.RefreshBleachPulseTime},
	}
	for _, e := range durations {
		if v, ok := lookup(e.key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.key, err)
			}
			*e.d = d
		}
	}
	if v, ok := lookup("ECD_RESOLUTION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ECD_RESOLUTION: %w", err)
		}
		s.resolution = n
	}
	if v, ok := lookup("ECD_LOG_LEVEL"); ok {
		l, err := logrus.ParseLevel(v)
		if err != nil {
			return nil, fmt.Errorf("ECD_LOG_LEVEL: %w", err)
		}
		s.level = l
	}
	if err := s.cfg.Validate(s.supply); err != nil {
		return nil, err
	}
	return s, nil
}
