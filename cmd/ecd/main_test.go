// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GermanBionicSystems/ecd/ecd"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(mapLookup(nil))
	require.NoError(t, err)
	require.Equal(t, ecd.DefaultSupplyVoltage, s.supply)
	require.Equal(t, ecd.DefaultResolution, s.resolution)
	require.Equal(t, ecd.DefaultConfig, s.cfg)
	require.Equal(t, logrus.InfoLevel, s.level)
}

func TestLoadSettingsOverrides(t *testing.T) {
	s, err := loadSettings(mapLookup(map[string]string{
		"ECD_SUPPLY_VOLTAGE":   "5V",
		"ECD_COLORING_VOLTAGE": "1800mV",
		"ECD_COLOR_LIMIT_LOW":  "150mV",
		"ECD_BLEACHING_TIME":   "2s",
		"ECD_RESOLUTION":       "10",
		"ECD_LOG_LEVEL":        "debug",
	}))
	require.NoError(t, err)
	require.Equal(t, 5*physic.Volt, s.supply)
	require.Equal(t, 1800*physic.MilliVolt, s.cfg.ColoringVoltage)
	require.Equal(t, 150*physic.MilliVolt, s.cfg.RefreshColorLimitLowVoltage)
	require.Equal(t, 2*time.Second, s.cfg.BleachingTime)
	require.Equal(t, ecd.DefaultConfig.ColoringTime, s.cfg.ColoringTime)
	require.Equal(t, 10, s.resolution)
	require.Equal(t, logrus.DebugLevel, s.level)
}

func TestLoadSettingsErrors(t *testing.T) {
	for _, env := range []map[string]string{
		{"ECD_SUPPLY_VOLTAGE": "fast"},
		{"ECD_COLORING_TIME": "1.5"},
		{"ECD_RESOLUTION": "twelve"},
		{"ECD_LOG_LEVEL": "loud"},
		{"ECD_BLEACHING_VOLTAGE": "4V"},
	} {
		_, err := loadSettings(mapLookup(env))
		require.Error(t, err, "%v", env)
	}
}

func TestEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecd.env")
	require.NoError(t, os.WriteFile(path, []byte("ECD_COLORING_TIME=3s\nECD_TEST_ONLY_ENV=file\n"), 0o600))
	t.Setenv("ECD_TEST_ONLY_ENV", "process")
	lookup, err := envLookup(path)
	require.NoError(t, err)
	v, ok := lookup("ECD_COLORING_TIME")
	require.True(t, ok)
	require.Equal(t, "3s", v)
	v, _ = lookup("ECD_TEST_ONLY_ENV")
	require.Equal(t, "process", v)

	_, err = envLookup(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSimulate(t *testing.T) {
	out, logs, err := execute(t, "simulate", "--segments", "3", "--color", "1", "--cycles", "1", "--drift", "24h", "--frame", "0")
	require.NoError(t, err)
	require.Equal(t, "...\n.#.\n.#.\n.#.\n", out)
	require.Contains(t, logs, "ecd: display refreshed")
	require.Contains(t, logs, "refresh=true")
}

func TestSimulateStuck(t *testing.T) {
	_, logs, err := execute(t, "simulate", "--segments", "2", "--color", "1", "--stuck", "0", "--cycles", "1", "--drift", "24h", "--frame", "0")
	require.NoError(t, err)
	require.Contains(t, logs, "ecd: segment not corrected, giving up")

	_, _, err = execute(t, "simulate", "--segments", "2", "--stuck", "5")
	require.Error(t, err)
}

func TestSnapshotCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.png")
	out, _, err := execute(t, "snapshot", "--segments", "4", "--cycles", "0", "--out", path)
	require.NoError(t, err)
	require.Equal(t, "wrote "+path+"\n", out)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))
}

func TestBadLogLevel(t *testing.T) {
	_, _, err := execute(t, "simulate", "--log-level", "loud")
	require.Error(t, err)
}

func TestListPins(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listPins(&buf, nil))
	require.Equal(t, "no GPIO pin found\n", buf.String())

	buf.Reset()
	pins := []gpio.PinIO{
		&gpiotest.Pin{N: "GPIO2", Num: 2},
		&gpiotest.Pin{N: "GPIO17", Num: 17},
	}
	require.NoError(t, listPins(&buf, pins))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"GPIO17", "17"}, strings.Fields(lines[2]))
}
