// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// root holds the state shared by the subcommands.
type root struct {
	envFile  string
	logLevel string

	settings *settings
	log      *logrus.Logger
}

func newRootCmd() *cobra.Command {
	r := &root{}
	cmd := &cobra.Command{
		Use:   "ecd",
		Short: "Drive electrochromic segment displays.",
		Long: `ecd runs the segment display driver against a simulated panel ` +
			`or a display wired to the host, renders simulated panels and lists ` +
			`the host pins a display can use. ` +
			`The driving parameters come from the ECD_* environment variables, ` +
			`optionally read from a dotenv file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.init(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&r.envFile, "env", "", "dotenv file with ECD_* variables")
	cmd.PersistentFlags().StringVar(&r.logLevel, "log-level", "", "log level, overrides ECD_LOG_LEVEL")
	cmd.AddCommand(newSimulateCmd(r), newSnapshotCmd(r), newDriveCmd(r), newPinsCmd(r))
	return cmd
}

func (r *root) init(cmd *cobra.Command) error {
	lookup, err := envLookup(r.envFile)
	if err != nil {
		return err
	}
	if r.settings, err = loadSettings(lookup); err != nil {
		return err
	}
	r.log = logrus.New()
	r.log.SetOutput(cmd.ErrOrStderr())
	r.log.SetLevel(r.settings.level)
	if r.logLevel != "" {
		l, err := logrus.ParseLevel(r.logLevel)
		if err != nil {
			return err
		}
		r.log.SetLevel(l)
	}
	return nil
}
