/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Command iodscheduler turns calendar reservations into timed bandwidth
// changes on Lumen Internet-on-Demand services.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/iod_scheduler/internal/config"
	"github.com/friendsincode/iod_scheduler/internal/logbuffer"
	"github.com/friendsincode/iod_scheduler/internal/logging"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "iodscheduler",
		Short:         "Calendar-driven bandwidth scheduler for Lumen Internet-on-Demand",
		Long:          "Reads bandwidth reservations from a calendar, resolves them into timed changes per service and applies them through the IoD API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "settings document")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newPlanCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// session is the loaded configuration with logging wired to it.
type session struct {
	cfg    *config.Config
	logger zerolog.Logger
	logs   *logbuffer.Buffer
	close  func()
}

// loadConfig loads configuration and sets up logging to the console, the
// daily log file when log_location is set, and an in-memory run log. The
// session close function is always safe to call.
func loadConfig(opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s := &session{cfg: cfg, logs: logbuffer.New(logbuffer.DefaultCapacity), close: func() {}}
	memory := logbuffer.NewWriter(s.logs)

	if cfg.LogLocation == "" {
		s.logger = logging.SetupWithWriter(cfg.Environment, memory)
		return s, nil
	}

	f, err := logging.OpenFile(cfg.LogLocation, timeNow())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	s.logger = logging.SetupWithWriter(cfg.Environment, f, memory)
	s.close = func() { closeQuietly(f) }
	return s, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
