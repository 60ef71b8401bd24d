/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/friendsincode/iod_scheduler/internal/clock"
	"github.com/friendsincode/iod_scheduler/internal/eventbus"
	"github.com/friendsincode/iod_scheduler/internal/events"
	"github.com/friendsincode/iod_scheduler/internal/executor"
	"github.com/friendsincode/iod_scheduler/internal/provisioning"
	"github.com/friendsincode/iod_scheduler/internal/server"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
	"github.com/friendsincode/iod_scheduler/internal/version"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resolve the calendar and apply every bandwidth change at its scheduled time",
		Long:  "Reads the monitoring window starting at the current minute, resolves it into bandwidth changes and waits until every change has been applied and checked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), root)
		},
	}
}

func runScheduler(parent context.Context, root *rootOptions) error {
	sess, err := loadConfig(root)
	if err != nil {
		return err
	}
	defer sess.close()
	cfg, logger := sess.cfg, sess.logger

	if err := cfg.ValidateProvisioning(); err != nil {
		logger.Error().Err(err).Msg("provisioning settings incomplete")
		return err
	}
	templates, err := provisioning.LoadTemplates(cfg.QuoteTemplate, cfg.OrderTemplate, cfg.PartnerAnchor)
	if err != nil {
		logger.Error().Err(err).Msg("load payload templates")
		return err
	}

	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()
	logger.Info().Str("version", version.Version).Str("environment", cfg.Environment).Msg("iod scheduler starting")

	// Cancellation only happens on process termination.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "iod-scheduler",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	p, err := buildPlan(ctx, cfg, newCalendarSource(cfg, logger), timeNow(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("could not resolve calendar")
		return err
	}

	bus := events.NewBus()
	var publisher events.Publisher = bus
	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		nb, err := eventbus.NewNATSBus(natsCfg, bus, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, outcome events stay in-process")
		} else {
			publisher = nb
			defer func() {
				if err := nb.Close(); err != nil {
					logger.Warn().Err(err).Msg("close nats")
				}
			}()
		}
	}

	tracker := server.NewTracker(runID, p.WindowStart, p.WindowEnd)
	tracker.SetPlan(p.Actions)
	stopTracking := tracker.Follow(ctx, bus)
	defer stopTracking()

	if cfg.MetricsBind != "" {
		srv := server.New(cfg.MetricsBind, tracker, logger)
		srv.ServeLogs(sess.logs)
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("metrics listener")
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics listener shutdown failed")
			}
		}()
	}

	client := provisioning.NewClient(provisioning.Config{
		BaseURL:        cfg.IoDURL,
		Secret:         cfg.IoDSecret,
		CustomerNumber: cfg.CustomerNumber,
		Timeout:        cfg.HTTPTimeout(),
	}, templates, logger)

	exec := executor.New(client, clock.Real{}, publisher, executor.Config{
		GracePeriod: cfg.GracePeriod(),
		RunID:       runID,
	}, logger)

	outcomes := executor.NewDispatcher(exec, logger).Dispatch(ctx, p.Actions)
	summary := executor.Summarize(outcomes)

	publisher.Publish(events.EventRunCompleted, events.Payload{
		"run_id":       runID,
		"window_start": p.WindowStart.Format(time.RFC3339),
		"window_end":   p.WindowEnd.Format(time.RFC3339),
		"verified":     summary.Verified,
		"pending":      summary.Pending,
		"failed":       summary.Failed,
	})

	if ctx.Err() != nil {
		logger.Warn().Msg("terminated before every action finished")
	}
	logger.Info().
		Int("verified", summary.Verified).
		Int("pending", summary.Pending).
		Int("failed", summary.Failed).
		Msg("iod scheduler finished")
	return nil
}
