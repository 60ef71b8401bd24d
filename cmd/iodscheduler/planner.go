/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/calendar"
	"github.com/friendsincode/iod_scheduler/internal/clock"
	"github.com/friendsincode/iod_scheduler/internal/config"
	"github.com/friendsincode/iod_scheduler/internal/models"
	"github.com/friendsincode/iod_scheduler/internal/priority"
	"github.com/friendsincode/iod_scheduler/internal/scheduling"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// plan is the resolved action list for one monitoring window.
type plan struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Intervals   int
	Actions     []models.Action
}

func newCalendarSource(cfg *config.Config, logger zerolog.Logger) calendar.Source {
	if cfg.CalendarSource == config.CalendarFile {
		return calendar.NewFileSource(cfg.CalendarFile)
	}
	return calendar.NewGraphSource(calendar.GraphConfig{
		TenantID:     cfg.TenantID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		UserAccount:  cfg.UserAccount,
		CalendarID:   cfg.CalendarID,
		Timeout:      cfg.HTTPTimeout(),
	}, logger)
}

// buildPlan reads the calendar for the window opening at the minute of at and
// resolves it into actions.
func buildPlan(ctx context.Context, cfg *config.Config, src calendar.Source, at time.Time, logger zerolog.Logger) (*plan, error) {
	validator, err := scheduling.NewValidator(cfg.SubjectRegex, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	windowStart := clock.WindowStart(at).UTC()
	windowEnd := windowStart.Add(cfg.TimeWindow())

	items, err := src.Events(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	intervals := calendar.Transform(items, logger)

	resolver := priority.NewResolver(validator, logger)
	actions := resolver.ResolveAll(priority.GroupByResource(intervals), windowStart, windowEnd)

	logger.Info().
		Time("window_start", windowStart).
		Time("window_end", windowEnd).
		Int("intervals", len(intervals)).
		Int("actions", len(actions)).
		Msg("calendar resolved")

	return &plan{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Intervals:   len(intervals),
		Actions:     actions,
	}, nil
}
