/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package calendar reads bandwidth reservations from a calendar and turns them
// into intervals.
package calendar

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/models"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

// ErrCalendar indicates the calendar could not be read.
var ErrCalendar = errors.New("calendar retrieval failed")

// Item is one calendar entry.
type Item struct {
	ID         string    `yaml:"id" json:"id"`
	Subject    string    `yaml:"subject" json:"subject"`
	Location   string    `yaml:"location" json:"location"`
	Start      time.Time `yaml:"start" json:"start"`
	End        time.Time `yaml:"end" json:"end"`
	Categories []string  `yaml:"categories" json:"categories"`
}

// Source lists calendar entries overlapping [start, end).
type Source interface {
	Events(ctx context.Context, start, end time.Time) ([]Item, error)
}

// Transform converts items into intervals sorted by start. The location names
// the resource and the number of categories is the priority. Items with equal
// starts keep their calendar order. Items without a start or end are skipped;
// items that end before they start are passed on, the resolver handles them.
func Transform(items []Item, logger zerolog.Logger) []models.Interval {
	intervals := make([]models.Interval, 0, len(items))
	for _, item := range items {
		if item.Start.IsZero() || item.End.IsZero() {
			logger.Warn().
				Str("interval_id", item.ID).
				Str("resource_key", strings.TrimSpace(item.Location)).
				Msg("calendar item has no start or end, skipping")
			telemetry.IntervalsSkippedTotal.Inc()
			continue
		}
		if item.End.Before(item.Start) {
			logger.Debug().
				Str("interval_id", item.ID).
				Time("start", item.Start).
				Time("end", item.End).
				Msg("calendar item ends before it starts")
		}
		intervals = append(intervals, models.Interval{
			ID:          item.ID,
			ResourceKey: strings.TrimSpace(item.Location),
			Start:       item.Start.UTC(),
			End:         item.End.UTC(),
			Priority:    len(item.Categories),
			Label:       item.Subject,
		})
	}

	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})
	return intervals
}

// overlaps reports whether an item touches [start, end).
func overlaps(item Item, start, end time.Time) bool {
	return item.Start.Before(end) && item.End.After(start)
}
