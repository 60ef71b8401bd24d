/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package priority

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/models"
	"github.com/friendsincode/iod_scheduler/internal/scheduling"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

// Edge identifies which boundary of an interval produced an action.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

// Resolver turns calendar intervals into the minimal ordered list of
// bandwidth changes for each resource key.
type Resolver struct {
	validator *scheduling.Validator
	logger    zerolog.Logger
}

// NewResolver creates a resolver that gates intervals through validator.
func NewResolver(validator *scheduling.Validator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		validator: validator,
		logger:    logger.With().Str("component", "priority_resolver").Logger(),
	}
}

// CanPreempt reports whether an edge with the given priority may displace the
// last accumulated action. Equal priority never displaces.
func (r *Resolver) CanPreempt(last models.Action, priority int) bool {
	return priority > last.Priority
}

// Resolve produces the ordered actions for one resource key.
//
// intervals must be sorted by start time; the resolver makes a single forward
// pass and treats the last accumulated action as the latest change. The
// returned slice is never nil, has strictly increasing times, and holds at most
// two actions per input interval.
func (r *Resolver) Resolve(intervals []models.Interval, windowStart, windowEnd time.Time) []models.Action {
	actions := make([]models.Action, 0, 2*len(intervals))

	for _, iv := range intervals {
		if err := r.validator.Validate(iv); err != nil {
			r.logger.Warn().
				Err(err).
				Str("interval_id", iv.ID).
				Str("resource_key", iv.ResourceKey).
				Msg("interval skipped")
			telemetry.IntervalsSkippedTotal.Inc()
			continue
		}
		startBW, endBW, _ := r.validator.Extract(iv)

		actions = r.placeStart(actions, iv, startBW, windowStart)
		actions = r.placeEnd(actions, iv, endBW, windowStart, windowEnd)
	}

	return actions
}

func (r *Resolver) placeStart(actions []models.Action, iv models.Interval, bandwidth string, windowStart time.Time) []models.Action {
	action := models.NewAction(iv, iv.Start, bandwidth)
	if len(actions) == 0 {
		// No change is synthesised for a first interval already running when
		// the window opens.
		if iv.Start.Before(windowStart) {
			return actions
		}
		return append(actions, action)
	}

	last := actions[len(actions)-1]
	switch {
	case iv.Start.Equal(last.Time):
		// Back-to-back reservations: one change at the boundary is enough.
		return replaceLast(actions, action)
	case iv.Start.After(last.Time):
		return append(actions, action)
	case r.CanPreempt(last, iv.Priority):
		return replaceLast(actions, action)
	default:
		r.logDropped(iv, EdgeStart, last)
		return actions
	}
}

func (r *Resolver) placeEnd(actions []models.Action, iv models.Interval, bandwidth string, windowStart, windowEnd time.Time) []models.Action {
	if iv.End.After(windowEnd) || iv.End.Before(windowStart) {
		return actions
	}

	action := models.NewAction(iv, iv.End, bandwidth)
	if len(actions) == 0 {
		return append(actions, action)
	}

	last := actions[len(actions)-1]
	switch {
	case iv.End.After(last.Time):
		return append(actions, action)
	case r.CanPreempt(last, iv.Priority):
		return replaceLast(actions, action)
	default:
		r.logDropped(iv, EdgeEnd, last)
		return actions
	}
}

// replaceLast swaps the last action for the displacing one. Any earlier
// actions at or after the new time are superseded too, keeping the list
// strictly increasing.
func replaceLast(actions []models.Action, action models.Action) []models.Action {
	actions = actions[:len(actions)-1]
	for len(actions) > 0 && !actions[len(actions)-1].Time.Before(action.Time) {
		actions = actions[:len(actions)-1]
	}
	return append(actions, action)
}

func (r *Resolver) logDropped(iv models.Interval, edge Edge, kept models.Action) {
	r.logger.Debug().
		Str("interval_id", iv.ID).
		Str("resource_key", iv.ResourceKey).
		Str("edge", string(edge)).
		Int("priority", iv.Priority).
		Str("kept_interval_id", kept.SourceIntervalID).
		Int("kept_priority", kept.Priority).
		Msg("conflicting edge dropped")
}
