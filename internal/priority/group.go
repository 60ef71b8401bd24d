/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package priority

import (
	"time"

	"github.com/friendsincode/iod_scheduler/internal/models"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

// Group holds the intervals of one resource key in start order.
type Group struct {
	ResourceKey string
	Intervals   []models.Interval
}

// GroupByResource splits intervals into independent per-key schedules.
// Groups appear in order of first appearance and keep the input order within
// each key, so start-sorted input yields start-sorted groups.
func GroupByResource(intervals []models.Interval) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, iv := range intervals {
		i, ok := index[iv.ResourceKey]
		if !ok {
			i = len(groups)
			index[iv.ResourceKey] = i
			groups = append(groups, Group{ResourceKey: iv.ResourceKey})
		}
		groups[i].Intervals = append(groups[i].Intervals, iv)
	}
	return groups
}

// ResolveAll resolves every group independently and concatenates the results.
func (r *Resolver) ResolveAll(groups []Group, windowStart, windowEnd time.Time) []models.Action {
	var all []models.Action
	for _, g := range groups {
		actions := r.Resolve(g.Intervals, windowStart, windowEnd)
		r.logger.Debug().
			Str("resource_key", g.ResourceKey).
			Int("intervals", len(g.Intervals)).
			Int("actions", len(actions)).
			Msg("resource schedule resolved")
		all = append(all, actions...)
	}
	telemetry.ActionsResolvedTotal.Add(float64(len(all)))
	if all == nil {
		all = []models.Action{}
	}
	return all
}
