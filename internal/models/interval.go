/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Interval is a single calendar reservation on a link, already expanded and
// normalised to UTC. Intervals are read-only once built.
type Interval struct {
	ID          string    // external correlation id (calendar iCalUId)
	ResourceKey string    // IoD service id the reservation applies to
	Start       time.Time
	End         time.Time
	Priority    int    // category count; higher wins conflicts
	Label       string // subject line carrying the encoded bandwidth values
}
