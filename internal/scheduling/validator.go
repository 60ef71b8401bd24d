/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/models"
)

// Named capture groups the subject pattern must define.
const (
	GroupStartValue = "startVal"
	GroupEndValue   = "endVal"
)

var (
	// ErrInvalidLabel indicates an interval label that does not encode bandwidth values.
	ErrInvalidLabel = errors.New("invalid interval label")

	// ErrInvalidPattern indicates the configured subject pattern cannot be used.
	ErrInvalidPattern = errors.New("invalid subject pattern")
)

// Validator checks interval labels against the configured subject pattern and
// extracts the bandwidth values they encode.
type Validator struct {
	pattern *regexp.Regexp
	logger  zerolog.Logger
}

// NewValidator compiles the subject pattern case-insensitively. An empty
// pattern is accepted and produces a validator that rejects every interval.
func NewValidator(pattern string, logger zerolog.Logger) (*Validator, error) {
	v := &Validator{
		logger: logger.With().Str("component", "interval_validator").Logger(),
	}
	if strings.TrimSpace(pattern) == "" {
		v.logger.Warn().Msg("subject pattern not configured, every interval will be skipped")
		return v, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if re.SubexpIndex(GroupStartValue) < 0 || re.SubexpIndex(GroupEndValue) < 0 {
		return nil, fmt.Errorf("%w: pattern must define named groups %q and %q", ErrInvalidPattern, GroupStartValue, GroupEndValue)
	}
	v.pattern = re
	return v, nil
}

// Extract returns the start and end bandwidth values encoded in the interval
// label. ok is false when the pattern is unset, the label or resource key is
// empty, or the label does not match.
func (v *Validator) Extract(iv models.Interval) (start, end string, ok bool) {
	if v == nil || v.pattern == nil || iv.Label == "" || iv.ResourceKey == "" {
		return "", "", false
	}

	match := v.pattern.FindStringSubmatch(iv.Label)
	if match == nil {
		return "", "", false
	}
	return match[v.pattern.SubexpIndex(GroupStartValue)], match[v.pattern.SubexpIndex(GroupEndValue)], true
}

// Validate reports why an interval cannot be resolved, or nil if it can.
func (v *Validator) Validate(iv models.Interval) error {
	switch {
	case v == nil || v.pattern == nil:
		return fmt.Errorf("%w: subject pattern not configured", ErrInvalidLabel)
	case iv.ResourceKey == "":
		return fmt.Errorf("%w: interval %s has no resource key", ErrInvalidLabel, iv.ID)
	case iv.Label == "":
		return fmt.Errorf("%w: interval %s has no label", ErrInvalidLabel, iv.ID)
	}
	if _, _, ok := v.Extract(iv); !ok {
		return fmt.Errorf("%w: %q does not match subject pattern", ErrInvalidLabel, iv.Label)
	}
	return nil
}
