/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package calendar

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource reads items from a YAML list. It is used for dry runs and for
// replaying a calendar without Graph access.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Events returns the items overlapping [start, end). The file is re-read on
// every call.
func (s *FileSource) Events(_ context.Context, start, end time.Time) ([]Item, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCalendar, s.Path, err)
	}

	var all []Item
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCalendar, s.Path, err)
	}

	items := make([]Item, 0, len(all))
	for _, item := range all {
		if overlaps(item, start, end) {
			items = append(items, item)
		}
	}
	return items, nil
}
