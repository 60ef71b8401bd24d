/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type planOptions struct {
	At     string
	Format string
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve the calendar and print the bandwidth changes without applying them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be one of text, json", opts.Format)
			}
			at := timeNow()
			if opts.At != "" {
				parsed, err := time.Parse(time.RFC3339, opts.At)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				at = parsed
			}

			sess, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer sess.close()

			p, err := buildPlan(cmd.Context(), sess.cfg, newCalendarSource(sess.cfg, sess.logger), at, sess.logger)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), opts.Format, p)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "window start as RFC3339 (default now)")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	return cmd
}

type planJSON struct {
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	Intervals   int          `json:"intervals"`
	Actions     []actionJSON `json:"actions"`
}

type actionJSON struct {
	ResourceKey      string    `json:"resource_key"`
	Time             time.Time `json:"time"`
	Bandwidth        string    `json:"bandwidth"`
	Priority         int       `json:"priority"`
	SourceIntervalID string    `json:"source_interval_id"`
}

func writePlan(w io.Writer, format string, p *plan) error {
	if format == "json" {
		out := planJSON{
			WindowStart: p.WindowStart,
			WindowEnd:   p.WindowEnd,
			Intervals:   p.Intervals,
			Actions:     make([]actionJSON, 0, len(p.Actions)),
		}
		for _, a := range p.Actions {
			out.Actions = append(out.Actions, actionJSON{
				ResourceKey:      a.ResourceKey,
				Time:             a.Time.UTC(),
				Bandwidth:        a.Bandwidth,
				Priority:         a.Priority,
				SourceIntervalID: a.SourceIntervalID,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if _, err := fmt.Fprintf(w, "window %s - %s\n", p.WindowStart.Format(time.RFC3339), p.WindowEnd.Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "intervals %d, actions %d\n", p.Intervals, len(p.Actions)); err != nil {
		return err
	}
	for _, a := range p.Actions {
		_, err := fmt.Fprintf(w, "%s %s %s priority=%d source=%s\n",
			a.Time.UTC().Format(time.RFC3339), a.ResourceKey, a.Bandwidth, a.Priority, a.SourceIntervalID)
		if err != nil {
			return err
		}
	}
	return nil
}
