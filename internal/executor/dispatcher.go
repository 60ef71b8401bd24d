/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package executor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/models"
)

// Runner executes one action to a terminal state.
type Runner interface {
	Execute(ctx context.Context, action models.Action) models.Outcome
}

// Dispatcher fans actions out to one goroutine each.
type Dispatcher struct {
	runner Runner
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by runner.
func NewDispatcher(runner Runner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		runner: runner,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch runs every action concurrently and blocks until all of them are
// terminal. Outcomes are returned in the order of actions.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []models.Action) []models.Outcome {
	outcomes := make([]models.Outcome, len(actions))
	if len(actions) == 0 {
		return outcomes
	}

	d.logger.Info().Int("actions", len(actions)).Msg("dispatching actions")

	var wg sync.WaitGroup
	wg.Add(len(actions))
	for i, action := range actions {
		go func(i int, action models.Action) {
			defer wg.Done()
			outcomes[i] = d.runner.Execute(ctx, action)
		}(i, action)
	}
	wg.Wait()

	summary := Summarize(outcomes)
	d.logger.Info().
		Int("verified", summary.Verified).
		Int("pending", summary.Pending).
		Int("failed", summary.Failed).
		Msg("all actions finished")

	return outcomes
}

// Summary counts outcomes by terminal state.
type Summary struct {
	Verified int
	Pending  int
	Failed   int
}

// Summarize counts outcomes by terminal state.
func Summarize(outcomes []models.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.State {
		case models.ActionStateVerified:
			s.Verified++
		case models.ActionStatePending:
			s.Pending++
		default:
			s.Failed++
		}
	}
	return s
}
