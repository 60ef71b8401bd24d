/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package executor carries resolved bandwidth actions through provisioning at
// their scheduled time.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/iod_scheduler/internal/clock"
	"github.com/friendsincode/iod_scheduler/internal/events"
	"github.com/friendsincode/iod_scheduler/internal/models"
	"github.com/friendsincode/iod_scheduler/internal/provisioning"
	"github.com/friendsincode/iod_scheduler/internal/telemetry"
)

const maxExternalIDLength = 20

var (
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrVerificationMismatch indicates the service did not end up at the requested bandwidth.
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// Provisioner is the provisioning API as seen by the executor.
type Provisioner interface {
	Authenticate(ctx context.Context) (provisioning.Token, error)
	FetchInventory(ctx context.Context, token provisioning.Token, serviceID string) (provisioning.Inventory, error)
	CreateQuote(ctx context.Context, token provisioning.Token, fields provisioning.QuoteFields) (string, error)
	SubmitOrder(ctx context.Context, token provisioning.Token, fields provisioning.OrderFields) error
	CheckStatus(ctx context.Context, token provisioning.Token, serviceID string) (provisioning.ServiceStatus, error)
}

// Config tunes an Executor.
type Config struct {
	// GracePeriod is the wait between submitting an order and checking it.
	GracePeriod time.Duration
	// RunID tags every log line and published outcome.
	RunID string
}

// Executor runs single actions to a terminal state. It is safe for
// concurrent use; each Execute call owns its action exclusively.
type Executor struct {
	provisioner Provisioner
	clock       clock.Clock
	bus         events.Publisher
	cfg         Config
	logger      zerolog.Logger

	// disambiguator returns a value in [0, n).
	disambiguator func(n int) int
}

// New creates an executor.
func New(p Provisioner, c clock.Clock, bus events.Publisher, cfg Config, logger zerolog.Logger) *Executor {
	return &Executor{
		provisioner:   p,
		clock:         c,
		bus:           bus,
		cfg:           cfg,
		logger:        logger.With().Str("component", "executor").Str("run_id", cfg.RunID).Logger(),
		disambiguator: rand.IntN,
	}
}

// Execute waits until the action is due, then authenticates, fetches the
// inventory, quotes, orders and verifies. Errors never escape; they end up in
// the returned Outcome.
func (e *Executor) Execute(ctx context.Context, action models.Action) models.Outcome {
	logger := e.logger.With().
		Str("resource_key", action.ResourceKey).
		Time("scheduled_at", action.Time).
		Str("bandwidth", action.Bandwidth).
		Logger()

	ctx, span := telemetry.StartSpan(ctx, "executor.execute", telemetry.ActionAttributes(action)...)
	defer span.End()

	telemetry.ActionsInFlight.Inc()
	defer telemetry.ActionsInFlight.Dec()

	outcome := models.Outcome{Action: action, StartedAt: e.clock.Now()}

	final, err := e.run(ctx, action, logger)
	outcome.Action = final
	outcome.State = final.State
	outcome.Err = err
	outcome.FinishedAt = e.clock.Now()

	span.SetAttributes(attribute.String("action.state", string(final.State)))
	if err != nil {
		telemetry.RecordError(span, err)
	}
	telemetry.ActionOutcomesTotal.WithLabelValues(string(final.State)).Inc()

	switch final.State {
	case models.ActionStateVerified:
		logger.Info().Str("quote_id", final.QuoteID).Str("external_id", final.ExternalID).Msg("bandwidth change verified")
	case models.ActionStatePending:
		logger.Info().Str("quote_id", final.QuoteID).Str("status", final.Status).Msg("bandwidth change still pending, not re-checked")
	default:
		logger.Error().Err(err).Msg("bandwidth action failed")
	}

	if e.bus != nil {
		e.bus.Publish(events.OutcomeEventType(final.State), events.OutcomePayload(e.cfg.RunID, outcome))
	}
	return outcome
}

// run threads the action through the state machine. Every step returns a new
// snapshot; a failure returns the last snapshot moved to failed.
func (e *Executor) run(ctx context.Context, a models.Action, logger zerolog.Logger) (models.Action, error) {
	if err := e.clock.SleepUntil(ctx, a.Time); err != nil {
		return e.fail(a, fmt.Errorf("wait for scheduled time: %w", err))
	}
	lag := e.clock.Now().Sub(a.Time)
	if lag < 0 {
		lag = 0
	}
	telemetry.ActionTriggerLagSeconds.Observe(lag.Seconds())
	logger.Info().Dur("lag", lag).Msg("action due")
	if e.bus != nil {
		e.bus.Publish(events.EventActionStarted, events.Payload{
			"run_id":       e.cfg.RunID,
			"resource_key": a.ResourceKey,
			"scheduled_at": a.Time.UTC().Format(time.RFC3339),
			"bandwidth":    a.Bandwidth,
		})
	}

	token, err := e.provisioner.Authenticate(ctx)
	if err != nil {
		return e.fail(a, err)
	}
	if a, err = e.transition(a, models.ActionStateAuthenticated, logger); err != nil {
		return e.fail(a, err)
	}
	if !token.ExpiresAt.IsZero() {
		logger.Debug().Time("token_expires_at", token.ExpiresAt).Msg("authenticated")
	}

	inv, err := e.provisioner.FetchInventory(ctx, token, a.ResourceKey)
	if err != nil {
		return e.fail(a, err)
	}
	a.Status = inv.Status
	a.AccountNumber = inv.AccountNumber
	a.AccountName = inv.AccountName
	a.SiteID = inv.SiteID
	a.PartnerID = inv.PartnerID
	if a, err = e.transition(a, models.ActionStateInventoryFetched, logger); err != nil {
		return e.fail(a, err)
	}

	quoteID, err := e.provisioner.CreateQuote(ctx, token, provisioning.QuoteFields{
		SiteID:    a.SiteID,
		Bandwidth: a.Bandwidth,
		PartnerID: a.PartnerID,
	})
	if err != nil {
		return e.fail(a, err)
	}
	if strings.TrimSpace(quoteID) == "" {
		return e.fail(a, fmt.Errorf("%w: blank quote id", provisioning.ErrProtocol))
	}
	a.QuoteID = quoteID
	if a, err = e.transition(a, models.ActionStateQuoted, logger); err != nil {
		return e.fail(a, err)
	}

	a.ExternalID = e.externalID(a.ResourceKey, a.Time)
	err = e.provisioner.SubmitOrder(ctx, token, provisioning.OrderFields{
		QuoteID:        a.QuoteID,
		ServiceID:      a.ResourceKey,
		AccountName:    a.AccountName,
		AccountNumber:  a.AccountNumber,
		CalendarItemID: a.SourceIntervalID,
		ExternalID:     a.ExternalID,
	})
	if err != nil {
		return e.fail(a, err)
	}
	if a, err = e.transition(a, models.ActionStateOrdered, logger); err != nil {
		return e.fail(a, err)
	}

	if err := clock.Sleep(ctx, e.clock, e.cfg.GracePeriod); err != nil {
		return e.fail(a, fmt.Errorf("wait before verification: %w", err))
	}

	status, err := e.provisioner.CheckStatus(ctx, token, a.ResourceKey)
	if err != nil {
		return e.fail(a, err)
	}
	a.Status = status.Status

	switch {
	case strings.EqualFold(status.Status, provisioning.StatusActive) &&
		status.HasBandwidth && strings.EqualFold(status.Bandwidth, a.Bandwidth):
		return e.transition(a, models.ActionStateVerified, logger)
	case strings.EqualFold(status.Status, provisioning.StatusChangePending):
		return e.transition(a, models.ActionStatePending, logger)
	default:
		logger.Warn().
			Str("expected_status", provisioning.StatusActive).
			Str("actual_status", status.Status).
			Str("expected_bandwidth", a.Bandwidth).
			Str("actual_bandwidth", status.Bandwidth).
			Msg("verification mismatch")
		return e.fail(a, fmt.Errorf("%w: expected %s at %q, got %q at %q",
			ErrVerificationMismatch, provisioning.StatusActive, a.Bandwidth, status.Status, status.Bandwidth))
	}
}

// transition returns a copy of a in state to.
func (e *Executor) transition(a models.Action, to models.ActionState, logger zerolog.Logger) (models.Action, error) {
	if !isValidTransition(a.State, to) {
		return a, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, to)
	}
	logger.Debug().Str("from", string(a.State)).Str("to", string(to)).Msg("state transition")
	a.State = to
	return a, nil
}

// fail returns a copy of a marked failed, recording the state it failed to leave.
func (e *Executor) fail(a models.Action, err error) (models.Action, error) {
	telemetry.ActionFailuresTotal.WithLabelValues(string(a.State)).Inc()
	if !a.State.Terminal() {
		a.State = models.ActionStateFailed
	}
	return a, err
}

// externalID builds the order reference: service id, the scheduled day as
// yyMMdd and a random disambiguator, with the service id shortened to fit
// maxExternalIDLength.
func (e *Executor) externalID(resourceKey string, scheduled time.Time) string {
	suffix := scheduled.UTC().Format("060102") + strconv.Itoa(e.disambiguator(10000))
	room := maxExternalIDLength - len(suffix)
	if len(resourceKey) > room {
		resourceKey = resourceKey[:room]
	}
	return resourceKey + suffix
}

// State machine validation

var validTransitions = map[models.ActionState][]models.ActionState{
	models.ActionStateScheduled:        {models.ActionStateAuthenticated, models.ActionStateFailed},
	models.ActionStateAuthenticated:    {models.ActionStateInventoryFetched, models.ActionStateFailed},
	models.ActionStateInventoryFetched: {models.ActionStateQuoted, models.ActionStateFailed},
	models.ActionStateQuoted:           {models.ActionStateOrdered, models.ActionStateFailed},
	models.ActionStateOrdered:          {models.ActionStateVerified, models.ActionStatePending, models.ActionStateFailed},
}

func isValidTransition(from, to models.ActionState) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if allowedState == to {
			return true
		}
	}

	return false
}
