/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ActionState enumerates the lifecycle states of a bandwidth action.
type ActionState string

const (
	ActionStateScheduled        ActionState = "scheduled"
	ActionStateAuthenticated    ActionState = "authenticated"
	ActionStateInventoryFetched ActionState = "inventory_fetched"
	ActionStateQuoted           ActionState = "quoted"
	ActionStateOrdered          ActionState = "ordered"
	ActionStateVerified         ActionState = "verified"
	ActionStatePending          ActionState = "pending" // ordered, provider still applying the change
	ActionStateFailed           ActionState = "failed"
)

// Terminal reports whether no further transition may leave the state.
func (s ActionState) Terminal() bool {
	switch s {
	case ActionStateVerified, ActionStatePending, ActionStateFailed:
		return true
	}
	return false
}

// Action is a point-in-time bandwidth change for one resource key.
//
// Actions are passed by value. Each pipeline stage returns an updated copy,
// so a snapshot handed to a logger or event subscriber never changes under it.
type Action struct {
	ResourceKey      string
	Time             time.Time
	Bandwidth        string
	Priority         int
	SourceIntervalID string

	State ActionState

	// Populated from the service inventory.
	Status        string
	AccountNumber string
	AccountName   string
	SiteID        string
	PartnerID     string // only set for data-center services

	// Populated by the quote and order stages.
	QuoteID    string
	ExternalID string
}

// NewAction builds a scheduled action from one edge of an interval.
func NewAction(iv Interval, at time.Time, bandwidth string) Action {
	return Action{
		ResourceKey:      iv.ResourceKey,
		Time:             at,
		Bandwidth:        bandwidth,
		Priority:         iv.Priority,
		SourceIntervalID: iv.ID,
		State:            ActionStateScheduled,
	}
}

// Outcome is the terminal result of executing one action.
type Outcome struct {
	Action     Action
	State      ActionState
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the change was applied and confirmed.
func (o Outcome) Succeeded() bool {
	return o.State == ActionStateVerified
}
