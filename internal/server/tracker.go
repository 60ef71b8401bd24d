/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/iod_scheduler/internal/events"
	"github.com/friendsincode/iod_scheduler/internal/models"
)

var outcomeEvents = []events.EventType{
	events.EventActionVerified,
	events.EventActionPending,
	events.EventActionFailed,
}

// ActionView is one planned action as reported by /actions.
type ActionView struct {
	ResourceKey string    `json:"resource_key"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Bandwidth   string    `json:"bandwidth"`
	State       string    `json:"state"`
	Error       string    `json:"error,omitempty"`
}

// RunStatus summarises the current run.
type RunStatus struct {
	RunID       string       `json:"run_id"`
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	Total       int          `json:"total"`
	Finished    int          `json:"finished"`
	Actions     []ActionView `json:"actions"`
}

// Tracker follows action outcomes on the event bus.
type Tracker struct {
	mu     sync.Mutex
	status RunStatus
	index  map[string]int
}

// NewTracker creates a tracker for one run.
func NewTracker(runID string, windowStart, windowEnd time.Time) *Tracker {
	return &Tracker{
		status: RunStatus{RunID: runID, WindowStart: windowStart, WindowEnd: windowEnd, Actions: []ActionView{}},
		index:  make(map[string]int),
	}
}

// SetPlan records the resolved actions, all initially scheduled.
func (t *Tracker) SetPlan(actions []models.Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Actions = make([]ActionView, len(actions))
	t.index = make(map[string]int, len(actions))
	for i, a := range actions {
		t.status.Actions[i] = ActionView{
			ResourceKey: a.ResourceKey,
			ScheduledAt: a.Time.UTC(),
			Bandwidth:   a.Bandwidth,
			State:       string(a.State),
		}
		t.index[actionKey(a.ResourceKey, a.Time.UTC().Format(time.RFC3339))] = i
	}
	t.status.Total = len(actions)
	t.status.Finished = 0
}

// Follow subscribes to outcome events on bus and records them in the
// background until ctx is done or the returned stop function is called.
func (t *Tracker) Follow(ctx context.Context, bus *events.Bus) (stop func()) {
	subs := make([]events.Subscriber, len(outcomeEvents))
	for i, et := range outcomeEvents {
		subs[i] = bus.Subscribe(et)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			for i, et := range outcomeEvents {
				bus.Unsubscribe(et, subs[i])
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case p := <-subs[0]:
				t.record(p)
			case p := <-subs[1]:
				t.record(p)
			case p := <-subs[2]:
				t.record(p)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (t *Tracker) record(p events.Payload) {
	key, _ := p["resource_key"].(string)
	at, _ := p["scheduled_at"].(string)
	state, _ := p["state"].(string)
	errMsg, _ := p["error"].(string)

	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[actionKey(key, at)]
	if !ok {
		return
	}
	if !models.ActionState(t.status.Actions[i].State).Terminal() {
		t.status.Finished++
	}
	t.status.Actions[i].State = state
	t.status.Actions[i].Error = errMsg
}

// Snapshot returns a copy of the run status.
func (t *Tracker) Snapshot() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.status
	st.Actions = make([]ActionView, len(t.status.Actions))
	copy(st.Actions, t.status.Actions)
	return st
}

func actionKey(resourceKey, scheduledAt string) string {
	return resourceKey + "|" + scheduledAt
}
