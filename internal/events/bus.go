/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"time"

	"github.com/friendsincode/iod_scheduler/internal/models"
)

// EventType enumerates event categories.
type EventType string

const (
	EventActionStarted  EventType = "action.started"
	EventActionVerified EventType = "action.verified"
	EventActionPending  EventType = "action.pending"
	EventActionFailed   EventType = "action.failed"

	// Emitted once per run after every action has finished.
	EventRunCompleted EventType = "run.completed"
)

// Publisher is the publishing side of a bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers miss events.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}

// OutcomeEventType maps a terminal state to its event type.
func OutcomeEventType(state models.ActionState) EventType {
	switch state {
	case models.ActionStateVerified:
		return EventActionVerified
	case models.ActionStatePending:
		return EventActionPending
	default:
		return EventActionFailed
	}
}

// OutcomePayload flattens an outcome for publishing.
func OutcomePayload(runID string, o models.Outcome) Payload {
	p := Payload{
		"run_id":             runID,
		"resource_key":       o.Action.ResourceKey,
		"scheduled_at":       o.Action.Time.UTC().Format(time.RFC3339),
		"bandwidth":          o.Action.Bandwidth,
		"priority":           o.Action.Priority,
		"source_interval_id": o.Action.SourceIntervalID,
		"state":              string(o.State),
		"quote_id":           o.Action.QuoteID,
		"external_id":        o.Action.ExternalID,
		"started_at":         o.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":        o.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.Err != nil {
		p["error"] = o.Err.Error()
	}
	return p
}
