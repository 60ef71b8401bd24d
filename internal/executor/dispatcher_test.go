/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/clock"
	"github.com/friendsincode/iod_scheduler/internal/models"
)

// blockingRunner holds every Execute call until all of them have started,
// which proves the dispatcher runs actions concurrently.
type blockingRunner struct {
	started sync.WaitGroup
}

func (r *blockingRunner) Execute(_ context.Context, a models.Action) models.Outcome {
	r.started.Done()
	r.started.Wait()
	state := models.ActionStateVerified
	if a.Bandwidth == "fail" {
		state = models.ActionStateFailed
	}
	a.State = state
	return models.Outcome{Action: a, State: state}
}

func TestDispatchRunsConcurrentlyAndKeepsOrder(t *testing.T) {
	actions := []models.Action{
		{ResourceKey: "A", Bandwidth: "10", Time: testNow},
		{ResourceKey: "B", Bandwidth: "fail", Time: testNow},
		{ResourceKey: "C", Bandwidth: "30", Time: testNow.Add(time.Minute)},
		{ResourceKey: "A", Bandwidth: "40", Time: testNow.Add(time.Hour)},
	}
	r := &blockingRunner{}
	r.started.Add(len(actions))

	done := make(chan []models.Outcome)
	go func() {
		done <- NewDispatcher(r, zerolog.Nop()).Dispatch(context.Background(), actions)
	}()

	var outcomes []models.Outcome
	select {
	case outcomes = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch did not run actions concurrently")
	}

	if len(outcomes) != len(actions) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(actions))
	}
	for i, o := range outcomes {
		if o.Action.ResourceKey != actions[i].ResourceKey || o.Action.Bandwidth != actions[i].Bandwidth {
			t.Fatalf("outcome %d belongs to %+v, want %+v", i, o.Action, actions[i])
		}
	}

	s := Summarize(outcomes)
	if s.Verified != 3 || s.Failed != 1 || s.Pending != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestDispatchEmpty(t *testing.T) {
	out := NewDispatcher(&blockingRunner{}, zerolog.Nop()).Dispatch(context.Background(), nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil outcomes, got %#v", out)
	}
}

func TestDispatchWithExecutor(t *testing.T) {
	p := newFakeProvisioner()
	fc := clock.NewFake(testNow)
	e := newTestExecutor(p, fc, nil)

	actions := []models.Action{
		newTestAction(testNow.Add(10 * time.Minute)),
		newTestAction(testNow.Add(20 * time.Minute)),
	}
	outcomes := NewDispatcher(e, zerolog.Nop()).Dispatch(context.Background(), actions)

	for i, o := range outcomes {
		if o.State != models.ActionStateVerified {
			t.Fatalf("outcome %d: %s (%v)", i, o.State, o.Err)
		}
		if !o.Action.Time.Equal(actions[i].Time) {
			t.Fatalf("outcome %d out of order", i)
		}
	}
	if n := len(p.Calls()); n != 10 {
		t.Fatalf("expected 10 provisioning calls, got %d", n)
	}
}
