/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/iod_scheduler/internal/events"
	"github.com/friendsincode/iod_scheduler/internal/logbuffer"
	"github.com/friendsincode/iod_scheduler/internal/models"
)

var (
	windowStart = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(time.Hour)
)

func plannedActions() []models.Action {
	return []models.Action{
		{ResourceKey: "SVC1", Time: windowStart.Add(10 * time.Minute), Bandwidth: "100", State: models.ActionStateScheduled},
		{ResourceKey: "SVC2", Time: windowStart.Add(20 * time.Minute), Bandwidth: "200", State: models.ActionStateScheduled},
	}
}

func TestHealthz(t *testing.T) {
	tracker := NewTracker("run-1", windowStart, windowEnd)
	tracker.SetPlan(plannedActions())
	srv := New("127.0.0.1:0", tracker, zerolog.Nop())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["run_id"] != "run-1" || body["actions"] != float64(2) || body["finished"] != float64(0) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", nil, zerolog.Nop())

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "iod_scheduler_") {
		t.Fatalf("expected scheduler metrics in output")
	}

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actions", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("/actions without tracker: status = %d", rr.Code)
	}
}

func TestTrackerFollowsOutcomes(t *testing.T) {
	bus := events.NewBus()
	tracker := NewTracker("run-1", windowStart, windowEnd)
	actions := plannedActions()
	tracker.SetPlan(actions)

	stop := tracker.Follow(context.Background(), bus)

	failed := actions[1]
	failed.State = models.ActionStateFailed
	outcome := models.Outcome{Action: failed, State: models.ActionStateFailed, Err: errors.New("quote rejected")}
	bus.Publish(events.EventActionFailed, events.OutcomePayload("run-1", outcome))

	deadline := time.Now().Add(5 * time.Second)
	for tracker.Snapshot().Finished == 0 {
		if time.Now().After(deadline) {
			t.Fatal("tracker never recorded the outcome")
		}
		time.Sleep(5 * time.Millisecond)
	}
	stop()

	st := tracker.Snapshot()
	if st.Finished != 1 || st.Total != 2 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.Actions[1].State != "failed" || st.Actions[1].Error != "quote rejected" {
		t.Fatalf("unexpected action view %+v", st.Actions[1])
	}
	if st.Actions[0].State != "scheduled" {
		t.Fatalf("untouched action changed: %+v", st.Actions[0])
	}

	srv := New("127.0.0.1:0", tracker, zerolog.Nop())
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/actions", nil))
	var got RunStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Actions) != 2 || got.Actions[1].Error != "quote rejected" {
		t.Fatalf("unexpected /actions body %+v", got)
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv := New("127.0.0.1:0", nil, zerolog.Nop())
	closed := false
	srv.DeferClose(func() error { closed = true; return nil })

	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !closed {
		t.Fatal("close hook not run")
	}
}

func TestLogsEndpoint(t *testing.T) {
	buf := logbuffer.New(10)
	logger := zerolog.New(logbuffer.NewWriter(buf))
	logger.Info().Str("resource_key", "SVC1").Msg("action started")
	logger.Error().Str("resource_key", "SVC2").Msg("quote rejected")
	logger.Info().Str("resource_key", "SVC2").Msg("action started")

	srv := New("127.0.0.1:0", nil, zerolog.Nop())
	srv.ServeLogs(buf)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?resource_key=SVC2&limit=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Entries []logbuffer.LogEntry `json:"entries"`
		Stats   logbuffer.Stats      `json:"stats"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || body.Entries[0].Message != "action started" || body.Entries[0].ResourceKey != "SVC2" {
		t.Fatalf("unexpected entries %+v", body.Entries)
	}
	if body.Stats.Count != 3 || body.Stats.LevelCount["error"] != 1 {
		t.Fatalf("unexpected stats %+v", body.Stats)
	}

	for _, query := range []string{"limit=-1", "limit=x", "since=yesterday"} {
		rr = httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rr.Code)
		}
	}
}
