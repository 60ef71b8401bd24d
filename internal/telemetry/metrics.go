/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iod_scheduler"

var (
	// IntervalsSkippedTotal counts calendar intervals rejected by the label validator.
	IntervalsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intervals_skipped_total",
		Help:      "Calendar intervals skipped because their label did not match the subject pattern.",
	})

	// ActionsResolvedTotal counts bandwidth actions produced by the resolver.
	ActionsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "actions_resolved_total",
		Help:      "Bandwidth change actions produced by interval resolution.",
	})

	// ActionsInFlight tracks executors that have not reached a terminal state.
	ActionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "actions_in_flight",
		Help:      "Action executors currently waiting or talking to the provisioning API.",
	})

	// ActionOutcomesTotal counts terminal action states.
	ActionOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_outcomes_total",
		Help:      "Terminal action outcomes by state.",
	}, []string{"state"})

	// ActionFailuresTotal counts failed actions by the state they failed to leave.
	ActionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_failures_total",
		Help:      "Failed actions by pipeline stage.",
	}, []string{"stage"})

	// ActionTriggerLagSeconds observes how late an action started relative to its scheduled time.
	ActionTriggerLagSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "action_trigger_lag_seconds",
		Help:      "Delay between an action's scheduled time and the start of its provisioning calls.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	// ProvisioningRequestDuration observes provisioning API latency.
	ProvisioningRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provisioning_request_duration_seconds",
		Help:      "Provisioning API request latency by operation and result.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "result"})

	// OpsRequestsTotal counts requests to the operations listener.
	OpsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ops_requests_total",
		Help:      "Operations listener requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// OpsRequestDuration observes operations listener latency.
	OpsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ops_request_duration_seconds",
		Help:      "Operations listener request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
