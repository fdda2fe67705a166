// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics of the assistant
// service, exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatRequests counts chat turns by outcome (ok, bad_request,
	// store_error, upstream_error, cancelled).
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulso",
		Subsystem: "assistant",
		Name:      "chat_requests_total",
		Help:      "Chat turns handled, by outcome.",
	}, []string{"outcome"})

	// ActiveStreams tracks the number of chat streams currently open.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulso",
		Subsystem: "assistant",
		Name:      "active_streams",
		Help:      "Chat streams currently open.",
	})

	// TurnDuration observes full turn latency, briefing to done event.
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pulso",
		Subsystem: "assistant",
		Name:      "turn_duration_seconds",
		Help:      "Full chat turn duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})

	// ActionsExecuted counts extracted action commands by type and result.
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulso",
		Subsystem: "assistant",
		Name:      "actions_executed_total",
		Help:      "Action commands executed, by type and result.",
	}, []string{"type", "result"})
)
