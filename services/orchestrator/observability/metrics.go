// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the orchestrator.
//
// Metrics cover the chat dispatch paths, callback ingress, poll egress,
// and the pending-buffer population. Exposed via the /metrics endpoint.
// All operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "helpdesk"

const chatSubsystem = "chat"

// ChatMetrics holds all Prometheus metrics for the chat orchestrator.
// Initialize once at startup via InitMetrics().
type ChatMetrics struct {
	// DispatchesTotal counts chat dispatches by backend and status.
	// Labels: backend (llm, servicenow), status (success, error)
	DispatchesTotal *prometheus.CounterVec

	// CallbacksTotal counts webhook deliveries by result.
	// Labels: result (stored, missing_request_id, invalid, empty)
	CallbacksTotal *prometheus.CounterVec

	// PollsTotal counts poll requests by outcome.
	// Labels: outcome (content, empty), acknowledged (true, false)
	PollsTotal *prometheus.CounterVec

	// DrainsTotal counts buffers drained by acknowledged polls.
	DrainsTotal prometheus.Counter

	// SweptBuffersTotal counts buffers evicted by the TTL sweeper.
	SweptBuffersTotal prometheus.Counter

	// PendingBuffers tracks the current pending-buffer population.
	PendingBuffers prometheus.Gauge

	// ProviderLatencySeconds measures outbound VA dispatch latency.
	// Labels: status (success, error)
	ProviderLatencySeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of ChatMetrics.
// Initialized by InitMetrics(); handlers nil-check before recording.
var DefaultMetrics *ChatMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// application startup; a second call panics on duplicate registration.
func InitMetrics() *ChatMetrics {
	DefaultMetrics = &ChatMetrics{
		DispatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "dispatches_total",
				Help:      "Total chat dispatches by backend and status",
			},
			[]string{"backend", "status"},
		),

		CallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "callbacks_total",
				Help:      "Total webhook callback deliveries by result",
			},
			[]string{"result"},
		),

		PollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "polls_total",
				Help:      "Total poll requests by outcome and acknowledgment",
			},
			[]string{"outcome", "acknowledged"},
		),

		DrainsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "drains_total",
				Help:      "Total buffers drained by acknowledged polls",
			},
		),

		SweptBuffersTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "swept_buffers_total",
				Help:      "Total buffers evicted by the TTL sweeper",
			},
		),

		PendingBuffers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "pending_buffers",
				Help:      "Current number of pending response buffers",
			},
		),

		ProviderLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "provider_latency_seconds",
				Help:      "Outbound ServiceNow dispatch latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"status"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Helper Methods
// =============================================================================

// Backend labels for RecordDispatch.
const (
	BackendLLM        = "llm"
	BackendServiceNow = "servicenow"
)

// RecordDispatch records a completed chat dispatch.
func (m *ChatMetrics) RecordDispatch(backend string, success bool) {
	m.DispatchesTotal.WithLabelValues(backend, statusLabel(success)).Inc()
}

// RecordCallback records a webhook delivery result.
func (m *ChatMetrics) RecordCallback(result string) {
	m.CallbacksTotal.WithLabelValues(result).Inc()
}

// RecordPoll records a poll request outcome.
func (m *ChatMetrics) RecordPoll(hadContent, acknowledged bool) {
	outcome := "empty"
	if hadContent {
		outcome = "content"
	}
	ack := "false"
	if acknowledged {
		ack = "true"
	}
	m.PollsTotal.WithLabelValues(outcome, ack).Inc()
}

// ObserveProviderLatency records one outbound dispatch duration.
func (m *ChatMetrics) ObserveProviderLatency(seconds float64, success bool) {
	m.ProviderLatencySeconds.WithLabelValues(statusLabel(success)).Observe(seconds)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
