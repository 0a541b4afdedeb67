// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the document
// pipeline.
//
// # Description
//
// Metrics cover the two primary operations (ingestion and question
// answering), per-stage latency, the advisory critic fan-out, and the size
// of the in-memory retrieval index. Exposed via the /metrics endpoint; use
// with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for document pipeline metrics
const docqaSubsystem = "docqa"

// Metrics holds all Prometheus metrics for the document pipeline.
//
// # Fields
//
//   - IngestTotal: Counter of ingestion runs by status
//   - QATotal: Counter of question-answering runs by status
//   - StageDurationSeconds: Histogram of per-stage latency
//   - CriticFailuresTotal: Counter of swallowed critic failures by kind
//   - DisagreementsTotal: Counter of persisted disagreements by phase
//   - IndexedChunks: Gauge of chunks currently in the retrieval index
type Metrics struct {
	// IngestTotal counts ingestion runs.
	// Labels: status (success, degraded, error)
	IngestTotal *prometheus.CounterVec

	// QATotal counts question-answering runs.
	// Labels: status (success, dont_know, error)
	QATotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (parse, summarize, entities, index, qa)
	StageDurationSeconds *prometheus.HistogramVec

	// CriticFailuresTotal counts critic calls that failed and were swallowed.
	// Labels: kind (bias_summary, completeness_qa, arbiter, ...)
	CriticFailuresTotal *prometheus.CounterVec

	// DisagreementsTotal counts persisted disagreement records.
	// Labels: phase (summary_review, qa_review)
	DisagreementsTotal *prometheus.CounterVec

	// IndexedChunks tracks chunks currently held by the retrieval index.
	IndexedChunks prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// GetMetrics returns the process-wide metrics instance, registering it on
// first use. Safe to call from any package at any time.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "ingest_total",
				Help:      "Total ingestion runs by status",
			},
			[]string{"status"},
		),

		QATotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "qa_total",
				Help:      "Total question-answering runs by status",
			},
			[]string{"status"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"stage"},
		),

		CriticFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "critic_failures_total",
				Help:      "Critic calls that failed and were swallowed, by kind",
			},
			[]string{"kind"},
		),

		DisagreementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "disagreements_total",
				Help:      "Persisted critic disagreement records by phase",
			},
			[]string{"phase"},
		),

		IndexedChunks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: docqaSubsystem,
				Name:      "indexed_chunks",
				Help:      "Chunks currently held by the retrieval index",
			},
		),
	}
}

// =============================================================================
// Status Labels
// =============================================================================

// Status labels the outcome of a primary pipeline run.
type Status string

const (
	// StatusSuccess indicates the run completed with all gates passing.
	StatusSuccess Status = "success"

	// StatusDegraded indicates ingestion completed on fallback artifacts.
	StatusDegraded Status = "degraded"

	// StatusDontKnow indicates QA returned the refusal sentinel.
	StatusDontKnow Status = "dont_know"

	// StatusError indicates the run failed.
	StatusError Status = "error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordIngest records a completed ingestion run.
func (m *Metrics) RecordIngest(status Status) {
	m.IngestTotal.WithLabelValues(string(status)).Inc()
}

// RecordQA records a completed question-answering run.
func (m *Metrics) RecordQA(status Status) {
	m.QATotal.WithLabelValues(string(status)).Inc()
}

// ObserveStage records the latency of one pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCriticFailure records a swallowed critic failure.
func (m *Metrics) RecordCriticFailure(kind string) {
	m.CriticFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordDisagreement records a persisted disagreement.
func (m *Metrics) RecordDisagreement(phase string) {
	m.DisagreementsTotal.WithLabelValues(phase).Inc()
}

// SetIndexedChunks updates the retrieval index size gauge.
func (m *Metrics) SetIndexedChunks(n int) {
	m.IndexedChunks.Set(float64(n))
}
