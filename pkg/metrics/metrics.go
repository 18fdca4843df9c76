// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package metrics holds the Prometheus collectors for a crawl run.
//
// Collectors are registered on a private registry so that several runs (and
// tests) can coexist in one process. Every method is safe on a nil
// *Metrics, which lets components accept an optional instance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medkg"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRetry    = "retry"
	OutcomeFailure  = "failure"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
)

// Node state label values.
const (
	StateExpanded       = "expanded"
	StateFailed         = "failed"
	StateSkippedVisited = "skipped_visited"
	StateSkippedDepth   = "skipped_depth"
)

// Metrics is the set of crawl collectors.
type Metrics struct {
	registry *prometheus.Registry

	// UpstreamRequests counts upstream calls by source (entity, sparql) and outcome.
	UpstreamRequests *prometheus.CounterVec
	// UpstreamDuration observes upstream call latency by source.
	UpstreamDuration *prometheus.HistogramVec
	// Nodes counts dequeued frontier entries by terminal state.
	Nodes *prometheus.CounterVec
	// Edges counts extracted edges.
	Edges prometheus.Counter
	// Batches counts processed frontier batches.
	Batches prometheus.Counter
	// Frontier is the frontier length after the last dequeue.
	Frontier prometheus.Gauge
	// MetadataEntries counts enriched entities returned by the metadata source.
	MetadataEntries prometheus.Counter
}

// New creates the collectors on a fresh registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream requests by source and outcome.",
			},
			[]string{"source", "outcome"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Upstream request latency by source.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		Nodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "crawl",
				Name:      "nodes_total",
				Help:      "Dequeued frontier entries by terminal state.",
			},
			[]string{"state"},
		),
		Edges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "edges_total",
			Help:      "Edges extracted from expanded nodes.",
		}),
		Batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "batches_total",
			Help:      "Frontier batches processed.",
		}),
		Frontier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "frontier_size",
			Help:      "Entries waiting in the frontier.",
		}),
		MetadataEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrich",
			Name:      "entities_total",
			Help:      "Entities returned with metadata by the enrichment query.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(source, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordNode counts a frontier entry reaching state.
func (m *Metrics) RecordNode(state string) {
	if m == nil {
		return
	}
	m.Nodes.WithLabelValues(state).Inc()
}

// RecordEdges adds n extracted edges.
func (m *Metrics) RecordEdges(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Edges.Add(float64(n))
}

// RecordBatch counts a batch and updates the frontier gauge.
func (m *Metrics) RecordBatch(frontier int) {
	if m == nil {
		return
	}
	m.Batches.Inc()
	m.Frontier.Set(float64(frontier))
}

// RecordMetadata adds n enriched entities.
func (m *Metrics) RecordMetadata(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MetadataEntries.Add(float64(n))
}
