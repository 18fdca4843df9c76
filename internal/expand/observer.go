// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package expand

import (
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/pkg/metrics"
)

// SkipReason explains why a dequeued entry was dropped without a fetch.
type SkipReason string

const (
	SkipVisited SkipReason = "visited"
	SkipDepth   SkipReason = "depth"
)

// Observer receives traversal events. Calls are made from the coordinating
// goroutine only, so implementations need no locking.
type Observer interface {
	BatchStarted(size, remaining int)
	Skipped(e graph.FrontierEntry, reason SkipReason)
	// Fetching is called before an entry is fetched. index counts dequeued
	// entries so far and total counts every entry ever enqueued.
	Fetching(e graph.FrontierEntry, index, total int)
	FetchFailed(e graph.FrontierEntry, err error)
	Expanded(e graph.FrontierEntry, edges int)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) BatchStarted(int, int)                   {}
func (NopObserver) Skipped(graph.FrontierEntry, SkipReason) {}
func (NopObserver) Fetching(graph.FrontierEntry, int, int)  {}
func (NopObserver) FetchFailed(graph.FrontierEntry, error)  {}
func (NopObserver) Expanded(graph.FrontierEntry, int)       {}

type observers []Observer

func (o observers) BatchStarted(size, remaining int) {
	for _, obs := range o {
		obs.BatchStarted(size, remaining)
	}
}

func (o observers) Skipped(e graph.FrontierEntry, reason SkipReason) {
	for _, obs := range o {
		obs.Skipped(e, reason)
	}
}

func (o observers) Fetching(e graph.FrontierEntry, index, total int) {
	for _, obs := range o {
		obs.Fetching(e, index, total)
	}
}

func (o observers) FetchFailed(e graph.FrontierEntry, err error) {
	for _, obs := range o {
		obs.FetchFailed(e, err)
	}
}

func (o observers) Expanded(e graph.FrontierEntry, edges int) {
	for _, obs := range o {
		obs.Expanded(e, edges)
	}
}

// MetricsObserver records traversal events as Prometheus metrics.
type MetricsObserver struct {
	NopObserver
	M *metrics.Metrics
}

func (o MetricsObserver) BatchStarted(_, remaining int) {
	o.M.RecordBatch(remaining)
}

func (o MetricsObserver) Skipped(_ graph.FrontierEntry, reason SkipReason) {
	if reason == SkipDepth {
		o.M.RecordNode(metrics.StateSkippedDepth)
		return
	}
	o.M.RecordNode(metrics.StateSkippedVisited)
}

func (o MetricsObserver) FetchFailed(graph.FrontierEntry, error) {
	o.M.RecordNode(metrics.StateFailed)
}

func (o MetricsObserver) Expanded(_ graph.FrontierEntry, edges int) {
	o.M.RecordNode(metrics.StateExpanded)
	o.M.RecordEdges(edges)
}
