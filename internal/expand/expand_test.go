// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package expand_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/wikidata"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExpander(t *testing.T, cfg expand.Config, f expand.Fetcher, e expand.Enricher, opts ...expand.Option) *expand.Expander {
	t.Helper()
	x, err := expand.New(cfg, f, e, allowR1, opts...)
	require.NoError(t, err)
	return x
}

func config(maxDepth int) expand.Config {
	cfg := expand.DefaultConfig()
	cfg.MaxDepth = maxDepth
	return cfg
}

func TestExpand_DepthBound(t *testing.T) {
	fetcher := newFakeFetcher(entity("A", "R1", "B"), entity("B", "R1", "C"))
	x := newExpander(t, config(1), fetcher, &fakeEnricher{})

	sg, stats := x.Expand(context.Background(), []graph.NodeID{"A"}, nil)

	assert.Equal(t, []graph.NodeID{"A"}, fetcher.order, "B sits at depth 1 and is skipped at dequeue")
	assert.Equal(t, []graph.NodeID{"A"}, sg.Order)
	assert.Equal(t, []string{"A-R1->B"}, edgeTriples(sg.Edges))
	assert.Equal(t, expand.Stats{
		Dequeued:     2,
		SkippedDepth: 1,
		Fetched:      1,
		Edges:        1,
		Batches:      2,
		Discovered:   2,
	}, stats)
}

func TestExpand_FailureIsolation(t *testing.T) {
	fetcher := newFakeFetcher(entity("X", "R1", "A", "R1", "Y"))
	fetcher.failing["A"] = true
	obs := &recordingObserver{}
	x := newExpander(t, config(4), fetcher, &fakeEnricher{}, expand.WithObservers(obs))

	sg, stats := x.Expand(context.Background(), []graph.NodeID{"A", "X"}, nil)

	assert.Equal(t, 1, fetcher.calls["A"], "a failed node is never retried by the expander")
	assert.Equal(t, []graph.NodeID{"X", "Y"}, sg.Order)
	assert.Equal(t, []string{"X-R1->A", "X-R1->Y"}, edgeTriples(sg.Edges))
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.SkippedVisited)
	assert.False(t, stats.Interrupted)
	assert.Contains(t, obs.events, event{kind: "failed", id: "A"})
}

func TestExpand_NoDuplicateFetch(t *testing.T) {
	fetcher := newFakeFetcher(
		entity("A", "R1", "B", "R1", "A", "R1", "C"),
		entity("B", "R1", "A", "R1", "C"),
		entity("C", "R1", "A", "R1", "B"),
	)
	x := newExpander(t, config(10), fetcher, &fakeEnricher{})

	sg, stats := x.Expand(context.Background(), []graph.NodeID{"A", "B", "A"}, nil)

	for id, n := range fetcher.calls {
		assert.Equal(t, 1, n, "node %s fetched more than once", id)
	}
	assert.Equal(t, []graph.NodeID{"A", "B", "C"}, sg.Order)
	assert.Len(t, sg.Edges, 7, "duplicate and self edges are kept")
	assert.Equal(t, stats.Dequeued, stats.Fetched+stats.SkippedVisited+stats.SkippedDepth+stats.Failed)
	assert.Equal(t, stats.Discovered, stats.Dequeued)
}

func TestExpand_RelationFilter(t *testing.T) {
	ent := entity("A", "R1", "B", "R2", "C")
	ent.Claims.Set("R1", wikidata.Claim{Mainsnak: wikidata.Snak{
		Property:  "R1",
		Datatype:  "string",
		DataValue: &wikidata.DataValue{Type: "string", Value: []byte(`"D"`)},
	}})
	ent.Claims.Set("R1", wikidata.Claim{Mainsnak: wikidata.Snak{Property: "R1", Datatype: wikidata.DatatypeItem}})
	fetcher := newFakeFetcher(ent)
	x := newExpander(t, config(1), fetcher, &fakeEnricher{})

	sg, _ := x.Expand(context.Background(), []graph.NodeID{"A"}, nil)

	assert.Equal(t, []string{"A-R1->B"}, edgeTriples(sg.Edges))
}

func TestExpand_EnrichesEveryBatchEntry(t *testing.T) {
	enricher := &fakeEnricher{known: map[graph.NodeID]graph.Metadata{
		"A": {Label: "alpha", Description: "first"},
	}}
	fetcher := newFakeFetcher(entity("A", "R1", "B"))
	meta := graph.NewMetadataTable()
	meta.Put("A", graph.Metadata{Label: "seed A"})
	x := newExpander(t, config(1), fetcher, enricher)

	sg, _ := x.Expand(context.Background(), []graph.NodeID{"A"}, meta)

	assert.Equal(t, [][]graph.NodeID{{"A"}, {"B"}}, enricher.batches, "skipped entries are enriched too")
	assert.Same(t, meta, sg.Metadata)
	assert.Equal(t, graph.Metadata{Label: "alpha", Description: "first"}, sg.Metadata.Resolve("A"))
	assert.Equal(t, graph.Metadata{Label: "B"}, sg.Metadata.Resolve("B"))
}

func TestExpand_BatchesFIFO(t *testing.T) {
	seeds := make([]graph.NodeID, 0, 120)
	for i := range 120 {
		seeds = append(seeds, graph.NodeID(fmt.Sprintf("N%03d", i)))
	}
	enricher := &fakeEnricher{}
	fetcher := newFakeFetcher()
	x := newExpander(t, config(1), fetcher, enricher)

	_, stats := x.Expand(context.Background(), seeds, nil)

	require.Len(t, enricher.batches, 3)
	assert.Len(t, enricher.batches[0], 50)
	assert.Len(t, enricher.batches[1], 50)
	assert.Len(t, enricher.batches[2], 20)
	assert.Equal(t, seeds[50], enricher.batches[1][0])
	assert.Equal(t, seeds, fetcher.order)
	assert.Equal(t, 3, stats.Batches)
}

func TestExpand_SmallBatchSize(t *testing.T) {
	enricher := &fakeEnricher{}
	fetcher := newFakeFetcher(entity("A", "R1", "B", "R1", "C"))
	cfg := config(2)
	cfg.BatchSize = 1
	x := newExpander(t, cfg, fetcher, enricher)

	sg, _ := x.Expand(context.Background(), []graph.NodeID{"A"}, nil)

	assert.Equal(t, [][]graph.NodeID{{"A"}, {"B"}, {"C"}}, enricher.batches)
	assert.Equal(t, []graph.NodeID{"A", "B", "C"}, sg.Order)
}

func TestExpand_EmptySeeds(t *testing.T) {
	enricher := &fakeEnricher{}
	x := newExpander(t, config(4), newFakeFetcher(), enricher)

	sg, stats := x.Expand(context.Background(), nil, nil)

	assert.Empty(t, sg.Nodes)
	assert.Empty(t, sg.Edges)
	assert.NotNil(t, sg.Metadata)
	assert.Empty(t, enricher.batches)
	assert.Equal(t, expand.Stats{}, stats)
}

func TestExpand_PacesEveryFetch(t *testing.T) {
	pacer := &countingPacer{}
	fetcher := newFakeFetcher(entity("A", "R1", "B", "R1", "C"))
	x := newExpander(t, config(2), fetcher, &fakeEnricher{}, expand.WithPacer(pacer))

	x.Expand(context.Background(), []graph.NodeID{"A"}, nil)

	assert.Equal(t, 3, pacer.waits)
	assert.Len(t, fetcher.order, 3)
}

func TestExpand_ObserverEvents(t *testing.T) {
	fetcher := newFakeFetcher(entity("A", "R1", "B"), entity("B", "R1", "A"))
	obs := &recordingObserver{}
	x := newExpander(t, config(2), fetcher, &fakeEnricher{}, expand.WithObservers(obs))

	x.Expand(context.Background(), []graph.NodeID{"A"}, nil)

	assert.Equal(t, []event{
		{kind: "batch", n: 1},
		{kind: "fetching", id: "A", n: 1},
		{kind: "expanded", id: "A", n: 1},
		{kind: "batch", n: 1},
		{kind: "fetching", id: "B", depth: 1, n: 2},
		{kind: "expanded", id: "B", depth: 1, n: 1},
		{kind: "batch", n: 1},
		{kind: "skip:visited", id: "A", depth: 2},
	}, obs.events)
}

func TestExpand_PruneAtEnqueueKeepsOutput(t *testing.T) {
	graphData := []*wikidata.Entity{
		entity("A", "R1", "B", "R1", "C"),
		entity("B", "R1", "D", "R1", "A"),
		entity("C", "R1", "D"),
		entity("D", "R1", "E"),
	}
	run := func(prune bool) (*graph.Subgraph, expand.Stats) {
		cfg := config(2)
		cfg.PruneAtEnqueue = prune
		x := newExpander(t, cfg, newFakeFetcher(graphData...), &fakeEnricher{})
		return x.Expand(context.Background(), []graph.NodeID{"A"}, nil)
	}

	plain, plainStats := run(false)
	pruned, prunedStats := run(true)

	assert.Equal(t, plain.Order, pruned.Order)
	assert.Equal(t, plain.Edges, pruned.Edges)
	assert.Zero(t, plainStats.Pruned)
	assert.Positive(t, prunedStats.Pruned)
	assert.Less(t, prunedStats.Discovered, plainStats.Discovered)
	assert.Zero(t, prunedStats.SkippedDepth)
}

func TestExpand_WorkersMatchSequential(t *testing.T) {
	var entities []*wikidata.Entity
	for i := range 40 {
		id := fmt.Sprintf("N%d", i)
		entities = append(entities, entity(id,
			"R1", fmt.Sprintf("N%d", (i*7+3)%40),
			"R1", fmt.Sprintf("N%d", (i*11+5)%40),
			"R2", fmt.Sprintf("N%d", (i+1)%40),
		))
	}
	run := func(workers int) (*graph.Subgraph, expand.Stats, *fakeFetcher) {
		cfg := config(3)
		cfg.Workers = workers
		cfg.BatchSize = 7
		f := newFakeFetcher(entities...)
		f.failing["N5"] = true
		x := newExpander(t, cfg, f, &fakeEnricher{}, expand.WithPacer(&countingPacer{}))
		sg, stats := x.Expand(context.Background(), []graph.NodeID{"N0", "N1"}, nil)
		return sg, stats, f
	}

	seqGraph, seqStats, seqFetcher := run(1)
	parGraph, parStats, parFetcher := run(4)

	assert.Equal(t, seqGraph.Order, parGraph.Order)
	assert.Equal(t, seqGraph.Edges, parGraph.Edges)
	assert.Equal(t, seqStats, parStats)
	assert.Equal(t, seqFetcher.calls, parFetcher.calls)
	for id, n := range parFetcher.calls {
		assert.Equal(t, 1, n, "node %s fetched more than once", id)
	}
}

func TestExpand_CancellationReturnsPartialSubgraph(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := newFakeFetcher(entity("A", "R1", "B"), entity("B", "R1", "C"))
	fetcher.onFetch = func(id graph.NodeID) {
		if id == "A" {
			cancel()
		}
	}
	x := newExpander(t, config(4), fetcher, &fakeEnricher{})

	sg, stats := x.Expand(ctx, []graph.NodeID{"A", "X"}, nil)

	assert.True(t, stats.Interrupted)
	assert.Equal(t, []graph.NodeID{"A"}, fetcher.order, "X is never fetched once the run is cancelled")
	assert.Equal(t, []graph.NodeID{"A"}, sg.Order, "completed fetches are kept")
	assert.Equal(t, []string{"A-R1->B"}, edgeTriples(sg.Edges))
}

func TestExpand_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enricher := &fakeEnricher{}
	fetcher := newFakeFetcher()
	x := newExpander(t, config(4), fetcher, enricher)

	sg, stats := x.Expand(ctx, []graph.NodeID{"A"}, nil)

	assert.True(t, stats.Interrupted)
	assert.Empty(t, sg.Nodes)
	assert.Empty(t, fetcher.order)
	assert.Empty(t, enricher.batches)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  expand.Config
	}{
		{name: "negative depth", cfg: expand.Config{MaxDepth: -1, BatchSize: 50, Workers: 1}},
		{name: "zero batch", cfg: expand.Config{MaxDepth: 4, BatchSize: 0, Workers: 1}},
		{name: "batch too large", cfg: expand.Config{MaxDepth: 4, BatchSize: 51, Workers: 1}},
		{name: "zero workers", cfg: expand.Config{MaxDepth: 4, BatchSize: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expand.New(tt.cfg, newFakeFetcher(), &fakeEnricher{}, allowR1)
			require.Error(t, err)
			assert.True(t, medkgerr.HasCode(err, medkgerr.CodeExpandConfigInvalid))
		})
	}

	_, err := expand.New(expand.DefaultConfig(), nil, &fakeEnricher{}, allowR1)
	assert.Error(t, err)
}
