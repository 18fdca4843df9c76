// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package expand grows a bounded subgraph outward from seed nodes.
//
// The Expander keeps a FIFO frontier of (node, depth) entries and a visited
// set. Entries are dequeued in batches; each batch is enriched with display
// metadata in one call before its entries are processed in order:
//
//   - an entry already visited, or at depth >= MaxDepth, is skipped;
//   - otherwise it is marked visited and fetched exactly once;
//   - a failed fetch drops the entry;
//   - a successful fetch yields edges for whitelisted item-valued claims,
//     and every edge target is enqueued at depth+1.
//
// Children are enqueued without checking the visited set or the depth
// bound; duplicates and too-deep entries are dropped when dequeued.
package expand

import (
	"context"
	"log/slog"

	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/pacing"
	"github.com/medkg-dev/medkg/internal/wikidata"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MaxBatchSize caps the number of entries dequeued per batch.
const MaxBatchSize = 50

// Fetcher retrieves the claims of one node. A non-nil error means the node
// has no data for this run.
type Fetcher interface {
	Fetch(ctx context.Context, id graph.NodeID) (*wikidata.Entity, error)
}

// Enricher resolves display metadata for a batch of ids. Missing ids are
// simply absent from the result.
type Enricher interface {
	EnrichBatch(ctx context.Context, ids []graph.NodeID) map[graph.NodeID]graph.Metadata
}

// Config bounds a traversal.
type Config struct {
	MaxDepth  int
	BatchSize int
	// Workers is the number of concurrent fetches within a batch.
	Workers int
	// PruneAtEnqueue drops children that are already too deep instead of
	// queueing them. The produced nodes and edges are unchanged.
	PruneAtEnqueue bool
}

// DefaultConfig returns the standard traversal bounds.
func DefaultConfig() Config {
	return Config{MaxDepth: 4, BatchSize: MaxBatchSize, Workers: 1}
}

// Validate checks that the bounds are usable.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return medkgerr.Errorf(medkgerr.CodeExpandConfigInvalid, "max depth must not be negative (got %d)", c.MaxDepth)
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return medkgerr.Errorf(medkgerr.CodeExpandConfigInvalid, "batch size must be between 1 and %d (got %d)", MaxBatchSize, c.BatchSize)
	}
	if c.Workers < 1 {
		return medkgerr.Errorf(medkgerr.CodeExpandConfigInvalid, "workers must be at least 1 (got %d)", c.Workers)
	}
	return nil
}

// Stats summarises one traversal.
type Stats struct {
	Dequeued       int  `json:"dequeued"`
	SkippedVisited int  `json:"skipped_visited"`
	SkippedDepth   int  `json:"skipped_depth"`
	Fetched        int  `json:"fetched"`
	Failed         int  `json:"failed"`
	Edges          int  `json:"edges"`
	Batches        int  `json:"batches"`
	Discovered     int  `json:"discovered"`
	Pruned         int  `json:"pruned"`
	Interrupted    bool `json:"interrupted"`
}

// Expander runs traversals. It holds no per-run state and may be reused.
type Expander struct {
	cfg       Config
	fetcher   Fetcher
	enricher  Enricher
	relations RelationFilter
	pacer     pacing.Pacer
	observers observers
	logger    *slog.Logger
}

// Option customises an Expander.
type Option func(*Expander)

// WithPacer sets the pacer consulted before every fetch.
func WithPacer(p pacing.Pacer) Option {
	return func(e *Expander) { e.pacer = p }
}

func WithObservers(obs ...Observer) Option {
	return func(e *Expander) { e.observers = append(e.observers, obs...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Expander) { e.logger = l }
}

// New builds an Expander.
func New(cfg Config, fetcher Fetcher, enricher Enricher, relations RelationFilter, opts ...Option) (*Expander, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || enricher == nil || relations == nil {
		return nil, medkgerr.New(medkgerr.CodeExpandConfigInvalid, "fetcher, enricher and relation filter are required")
	}

	e := &Expander{
		cfg:       cfg,
		fetcher:   fetcher,
		enricher:  enricher,
		relations: relations,
		pacer:     pacing.Unlimited{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// run holds the state of one traversal.
type run struct {
	*Expander
	sg       *graph.Subgraph
	frontier []graph.FrontierEntry
	visited  map[graph.NodeID]struct{}
	stats    Stats
}

type job struct {
	entry graph.FrontierEntry
	index int
}

type result struct {
	entity *wikidata.Entity
	err    error
	// interrupted is set when the run context ended before or during the fetch.
	interrupted bool
}

// Expand traverses outward from seeds and returns the subgraph. meta may be
// pre-populated (e.g. with seed labels) and becomes the subgraph's metadata
// table; nil starts empty. Expand never fails: fetch and enrichment errors
// are contained per node and per batch, and a cancelled ctx ends the run
// early with Stats.Interrupted set.
func (e *Expander) Expand(ctx context.Context, seeds []graph.NodeID, meta *graph.MetadataTable) (*graph.Subgraph, Stats) {
	r := &run{
		Expander: e,
		sg:       graph.NewSubgraph(meta),
		visited:  make(map[graph.NodeID]struct{}),
	}
	for _, id := range seeds {
		r.push(graph.FrontierEntry{ID: id, Depth: 0})
	}

	for len(r.frontier) > 0 {
		if ctx.Err() != nil {
			r.stats.Interrupted = true
			break
		}
		if !r.processBatch(ctx) {
			r.stats.Interrupted = true
			break
		}
	}

	if r.stats.Interrupted {
		e.logger.Warn("expansion interrupted",
			"expanded", r.stats.Fetched, "remaining", len(r.frontier))
	}
	return r.sg, r.stats
}

func (r *run) push(entry graph.FrontierEntry) {
	if r.cfg.PruneAtEnqueue && entry.Depth >= r.cfg.MaxDepth {
		r.stats.Pruned++
		return
	}
	r.frontier = append(r.frontier, entry)
	r.stats.Discovered++
}

// processBatch dequeues and processes one batch. It returns false when the
// run was interrupted.
func (r *run) processBatch(ctx context.Context) bool {
	n := min(r.cfg.BatchSize, len(r.frontier))
	batch := make([]graph.FrontierEntry, n)
	copy(batch, r.frontier[:n])
	r.frontier = r.frontier[n:]
	r.stats.Batches++
	r.observers.BatchStarted(n, len(r.frontier))

	ids := make([]graph.NodeID, n)
	for i, entry := range batch {
		ids[i] = entry.ID
	}
	r.sg.Metadata.Merge(r.enricher.EnrichBatch(ctx, ids))

	// Visit decisions depend only on the visited set and depth, never on
	// fetch results, so the whole batch can be decided up front.
	var jobs []job
	for _, entry := range batch {
		r.stats.Dequeued++
		if _, seen := r.visited[entry.ID]; seen {
			r.stats.SkippedVisited++
			r.observers.Skipped(entry, SkipVisited)
			continue
		}
		if entry.Depth >= r.cfg.MaxDepth {
			r.stats.SkippedDepth++
			r.observers.Skipped(entry, SkipDepth)
			continue
		}
		r.visited[entry.ID] = struct{}{}
		jobs = append(jobs, job{entry: entry, index: r.stats.Dequeued})
	}

	if r.cfg.Workers <= 1 {
		for _, j := range jobs {
			r.observers.Fetching(j.entry, j.index, r.stats.Discovered)
			if !r.apply(j, r.fetch(ctx, j.entry.ID)) {
				return false
			}
		}
		return true
	}

	results := make([]result, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for i, j := range jobs {
		r.observers.Fetching(j.entry, j.index, r.stats.Discovered)
		g.Go(func() error {
			results[i] = r.fetch(ctx, j.entry.ID)
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for i, j := range jobs {
		if !r.apply(j, results[i]) {
			ok = false
		}
	}
	return ok
}

func (r *run) fetch(ctx context.Context, id graph.NodeID) result {
	if err := r.pacer.Wait(ctx); err != nil {
		return result{err: err, interrupted: true}
	}
	ent, err := r.fetcher.Fetch(ctx, id)
	if err != nil && ctx.Err() != nil {
		return result{err: err, interrupted: true}
	}
	if err == nil && ent == nil {
		err = medkgerr.New(medkgerr.CodeFetchResponseInvalid, "fetcher returned no entity",
			medkgerr.FieldNodeID(string(id)))
	}
	return result{entity: ent, err: err}
}

// apply folds one fetch result into the subgraph. It returns false when
// the fetch was cut short by cancellation.
func (r *run) apply(j job, res result) bool {
	switch {
	case res.interrupted:
		return false
	case res.err != nil:
		r.stats.Failed++
		r.logger.Warn("entity fetch failed",
			"node_id", j.entry.ID, "depth", j.entry.Depth, "error", res.err)
		r.observers.FetchFailed(j.entry, res.err)
		return true
	}

	edges := ExtractEdges(j.entry.ID, res.entity, r.relations)
	r.sg.AddNode(&graph.Node{ID: j.entry.ID, Depth: j.entry.Depth, Payload: res.entity.Raw})
	r.sg.AddEdges(edges...)
	r.stats.Fetched++
	r.stats.Edges += len(edges)
	for _, edge := range edges {
		r.push(graph.FrontierEntry{ID: edge.Target, Depth: j.entry.Depth + 1})
	}
	r.observers.Expanded(j.entry, len(edges))
	return true
}
