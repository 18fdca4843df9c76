// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package expand_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/wikidata"
)

type relSet map[graph.RelationID]bool

func (s relSet) Contains(id graph.RelationID) bool { return s[id] }

var allowR1 = relSet{"R1": true}

func itemSnak(prop, target string) wikidata.Snak {
	return wikidata.Snak{
		Property: prop,
		Datatype: wikidata.DatatypeItem,
		DataValue: &wikidata.DataValue{
			Type:  "wikibase-entityid",
			Value: json.RawMessage(fmt.Sprintf(`{"entity-type":"item","id":%q}`, target)),
		},
	}
}

// entity builds an entity whose claims are (relation, target) pairs.
func entity(id string, pairs ...string) *wikidata.Entity {
	ent := &wikidata.Entity{ID: id, Raw: json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))}
	for i := 0; i+1 < len(pairs); i += 2 {
		ent.Claims.Set(pairs[i], wikidata.Claim{Mainsnak: itemSnak(pairs[i], pairs[i+1])})
	}
	return ent
}

// fakeFetcher serves entities from a fixed table and records every call.
type fakeFetcher struct {
	mu       sync.Mutex
	entities map[graph.NodeID]*wikidata.Entity
	failing  map[graph.NodeID]bool
	calls    map[graph.NodeID]int
	order    []graph.NodeID
	onFetch  func(id graph.NodeID)
}

func newFakeFetcher(entities ...*wikidata.Entity) *fakeFetcher {
	f := &fakeFetcher{
		entities: make(map[graph.NodeID]*wikidata.Entity),
		failing:  make(map[graph.NodeID]bool),
		calls:    make(map[graph.NodeID]int),
	}
	for _, e := range entities {
		f.entities[graph.NodeID(e.ID)] = e
	}
	return f
}

var errUpstream = errors.New("upstream unavailable")

func (f *fakeFetcher) Fetch(_ context.Context, id graph.NodeID) (*wikidata.Entity, error) {
	f.mu.Lock()
	f.calls[id]++
	f.order = append(f.order, id)
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if f.failing[id] {
		return nil, errUpstream
	}
	if ent, ok := f.entities[id]; ok {
		return ent, nil
	}
	return entity(string(id)), nil
}

// fakeEnricher returns metadata from a fixed table and records batches.
type fakeEnricher struct {
	mu      sync.Mutex
	known   map[graph.NodeID]graph.Metadata
	batches [][]graph.NodeID
}

func (f *fakeEnricher) EnrichBatch(_ context.Context, ids []graph.NodeID) map[graph.NodeID]graph.Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]graph.NodeID(nil), ids...))

	out := make(map[graph.NodeID]graph.Metadata)
	for _, id := range ids {
		if m, ok := f.known[id]; ok {
			out[id] = m
		}
	}
	return out
}

type event struct {
	kind  string
	id    graph.NodeID
	depth int
	n     int
}

type recordingObserver struct {
	events []event
}

func (o *recordingObserver) BatchStarted(size, _ int) {
	o.events = append(o.events, event{kind: "batch", n: size})
}

func (o *recordingObserver) Skipped(e graph.FrontierEntry, reason expand.SkipReason) {
	o.events = append(o.events, event{kind: "skip:" + string(reason), id: e.ID, depth: e.Depth})
}

func (o *recordingObserver) Fetching(e graph.FrontierEntry, index, _ int) {
	o.events = append(o.events, event{kind: "fetching", id: e.ID, depth: e.Depth, n: index})
}

func (o *recordingObserver) FetchFailed(e graph.FrontierEntry, _ error) {
	o.events = append(o.events, event{kind: "failed", id: e.ID, depth: e.Depth})
}

func (o *recordingObserver) Expanded(e graph.FrontierEntry, edges int) {
	o.events = append(o.events, event{kind: "expanded", id: e.ID, depth: e.Depth, n: edges})
}

type countingPacer struct {
	mu    sync.Mutex
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	return ctx.Err()
}

func edgeTriples(edges []graph.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = fmt.Sprintf("%s-%s->%s", e.Source, e.Relation, e.Target)
	}
	return out
}
