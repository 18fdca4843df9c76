// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package snapshot builds, writes and reads the single output document of a
// crawl run.
package snapshot

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/medkg-dev/medkg/internal/analysis"
	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/pkg/health"
)

// Document is the serialized result of a run.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Subgraph Subgraph `json:"subgraph"`
}

// Metadata describes how the subgraph was produced.
type Metadata struct {
	RunID          string                    `json:"run_id"`
	GeneratedAt    time.Time                 `json:"generated_at"`
	SeedConditions map[graph.NodeID]string   `json:"seed_conditions"`
	Seeds          []graph.NodeID            `json:"seeds"`
	MaxDepth       int                       `json:"max_depth"`
	Analysis       *analysis.Analysis        `json:"analysis"`
	Stats          expand.Stats              `json:"stats"`
	UpstreamHealth map[string]health.Metrics `json:"upstream_health,omitempty"`
}

// Subgraph is the serialized node and edge set.
type Subgraph struct {
	Entities map[graph.NodeID]EntityRecord `json:"entities"`
	Triples  []Triple                      `json:"triples"`
}

// EntityRecord is one expanded node.
type EntityRecord struct {
	Data     json.RawMessage `json:"data"`
	Metadata graph.Metadata  `json:"metadata"`
	Depth    int             `json:"depth"`
}

// Endpoint is one end of a triple.
type Endpoint struct {
	ID       graph.NodeID   `json:"id"`
	Metadata graph.Metadata `json:"metadata"`
}

// Predicate is the relation of a triple with its catalog label.
type Predicate struct {
	ID    graph.RelationID `json:"id"`
	Label string           `json:"label"`
}

// Triple is one serialized edge.
type Triple struct {
	Source     Endpoint          `json:"source"`
	Predicate  Predicate         `json:"predicate"`
	Target     Endpoint          `json:"target"`
	Qualifiers []graph.Qualifier `json:"qualifiers"`
}

// Build assembles a document from sg. Node labels are resolved from the
// subgraph's metadata table at this point, so every endpoint carries
// metadata even when enrichment missed it.
func Build(sg *graph.Subgraph, relations analysis.Labeler, meta Metadata) *Document {
	doc := &Document{
		Metadata: meta,
		Subgraph: Subgraph{
			Entities: make(map[graph.NodeID]EntityRecord, len(sg.Nodes)),
			Triples:  make([]Triple, 0, len(sg.Edges)),
		},
	}
	if doc.Metadata.SeedConditions == nil {
		doc.Metadata.SeedConditions = map[graph.NodeID]string{}
	}
	if doc.Metadata.Seeds == nil {
		doc.Metadata.Seeds = []graph.NodeID{}
	}

	for _, id := range sg.Order {
		n := sg.Nodes[id]
		data := n.Payload
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		doc.Subgraph.Entities[id] = EntityRecord{
			Data:     data,
			Metadata: sg.Metadata.Resolve(id),
			Depth:    n.Depth,
		}
	}

	for _, e := range sg.Edges {
		qualifiers := e.Qualifiers
		if qualifiers == nil {
			qualifiers = []graph.Qualifier{}
		}
		doc.Subgraph.Triples = append(doc.Subgraph.Triples, Triple{
			Source:     Endpoint{ID: e.Source, Metadata: sg.Metadata.Resolve(e.Source)},
			Predicate:  Predicate{ID: e.Relation, Label: relations.Label(e.Relation)},
			Target:     Endpoint{ID: e.Target, Metadata: sg.Metadata.Resolve(e.Target)},
			Qualifiers: qualifiers,
		})
	}
	return doc
}

// ToSubgraph rebuilds an in-memory subgraph from the document, including a
// metadata table populated from entity and triple endpoint metadata.
// Nodes are ordered by depth, then id.
func (d *Document) ToSubgraph() *graph.Subgraph {
	table := graph.NewMetadataTable()
	for _, t := range d.Subgraph.Triples {
		table.Put(t.Source.ID, t.Source.Metadata)
		table.Put(t.Target.ID, t.Target.Metadata)
	}
	for id, rec := range d.Subgraph.Entities {
		table.Put(id, rec.Metadata)
	}

	sg := graph.NewSubgraph(table)
	ids := make([]graph.NodeID, 0, len(d.Subgraph.Entities))
	for id := range d.Subgraph.Entities {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b graph.NodeID) int {
		da, db := d.Subgraph.Entities[a].Depth, d.Subgraph.Entities[b].Depth
		if da != db {
			return da - db
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	for _, id := range ids {
		rec := d.Subgraph.Entities[id]
		sg.AddNode(&graph.Node{ID: id, Depth: rec.Depth, Payload: rec.Data})
	}

	for _, t := range d.Subgraph.Triples {
		sg.AddEdges(graph.Edge{
			Source:     t.Source.ID,
			Relation:   t.Predicate.ID,
			Target:     t.Target.ID,
			Qualifiers: t.Qualifiers,
		})
	}
	return sg
}
