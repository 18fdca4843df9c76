// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package analysis derives summary statistics from a finished subgraph.
package analysis

import (
	"slices"

	"github.com/medkg-dev/medkg/internal/graph"
)

// Labeler maps a relation id to its display label.
type Labeler interface {
	Label(id graph.RelationID) string
}

// Options tunes Analyze.
type Options struct {
	// InstanceOf is the relation used to group entities by type.
	InstanceOf graph.RelationID
	// TopK caps the number of hub entities returned.
	TopK int
}

// DefaultOptions returns P31 grouping and a top-20 hub list.
func DefaultOptions() Options {
	return Options{InstanceOf: "P31", TopK: 20}
}

// Connection is one outgoing relation of a source entity.
type Connection struct {
	Target     string            `json:"target"`
	Relation   string            `json:"relation"`
	Qualifiers []graph.Qualifier `json:"qualifiers"`
}

// PropertyCount is the usage of one relation.
type PropertyCount struct {
	ID    graph.RelationID `json:"id"`
	Label string           `json:"label"`
	Count int              `json:"count"`
}

// Hub is a highly connected entity.
type Hub struct {
	ID              graph.NodeID `json:"id"`
	Label           string       `json:"label"`
	Description     string       `json:"description"`
	ConnectionCount int          `json:"connection_count"`
}

// Analysis is the read-only summary of a subgraph.
type Analysis struct {
	EntityCount          int                      `json:"entity_count"`
	TripleCount          int                      `json:"triple_count"`
	PropertyDistribution map[graph.RelationID]int `json:"property_distribution"`
	// PropertyUsage lists relations in order of first use.
	PropertyUsage      []PropertyCount         `json:"property_usage"`
	EntityTypes        map[string][]string     `json:"entity_types"`
	DiseaseConnections map[string][]Connection `json:"disease_connections"`
	HubEntities        []Hub                   `json:"hub_entities"`
}

// Analyze summarises sg in one pass over its edges. Labels come from the
// subgraph's metadata table, falling back to the raw id. Hubs are ranked by
// edge-endpoint occurrences, ties keeping first-seen order.
func Analyze(sg *graph.Subgraph, relations Labeler, opts Options) *Analysis {
	if opts.InstanceOf == "" {
		opts.InstanceOf = DefaultOptions().InstanceOf
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}

	a := &Analysis{
		PropertyDistribution: make(map[graph.RelationID]int),
		PropertyUsage:        []PropertyCount{},
		EntityTypes:          make(map[string][]string),
		DiseaseConnections:   make(map[string][]Connection),
		HubEntities:          []Hub{},
	}
	if sg == nil {
		return a
	}
	a.EntityCount = len(sg.Nodes)
	a.TripleCount = len(sg.Edges)

	usageIndex := make(map[graph.RelationID]int)
	hubIndex := make(map[graph.NodeID]int)
	var hubs []Hub

	tally := func(id graph.NodeID) {
		i, ok := hubIndex[id]
		if !ok {
			m := sg.Metadata.Resolve(id)
			i = len(hubs)
			hubIndex[id] = i
			hubs = append(hubs, Hub{ID: id, Label: m.Label, Description: m.Description})
		}
		hubs[i].ConnectionCount++
	}

	for _, e := range sg.Edges {
		a.PropertyDistribution[e.Relation]++
		if i, ok := usageIndex[e.Relation]; ok {
			a.PropertyUsage[i].Count++
		} else {
			usageIndex[e.Relation] = len(a.PropertyUsage)
			a.PropertyUsage = append(a.PropertyUsage, PropertyCount{
				ID: e.Relation, Label: relations.Label(e.Relation), Count: 1,
			})
		}

		sourceLabel := sg.Metadata.Resolve(e.Source).Label
		targetLabel := sg.Metadata.Resolve(e.Target).Label

		if e.Relation == opts.InstanceOf {
			a.EntityTypes[targetLabel] = append(a.EntityTypes[targetLabel], sourceLabel)
		}

		qualifiers := e.Qualifiers
		if qualifiers == nil {
			qualifiers = []graph.Qualifier{}
		}
		a.DiseaseConnections[sourceLabel] = append(a.DiseaseConnections[sourceLabel], Connection{
			Target:     targetLabel,
			Relation:   relations.Label(e.Relation),
			Qualifiers: qualifiers,
		})

		tally(e.Source)
		tally(e.Target)
	}

	slices.SortStableFunc(hubs, func(x, y Hub) int {
		return y.ConnectionCount - x.ConnectionCount
	})
	if len(hubs) > opts.TopK {
		hubs = hubs[:opts.TopK]
	}
	if hubs != nil {
		a.HubEntities = hubs
	}
	return a
}
