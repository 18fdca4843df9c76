// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package expand

import (
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/wikidata"
)

// RelationFilter decides which relations become edges.
type RelationFilter interface {
	Contains(id graph.RelationID) bool
}

// ExtractEdges turns the item-valued claims of ent whose property passes
// filter into edges from source, in document order. Qualifiers without a
// value are dropped.
func ExtractEdges(source graph.NodeID, ent *wikidata.Entity, filter RelationFilter) []graph.Edge {
	if ent == nil {
		return nil
	}

	var edges []graph.Edge
	for _, prop := range ent.Claims.Keys {
		rel := graph.RelationID(prop)
		if !filter.Contains(rel) {
			continue
		}
		for _, claim := range ent.Claims.Values[prop] {
			target, ok := claim.Mainsnak.ItemID()
			if !ok {
				continue
			}
			edges = append(edges, graph.Edge{
				Source:     source,
				Relation:   rel,
				Target:     target,
				Qualifiers: qualifiers(claim),
			})
		}
	}
	return edges
}

func qualifiers(c wikidata.Claim) []graph.Qualifier {
	var out []graph.Qualifier
	for _, prop := range c.Qualifiers.Keys {
		for _, snak := range c.Qualifiers.Values[prop] {
			if snak.DataValue == nil {
				continue
			}
			out = append(out, graph.Qualifier{
				Property: graph.RelationID(prop),
				Value:    snak.DataValue.Value,
			})
		}
	}
	return out
}
