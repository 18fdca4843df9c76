// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package graph holds the identifier-keyed subgraph model produced by a crawl.
// Nodes and edges reference each other only through NodeID, so cycles in the
// upstream graph need no special handling.
package graph

import "encoding/json"

// NodeID is an opaque identifier from the source graph namespace (e.g. "Q199804").
type NodeID string

// RelationID is an opaque relation identifier (e.g. "P780").
type RelationID string

// Metadata is the display information attached to a node.
type Metadata struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Qualifier is an auxiliary property/value pair carried by a claim.
// Value holds the raw datavalue value exactly as the source returned it.
type Qualifier struct {
	Property RelationID      `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// Edge is a directed relation between two nodes. Edges are never mutated
// after extraction and the edge sequence may contain duplicates.
type Edge struct {
	Source     NodeID
	Relation   RelationID
	Target     NodeID
	Qualifiers []Qualifier
}

// FrontierEntry is a node waiting to be expanded at a given depth.
type FrontierEntry struct {
	ID    NodeID
	Depth int
}

// Node is a successfully fetched node and its raw relation payload.
type Node struct {
	ID      NodeID
	Depth   int
	Payload json.RawMessage
}

// Subgraph is the terminal output of one expansion run.
type Subgraph struct {
	// Nodes maps every expanded node to its payload.
	Nodes map[NodeID]*Node
	// Order lists node ids in expansion order.
	Order []NodeID
	Edges []Edge
	// Metadata resolves display labels for any node id seen during the run.
	Metadata *MetadataTable
}

// NewSubgraph returns an empty subgraph with an initialised metadata table.
func NewSubgraph(meta *MetadataTable) *Subgraph {
	if meta == nil {
		meta = NewMetadataTable()
	}
	return &Subgraph{
		Nodes:    make(map[NodeID]*Node),
		Metadata: meta,
	}
}

// AddNode records an expanded node. Re-adding an id keeps the first entry.
func (s *Subgraph) AddNode(n *Node) {
	if _, ok := s.Nodes[n.ID]; ok {
		return
	}
	s.Nodes[n.ID] = n
	s.Order = append(s.Order, n.ID)
}

// AddEdges appends edges in order.
func (s *Subgraph) AddEdges(edges ...Edge) {
	s.Edges = append(s.Edges, edges...)
}
