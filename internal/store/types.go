// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package store

import (
	"encoding/json"
	"time"
)

// Run is the single run record of a snapshot.
type Run struct {
	ID          string
	GeneratedAt time.Time
	MaxDepth    int
	Seeds       []string
	// Analysis is the encoded analysis document, stored verbatim.
	Analysis json.RawMessage
}

// Entity is a node of the snapshot. Referenced-only entities carry labels
// but no payload.
type Entity struct {
	ID          string
	Label       string
	Description string
	Depth       int
	Expanded    bool
	Data        json.RawMessage
}

// Qualifier is a stored claim qualifier.
type Qualifier struct {
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// Relationship is one stored triple. Seq preserves the original edge order.
type Relationship struct {
	Seq        int64
	FromID     string
	ToID       string
	Type       string
	Label      string
	Qualifiers []Qualifier
}

// Relationship directions accepted by RelOpts.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionBoth     = "both"
)

// RelOpts specifies filters for listing relationships from an entity.
type RelOpts struct {
	Type      string
	Direction string // "outgoing", "incoming", "both"
	Limit     int
}

// TraversalFilter constrains graph traversal operations.
type TraversalFilter struct {
	RelationshipTypes []string
	MaxDepth          int
}

// Graph is a traversal result. Entities are ordered by hop distance from the
// start, relationships by Seq.
type Graph struct {
	Entities      []*Entity
	Hops          map[string]int
	Relationships []*Relationship
}
