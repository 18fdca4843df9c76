// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package store persists a finished crawl as a queryable triple snapshot.
package store

import "context"

// SnapshotStore holds one crawl run: its run record, every entity seen
// (expanded or only referenced) and the ordered triple sequence.
type SnapshotStore interface {
	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context) (*Run, error)

	PutEntities(ctx context.Context, entities []*Entity) error
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// PutRelationships appends relationships in order. Duplicates are kept.
	PutRelationships(ctx context.Context, rels []*Relationship) error
	GetRelationships(ctx context.Context, entityID string, opts RelOpts) ([]*Relationship, error)

	// Traverse returns every entity reachable from startID within depth
	// hops, following relationships in either direction.
	Traverse(ctx context.Context, startID string, depth int, filter TraversalFilter) (*Graph, error)

	Close() error
}
