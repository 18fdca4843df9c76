// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/medkg-dev/medkg/internal/store"
	"github.com/medkg-dev/medkg/internal/store/sqlite"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relTriples(rels []*store.Relationship) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.FromID+"-"+r.Type+"->"+r.ToID)
	}
	return out
}

func TestSnapshotStore_Run(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.GetRun(ctx)
	require.Error(t, err)
	assert.True(t, medkgerr.IsNotFound(err))

	generated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutRun(ctx, &store.Run{
		ID:          "run-1",
		GeneratedAt: generated,
		MaxDepth:    4,
		Seeds:       []string{"Q1", "Q2"},
		Analysis:    json.RawMessage(`{"entity_count":2}`),
	}))
	require.NoError(t, s.PutRun(ctx, &store.Run{ID: "run-2", GeneratedAt: generated, MaxDepth: 2}))

	got, err := s.GetRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.ID, "a snapshot holds a single run")
	assert.True(t, generated.Equal(got.GeneratedAt))
	assert.Equal(t, 2, got.MaxDepth)
	assert.Empty(t, got.Seeds)
	assert.Nil(t, got.Analysis)
}

func TestSnapshotStore_Entities(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.PutEntities(ctx, []*store.Entity{
		{ID: "Q1", Label: "asthma", Description: "chronic disease", Expanded: true, Data: json.RawMessage(`{"id":"Q1"}`)},
		{ID: "Q2", Label: "wheeze", Depth: 1},
	}))

	got, err := s.GetEntity(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, "asthma", got.Label)
	assert.Equal(t, "chronic disease", got.Description)
	assert.True(t, got.Expanded)
	assert.JSONEq(t, `{"id":"Q1"}`, string(got.Data))

	ref, err := s.GetEntity(ctx, "Q2")
	require.NoError(t, err)
	assert.False(t, ref.Expanded)
	assert.Equal(t, 1, ref.Depth)
	assert.Nil(t, ref.Data)

	// Upsert replaces.
	require.NoError(t, s.PutEntities(ctx, []*store.Entity{{ID: "Q2", Label: "wheezing", Depth: 1}}))
	ref, err = s.GetEntity(ctx, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "wheezing", ref.Label)

	_, err = s.GetEntity(ctx, "Q404")
	require.Error(t, err)
	assert.Equal(t, medkgerr.CodeStoreEntityNotFound, medkgerr.CodeOf(err))
	assert.Equal(t, "Q404", medkgerr.FieldsOf(err)["node_id"])
}

func TestSnapshotStore_PutEntitiesRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	err := s.PutEntities(ctx, []*store.Entity{{ID: "Q1"}, {ID: ""}})
	require.Error(t, err)
	assert.True(t, medkgerr.IsInvalidInput(err))

	_, err = s.GetEntity(ctx, "Q1")
	assert.True(t, medkgerr.IsNotFound(err), "nothing from a rejected batch is written")
}

func TestSnapshotStore_RelationshipsKeepOrderAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.PutEntities(ctx, []*store.Entity{{ID: "A"}, {ID: "B"}}))

	rels := []*store.Relationship{
		{FromID: "A", ToID: "B", Type: "P1", Label: "one", Qualifiers: []store.Qualifier{
			{Property: "P580", Value: json.RawMessage(`{"time":"+2001"}`)},
		}},
		{FromID: "A", ToID: "B", Type: "P1", Label: "one"},
	}
	require.NoError(t, s.PutRelationships(ctx, rels))
	assert.Less(t, rels[0].Seq, rels[1].Seq)

	got, err := s.GetRelationships(ctx, "A", store.RelOpts{Direction: store.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rels[0].Seq, got[0].Seq)
	require.Len(t, got[0].Qualifiers, 1)
	assert.Equal(t, "P580", got[0].Qualifiers[0].Property)
	assert.JSONEq(t, `{"time":"+2001"}`, string(got[0].Qualifiers[0].Value))
	assert.Empty(t, got[1].Qualifiers)
}

func TestSnapshotStore_GetRelationships(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	chain(t, s)

	tests := []struct {
		name string
		id   string
		opts store.RelOpts
		want []string
	}{
		{name: "both directions", id: "B", opts: store.RelOpts{}, want: []string{"A-P1->B", "B-P2->C", "B-P2->A"}},
		{name: "outgoing", id: "B", opts: store.RelOpts{Direction: store.DirectionOutgoing}, want: []string{"B-P2->C", "B-P2->A"}},
		{name: "incoming", id: "B", opts: store.RelOpts{Direction: store.DirectionIncoming}, want: []string{"A-P1->B"}},
		{name: "type filter", id: "B", opts: store.RelOpts{Type: "P1"}, want: []string{"A-P1->B"}},
		{name: "limit", id: "B", opts: store.RelOpts{Limit: 1}, want: []string{"A-P1->B"}},
		{name: "no relations", id: "D", opts: store.RelOpts{Direction: store.DirectionOutgoing}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetRelationships(ctx, tt.id, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relTriples(got))
		})
	}
}

func TestSnapshotStore_GetRelationshipsErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	chain(t, s)

	_, err := s.GetRelationships(ctx, "missing", store.RelOpts{})
	assert.True(t, medkgerr.IsNotFound(err))

	_, err = s.GetRelationships(ctx, "A", store.RelOpts{Direction: "up"})
	assert.True(t, medkgerr.IsInvalidInput(err))
}

func TestSnapshotStore_Traverse(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	chain(t, s)

	tests := []struct {
		name     string
		start    string
		depth    int
		filter   store.TraversalFilter
		wantIDs  []string
		wantHops map[string]int
		wantRels []string
	}{
		{
			name:     "one hop",
			start:    "A",
			depth:    1,
			wantIDs:  []string{"A", "B"},
			wantHops: map[string]int{"A": 0, "B": 1},
			wantRels: []string{"A-P1->B", "B-P2->A"},
		},
		{
			name:     "zero depth defaults to one",
			start:    "A",
			depth:    0,
			wantIDs:  []string{"A", "B"},
			wantHops: map[string]int{"A": 0, "B": 1},
			wantRels: []string{"A-P1->B", "B-P2->A"},
		},
		{
			name:     "follows incoming edges",
			start:    "D",
			depth:    2,
			wantIDs:  []string{"D", "C", "B"},
			wantHops: map[string]int{"D": 0, "C": 1, "B": 2},
			wantRels: []string{"B-P2->C", "C-P1->D"},
		},
		{
			name:     "full depth",
			start:    "A",
			depth:    5,
			wantIDs:  []string{"A", "B", "C", "D"},
			wantHops: map[string]int{"A": 0, "B": 1, "C": 2, "D": 3},
			wantRels: []string{"A-P1->B", "B-P2->C", "C-P1->D", "B-P2->A"},
		},
		{
			name:     "max depth caps depth",
			start:    "A",
			depth:    5,
			filter:   store.TraversalFilter{MaxDepth: 2},
			wantIDs:  []string{"A", "B", "C"},
			wantHops: map[string]int{"A": 0, "B": 1, "C": 2},
			wantRels: []string{"A-P1->B", "B-P2->C", "B-P2->A"},
		},
		{
			name:     "relation filter",
			start:    "A",
			depth:    5,
			filter:   store.TraversalFilter{RelationshipTypes: []string{"P1"}},
			wantIDs:  []string{"A", "B"},
			wantHops: map[string]int{"A": 0, "B": 1},
			wantRels: []string{"A-P1->B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := s.Traverse(ctx, tt.start, tt.depth, tt.filter)
			require.NoError(t, err)

			ids := make([]string, 0, len(g.Entities))
			for _, e := range g.Entities {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantHops, g.Hops)
			assert.Equal(t, tt.wantRels, relTriples(g.Relationships))
		})
	}
}

func TestSnapshotStore_TraverseUnknownStart(t *testing.T) {
	s := openStore(t)
	_, err := s.Traverse(context.Background(), "nope", 2, store.TraversalFilter{})
	require.Error(t, err)
	assert.True(t, medkgerr.IsNotFound(err))
}

func TestSnapshotStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "reopen")

	s, err := sqlite.NewSnapshotStore(path)
	require.NoError(t, err)
	chain(t, s)
	require.NoError(t, s.Close())

	s, err = sqlite.NewSnapshotStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.GetRelationships(ctx, "C", store.RelOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B-P2->C", "C-P1->D"}, relTriples(got))
}
