// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/medkg-dev/medkg/internal/snapshot"
	"github.com/medkg-dev/medkg/internal/store"
	_ "github.com/medkg-dev/medkg/internal/store/sqlite" // register sqlite backend
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "subgraph.db")

	require.NoError(t, snapshot.WriteStore(ctx, nil, path, sampleDocument(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "subgraph.db", entries[0].Name())

	st, err := store.Open(nil, path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	run, err := st.GetRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, []string{"Q12206"}, run.Seeds)
	assert.Contains(t, string(run.Analysis), "hub_entities")

	root, err := st.GetEntity(ctx, "Q12206")
	require.NoError(t, err)
	assert.True(t, root.Expanded)
	assert.Equal(t, "diabetes", root.Label)

	ref, err := st.GetEntity(ctx, "Q929833")
	require.NoError(t, err)
	assert.False(t, ref.Expanded)
	assert.Equal(t, 1, ref.Depth)
	assert.Equal(t, "Q929833", ref.Label)

	rels, err := st.GetRelationships(ctx, "Q12206", store.RelOpts{Direction: store.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "P780", rels[0].Type)
	assert.Equal(t, "symptoms", rels[0].Label)
	require.Len(t, rels[0].Qualifiers, 1)
	assert.Equal(t, "P1013", rels[0].Qualifiers[0].Property)
	assert.Equal(t, "P31", rels[1].Type)
}

func TestWriteStore_MissingRunID(t *testing.T) {
	dir := t.TempDir()
	doc := sampleDocument(t)
	doc.Metadata.RunID = ""

	err := snapshot.WriteStore(context.Background(), nil, filepath.Join(dir, "x.db"), doc)
	require.Error(t, err)
	assert.True(t, medkgerr.IsInvalidInput(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary store is removed on failure")
}

func TestWriteStore_UnknownBackend(t *testing.T) {
	err := snapshot.WriteStore(context.Background(), &store.StorageConfig{Backend: "nope"},
		filepath.Join(t.TempDir(), "x.db"), sampleDocument(t))
	require.Error(t, err)
	assert.Equal(t, medkgerr.CodeStoreBackendUnsupported, medkgerr.CodeOf(err))
}
