// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/medkg-dev/medkg/internal/store"
	"github.com/medkg-dev/medkg/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// openStore opens a fresh store that is closed when the test ends.
func openStore(t *testing.T) *sqlite.SnapshotStore {
	t.Helper()
	s, err := sqlite.NewSnapshotStore(testDBPath(t, "snapshot"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// chain seeds a store with A -P1-> B -P2-> C -P1-> D plus a B -P2-> A back edge.
func chain(t *testing.T, s *sqlite.SnapshotStore) []*store.Relationship {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.PutEntities(ctx, []*store.Entity{
		{ID: "A", Label: "alpha", Expanded: true, Data: []byte(`{"id":"A"}`)},
		{ID: "B", Label: "beta", Depth: 1, Expanded: true, Data: []byte(`{"id":"B"}`)},
		{ID: "C", Label: "gamma", Depth: 2},
		{ID: "D", Label: "delta", Depth: 3},
	}))
	rels := []*store.Relationship{
		{FromID: "A", ToID: "B", Type: "P1", Label: "one"},
		{FromID: "B", ToID: "C", Type: "P2", Label: "two"},
		{FromID: "C", ToID: "D", Type: "P1", Label: "one"},
		{FromID: "B", ToID: "A", Type: "P2", Label: "two"},
	}
	require.NoError(t, s.PutRelationships(ctx, rels))
	return rels
}
