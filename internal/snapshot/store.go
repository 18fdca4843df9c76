// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/store"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

// Save writes doc into st: the run record, every expanded entity, every
// referenced-only endpoint and the triples in document order.
func Save(ctx context.Context, st store.SnapshotStore, doc *Document) error {
	generated := doc.Metadata.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	seeds := make([]string, 0, len(doc.Metadata.Seeds))
	for _, id := range doc.Metadata.Seeds {
		seeds = append(seeds, string(id))
	}
	run := &store.Run{
		ID:          doc.Metadata.RunID,
		GeneratedAt: generated,
		MaxDepth:    doc.Metadata.MaxDepth,
		Seeds:       seeds,
	}
	if doc.Metadata.Analysis != nil {
		raw, err := json.Marshal(doc.Metadata.Analysis)
		if err != nil {
			return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "encoding analysis")
		}
		run.Analysis = raw
	}
	if err := st.PutRun(ctx, run); err != nil {
		return err
	}

	if err := st.PutEntities(ctx, storeEntities(doc)); err != nil {
		return err
	}

	rels := make([]*store.Relationship, 0, len(doc.Subgraph.Triples))
	for _, t := range doc.Subgraph.Triples {
		qualifiers := make([]store.Qualifier, 0, len(t.Qualifiers))
		for _, q := range t.Qualifiers {
			qualifiers = append(qualifiers, store.Qualifier{Property: string(q.Property), Value: q.Value})
		}
		rels = append(rels, &store.Relationship{
			FromID:     string(t.Source.ID),
			ToID:       string(t.Target.ID),
			Type:       string(t.Predicate.ID),
			Label:      t.Predicate.Label,
			Qualifiers: qualifiers,
		})
	}
	return st.PutRelationships(ctx, rels)
}

// storeEntities lists expanded entities and referenced-only endpoints sorted
// by id. A referenced endpoint sits one hop below its shallowest source.
func storeEntities(doc *Document) []*store.Entity {
	byID := make(map[graph.NodeID]*store.Entity, len(doc.Subgraph.Entities))
	for id, rec := range doc.Subgraph.Entities {
		e := &store.Entity{
			ID:          string(id),
			Label:       rec.Metadata.Label,
			Description: rec.Metadata.Description,
			Depth:       rec.Depth,
			Expanded:    true,
		}
		if len(rec.Data) > 0 && string(rec.Data) != "null" {
			e.Data = rec.Data
		}
		byID[id] = e
	}

	for _, t := range doc.Subgraph.Triples {
		depth := 0
		if src, ok := doc.Subgraph.Entities[t.Source.ID]; ok {
			depth = src.Depth + 1
		}
		for _, end := range []Endpoint{t.Source, t.Target} {
			existing, ok := byID[end.ID]
			if !ok {
				byID[end.ID] = &store.Entity{
					ID:          string(end.ID),
					Label:       end.Metadata.Label,
					Description: end.Metadata.Description,
					Depth:       depth,
				}
				continue
			}
			if !existing.Expanded && depth < existing.Depth {
				existing.Depth = depth
			}
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	out := make([]*store.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[graph.NodeID(id)])
	}
	return out
}

// WriteStore writes doc as a fresh store file at path. The store is built
// under a temporary name in the destination directory and renamed into place
// once closed.
func WriteStore(ctx context.Context, cfg *store.StorageConfig, path string, doc *Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".medkg-snapshot-*.db")
	if err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "creating temp store", medkgerr.FieldPath(path))
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
			_ = os.Remove(tmpPath + "-wal")
			_ = os.Remove(tmpPath + "-shm")
		}
	}()

	st, err := store.Open(cfg, tmpPath)
	if err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "opening temp store", medkgerr.FieldPath(path))
	}
	if err := Save(ctx, st, doc); err != nil {
		_ = st.Close()
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "saving snapshot", medkgerr.FieldPath(path))
	}
	if err := st.Close(); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "closing temp store", medkgerr.FieldPath(path))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "renaming snapshot", medkgerr.FieldPath(path))
	}
	committed = true
	return nil
}
