// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package snapshot

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/medkg-dev/medkg/internal/graph"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

// Encode writes doc as indented JSON without HTML escaping.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// Write stores doc at path atomically: the document is written to a
// temporary file in the destination directory and renamed into place.
func Write(path string, doc *Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".medkg-snapshot-*.tmp")
	if err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "creating temp file", medkgerr.FieldPath(path))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmp, doc); err != nil {
		_ = tmp.Close()
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "encoding snapshot", medkgerr.FieldPath(path))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "syncing snapshot", medkgerr.FieldPath(path))
	}
	if err := tmp.Close(); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "closing snapshot", medkgerr.FieldPath(path))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeSnapshotWriteFailure, "renaming snapshot", medkgerr.FieldPath(path))
	}
	committed = true
	return nil
}

// Read loads a document written by Write.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeSnapshotReadFailure, "opening snapshot", medkgerr.FieldPath(path))
	}
	defer f.Close()

	var doc Document
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeSnapshotFormatInvalid, "decoding snapshot", medkgerr.FieldPath(path))
	}
	if doc.Subgraph.Entities == nil {
		doc.Subgraph.Entities = map[graph.NodeID]EntityRecord{}
	}
	return &doc, nil
}
