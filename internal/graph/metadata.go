// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package graph

import "sync"

// MetadataTable is the per-run side table of node display metadata.
// It is safe for concurrent use.
type MetadataTable struct {
	mu      sync.RWMutex
	entries map[NodeID]Metadata
}

// NewMetadataTable returns an empty table.
func NewMetadataTable() *MetadataTable {
	return &MetadataTable{entries: make(map[NodeID]Metadata)}
}

// Put stores metadata for id, replacing any previous value.
func (t *MetadataTable) Put(id NodeID, m Metadata) {
	t.mu.Lock()
	t.entries[id] = m
	t.mu.Unlock()
}

// Merge stores every entry of batch, replacing previous values.
func (t *MetadataTable) Merge(batch map[NodeID]Metadata) {
	if len(batch) == 0 {
		return
	}
	t.mu.Lock()
	for id, m := range batch {
		t.entries[id] = m
	}
	t.mu.Unlock()
}

// Get returns the stored metadata for id.
func (t *MetadataTable) Get(id NodeID) (Metadata, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.entries[id]
	return m, ok
}

// Resolve returns the metadata for id, falling back to the raw identifier
// as label and an empty description when nothing is stored.
func (t *MetadataTable) Resolve(id NodeID) Metadata {
	if t != nil {
		if m, ok := t.Get(id); ok {
			if m.Label == "" {
				m.Label = string(id)
			}
			return m
		}
	}
	return Metadata{Label: string(id)}
}

// Len reports the number of stored entries.
func (t *MetadataTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns a copy of all entries.
func (t *MetadataTable) Snapshot() map[NodeID]Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[NodeID]Metadata, len(t.entries))
	for id, m := range t.entries {
		out[id] = m
	}
	return out
}
