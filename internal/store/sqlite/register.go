// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package sqlite

import (
	"github.com/medkg-dev/medkg/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newSnapshotStore)
}

func newSnapshotStore(path string) (store.SnapshotStore, error) {
	return NewSnapshotStore(path)
}
