// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package store

import (
	"sort"
	"sync"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

// SnapshotStoreFactory opens (or creates) a snapshot store at path.
type SnapshotStoreFactory func(path string) (SnapshotStore, error)

var (
	factories   = map[string]SnapshotStoreFactory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory SnapshotStoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open opens a snapshot store at path using the configured backend.
func Open(cfg *StorageConfig, path string) (SnapshotStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, medkgerr.Errorf(medkgerr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}
	if path == "" {
		return nil, medkgerr.New(medkgerr.CodeStoreInvalidInput, "store path is required")
	}
	return factory(path)
}
