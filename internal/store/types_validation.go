// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package store

import (
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
)

// Validate checks that the Run has all required fields set correctly.
func (r Run) Validate() error {
	if r.ID == "" {
		return medkgerr.New(medkgerr.CodeStoreInvalidInput, "run: ID is required")
	}
	if r.GeneratedAt.IsZero() {
		return medkgerr.New(medkgerr.CodeStoreInvalidInput, "run: GeneratedAt is required")
	}
	if r.MaxDepth < 0 {
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "run: MaxDepth must be >= 0, got %d", r.MaxDepth)
	}
	return nil
}

// Validate checks that the Entity has all required fields set correctly.
func (e Entity) Validate() error {
	if e.ID == "" {
		return medkgerr.New(medkgerr.CodeStoreInvalidInput, "entity: ID is required")
	}
	if e.Depth < 0 {
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "entity %s: Depth must be >= 0, got %d", e.ID, e.Depth)
	}
	if !e.Expanded && len(e.Data) > 0 {
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "entity %s: Data is only stored for expanded entities", e.ID)
	}
	return nil
}

// Validate checks that the Relationship has all required fields set correctly.
func (r Relationship) Validate() error {
	if r.FromID == "" || r.ToID == "" {
		return medkgerr.New(medkgerr.CodeStoreInvalidInput, "relationship: FromID and ToID are required")
	}
	if r.Type == "" {
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "relationship %s->%s: Type is required", r.FromID, r.ToID)
	}
	for _, q := range r.Qualifiers {
		if q.Property == "" {
			return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "relationship %s->%s: qualifier property is required", r.FromID, r.ToID)
		}
	}
	return nil
}

// Validate checks that the direction is known. Empty means both.
func (o RelOpts) Validate() error {
	switch o.Direction {
	case "", DirectionOutgoing, DirectionIncoming, DirectionBoth:
	default:
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "rel opts: unknown direction %q", o.Direction)
	}
	if o.Limit < 0 {
		return medkgerr.Errorf(medkgerr.CodeStoreInvalidInput, "rel opts: Limit must be >= 0, got %d", o.Limit)
	}
	return nil
}
