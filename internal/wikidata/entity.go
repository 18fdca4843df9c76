// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package wikidata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/medkg-dev/medkg/internal/graph"
)

// DatatypeItem is the mainsnak datatype of claims that reference another item.
const DatatypeItem = "wikibase-item"

// Entity is the subset of an EntityData document the crawler reads.
// Raw keeps the complete entity JSON for the output snapshot.
type Entity struct {
	ID     string            `json:"id"`
	Claims OrderedMap[Claim] `json:"claims"`
	Raw    json.RawMessage   `json:"-"`
}

// Claim is a single statement on an entity.
type Claim struct {
	Mainsnak   Snak             `json:"mainsnak"`
	Qualifiers OrderedMap[Snak] `json:"qualifiers"`
}

// Snak is a property/value pair. DataValue is nil for "somevalue" and
// "novalue" snaks.
type Snak struct {
	Property  string     `json:"property"`
	Datatype  string     `json:"datatype"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue holds the typed value of a snak as raw JSON.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ItemID returns the referenced item id of a wikibase-item snak.
func (s Snak) ItemID() (graph.NodeID, bool) {
	if s.Datatype != DatatypeItem || s.DataValue == nil {
		return "", false
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(s.DataValue.Value, &v); err != nil || v.ID == "" {
		return "", false
	}
	return graph.NodeID(v.ID), true
}

// ParseEntity decodes a single entity document and retains it as Raw.
func ParseEntity(raw []byte) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	e.Raw = append(json.RawMessage(nil), raw...)
	return &e, nil
}

// OrderedMap decodes a JSON object of arrays keyed by property id while
// keeping the key order of the document. An empty JSON array is accepted in
// place of an empty object.
type OrderedMap[T any] struct {
	Keys   []string
	Values map[string][]T
}

// Set appends values under key, recording key order on first use.
func (m *OrderedMap[T]) Set(key string, values ...T) {
	if m.Values == nil {
		m.Values = make(map[string][]T)
	}
	if _, ok := m.Values[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Values[key] = append(m.Values[key], values...)
}

// Len returns the number of keys.
func (m OrderedMap[T]) Len() int { return len(m.Keys) }

func (m *OrderedMap[T]) UnmarshalJSON(data []byte) error {
	*m = OrderedMap[T]{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch tok {
	case nil:
		return nil
	case json.Delim('['):
		var rest []json.RawMessage
		for dec.More() {
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return err
			}
			rest = append(rest, v)
		}
		if len(rest) > 0 {
			return fmt.Errorf("expected object, got non-empty array")
		}
		return nil
	case json.Delim('{'):
	default:
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var values []T
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		m.Set(key, values...)
	}
	_, err = dec.Token()
	return err
}
