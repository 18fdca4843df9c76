// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package catalog provides the relation whitelist used during expansion.
package catalog

import (
	"bytes"
	_ "embed"
	"os"
	"strings"

	"github.com/medkg-dev/medkg/internal/graph"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.default.yaml
var DefaultCatalogYAML []byte

// InstanceOf is the relation used to group entities by type.
const InstanceOf graph.RelationID = "P31"

// Relation is one catalog entry.
type Relation struct {
	ID    graph.RelationID `yaml:"id"`
	Label string           `yaml:"label"`
}

type catalogFile struct {
	Relations []Relation `yaml:"relations"`
}

// Catalog is an immutable, ordered mapping from relation id to label.
type Catalog struct {
	order  []graph.RelationID
	labels map[graph.RelationID]string
}

// New builds a catalog from relations, rejecting empty or duplicate ids.
func New(relations []Relation) (*Catalog, error) {
	if len(relations) == 0 {
		return nil, medkgerr.New(medkgerr.CodeCatalogValidateInvalid, "catalog must contain at least one relation")
	}

	c := &Catalog{labels: make(map[graph.RelationID]string, len(relations))}
	for i, r := range relations {
		id := graph.RelationID(strings.TrimSpace(string(r.ID)))
		if id == "" {
			return nil, medkgerr.Errorf(medkgerr.CodeCatalogValidateInvalid, "catalog: relations[%d] has an empty id", i)
		}
		if _, dup := c.labels[id]; dup {
			return nil, medkgerr.Errorf(medkgerr.CodeCatalogValidateInvalid, "catalog: duplicate relation %s", id)
		}
		label := strings.TrimSpace(r.Label)
		if label == "" {
			label = string(id)
		}
		c.labels[id] = label
		c.order = append(c.order, id)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeCatalogParseInvalidFormat, "parsing catalog: %w", err)
	}
	return New(f.Relations)
}

// Load reads a catalog file. An empty path returns the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeCatalogLoadReadFailure, "reading catalog", medkgerr.FieldPath(path))
	}
	return Parse(data)
}

// Default returns the embedded medical relation catalog.
func Default() (*Catalog, error) {
	return Parse(DefaultCatalogYAML)
}

// Contains reports whether id is whitelisted.
func (c *Catalog) Contains(id graph.RelationID) bool {
	_, ok := c.labels[id]
	return ok
}

// Label returns the label for id, or the id itself when it is not listed.
func (c *Catalog) Label(id graph.RelationID) string {
	if l, ok := c.labels[id]; ok {
		return l
	}
	return string(id)
}

// IDs returns relation ids in catalog order.
func (c *Catalog) IDs() []graph.RelationID {
	out := make([]graph.RelationID, len(c.order))
	copy(out, c.order)
	return out
}

// Relations returns the entries in catalog order.
func (c *Catalog) Relations() []Relation {
	out := make([]Relation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Relation{ID: id, Label: c.labels[id]})
	}
	return out
}

// Len returns the number of relations.
func (c *Catalog) Len() int { return len(c.order) }
