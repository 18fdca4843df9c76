// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/graph"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MedicalRelations(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	assert.Equal(t, 16, cat.Len())
	assert.True(t, cat.Contains("P31"))
	assert.True(t, cat.Contains("P780"))
	assert.False(t, cat.Contains("P18"))
	assert.Equal(t, "symptoms", cat.Label("P780"))
	assert.Equal(t, "drug used for treatment", cat.Label("P2176"))
	assert.Equal(t, "P18", cat.Label("P18"), "unknown relations fall back to their id")
	assert.Equal(t, graph.RelationID("P31"), cat.IDs()[0])
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
relations:
  - id: R1
    label: related to
  - id: R2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []graph.RelationID{"R1", "R2"}, cat.IDs())
	assert.Equal(t, "related to", cat.Label("R1"))
	assert.Equal(t, "R2", cat.Label("R2"))
	assert.Equal(t, []catalog.Relation{{ID: "R1", Label: "related to"}, {ID: "R2", Label: "R2"}}, cat.Relations())
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	cat, err := catalog.Load("")
	require.NoError(t, err)
	assert.True(t, cat.Contains(catalog.InstanceOf))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    medkgerr.Code
	}{
		{name: "empty catalog", content: "relations: []\n", code: medkgerr.CodeCatalogValidateInvalid},
		{name: "duplicate id", content: "relations:\n  - id: P31\n  - id: P31\n", code: medkgerr.CodeCatalogValidateInvalid},
		{name: "blank id", content: "relations:\n  - id: \" \"\n", code: medkgerr.CodeCatalogValidateInvalid},
		{name: "unknown field", content: "relations:\n  - id: P31\n    weight: 2\n", code: medkgerr.CodeCatalogParseInvalidFormat},
		{name: "not yaml", content: "relations: [", code: medkgerr.CodeCatalogParseInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := catalog.Load(path)
			require.Error(t, err)
			assert.Equal(t, tt.code, medkgerr.CodeOf(err))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, medkgerr.HasCode(err, medkgerr.CodeCatalogLoadReadFailure))
}
