// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package expand_test

import (
	"testing"

	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/wikidata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEdges_CarriesQualifiersInOrder(t *testing.T) {
	ent, err := wikidata.ParseEntity([]byte(`{
	  "id": "Q199804",
	  "claims": {
	    "P780": [{
	      "mainsnak": {"property": "P780", "datatype": "wikibase-item",
	        "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q35805"}}},
	      "qualifiers": {
	        "P1480": [{"property": "P1480", "datatype": "wikibase-item",
	          "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q18603603"}}}],
	        "P585": [
	          {"property": "P585", "datatype": "time", "snaktype": "somevalue"},
	          {"property": "P585", "datatype": "time",
	            "datavalue": {"type": "time", "value": {"time": "+2020-00-00T00:00:00Z"}}}
	        ]
	      }
	    }]
	  }
	}`))
	require.NoError(t, err)

	edges := expand.ExtractEdges("Q199804", ent, relSet{"P780": true})

	require.Len(t, edges, 1)
	e := edges[0]
	assert.Equal(t, graph.NodeID("Q199804"), e.Source)
	assert.Equal(t, graph.RelationID("P780"), e.Relation)
	assert.Equal(t, graph.NodeID("Q35805"), e.Target)
	require.Len(t, e.Qualifiers, 2)
	assert.Equal(t, graph.RelationID("P1480"), e.Qualifiers[0].Property)
	assert.JSONEq(t, `{"id": "Q18603603"}`, string(e.Qualifiers[0].Value))
	assert.Equal(t, graph.RelationID("P585"), e.Qualifiers[1].Property)
	assert.JSONEq(t, `{"time": "+2020-00-00T00:00:00Z"}`, string(e.Qualifiers[1].Value))
}

func TestExtractEdges_NilEntity(t *testing.T) {
	assert.Empty(t, expand.ExtractEdges("Q1", nil, allowR1))
}
