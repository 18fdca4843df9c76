// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/medkg-dev/medkg/internal/graph"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/medkg-dev/medkg/pkg/health"
	"github.com/medkg-dev/medkg/pkg/metrics"
)

// MaxBatchSize is the largest number of ids sent in one VALUES clause.
const MaxBatchSize = 50

// EnricherConfig configures a SPARQLEnricher.
type EnricherConfig struct {
	Endpoint       string
	UserAgent      string
	Language       string
	RequestTimeout time.Duration
}

// DefaultEnricherConfig returns the production defaults.
func DefaultEnricherConfig() EnricherConfig {
	return EnricherConfig{
		Endpoint:       DefaultSPARQLEndpoint,
		UserAgent:      DefaultUserAgent,
		Language:       "en",
		RequestTimeout: 30 * time.Second,
	}
}

// SPARQLEnricher resolves labels and descriptions through the query service.
type SPARQLEnricher struct {
	cfg     EnricherConfig
	client  HTTPClient
	health  *HealthTracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// EnricherOption customises a SPARQLEnricher.
type EnricherOption func(*SPARQLEnricher)

func WithEnricherHTTPClient(c HTTPClient) EnricherOption {
	return func(e *SPARQLEnricher) { e.client = c }
}

func WithEnrichMetrics(m *metrics.Metrics) EnricherOption {
	return func(e *SPARQLEnricher) { e.metrics = m }
}

func WithEnrichLogger(l *slog.Logger) EnricherOption {
	return func(e *SPARQLEnricher) { e.logger = l }
}

// NewSPARQLEnricher validates cfg and builds an enricher.
func NewSPARQLEnricher(cfg EnricherConfig, opts ...EnricherOption) (*SPARQLEnricher, error) {
	if cfg.Endpoint == "" {
		return nil, medkgerr.New(medkgerr.CodeEnrichRequestInvalid, "sparql endpoint is required")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if !languagePattern.MatchString(cfg.Language) {
		return nil, medkgerr.Errorf(medkgerr.CodeEnrichRequestInvalid, "invalid label language %q", cfg.Language)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	tracker, err := NewHealthTracker(cfg.Endpoint, DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	e := &SPARQLEnricher{
		cfg:    cfg,
		client: http.DefaultClient,
		health: tracker,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// EnrichBatch returns label and description for every id that has a label
// in the configured language. Inputs above MaxBatchSize are split into
// chunks, one query each. A failed query contributes nothing; the error is
// logged and never returned.
func (e *SPARQLEnricher) EnrichBatch(ctx context.Context, ids []graph.NodeID) map[graph.NodeID]graph.Metadata {
	out := make(map[graph.NodeID]graph.Metadata)
	unique := e.validIDs(ids)

	for start := 0; start < len(unique); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(unique))
		chunk := unique[start:end]

		found, err := e.enrichChunk(ctx, chunk)
		if err != nil {
			e.logger.Warn("metadata enrichment failed", "batch_size", len(chunk), "error", err)
			continue
		}
		for id, m := range found {
			out[id] = m
		}
	}
	e.metrics.RecordMetadata(len(out))
	return out
}

// Related returns items linked to any seed through relation (e.g. subclass
// of), in result order, excluding the seeds themselves and capped at limit.
func (e *SPARQLEnricher) Related(ctx context.Context, seeds []graph.NodeID, relation graph.RelationID, limit int) ([]graph.NodeID, error) {
	if !propertyIDPattern.MatchString(string(relation)) {
		return nil, medkgerr.New(medkgerr.CodeEnrichRequestInvalid, "malformed relation id",
			medkgerr.FieldRelation(string(relation)))
	}
	if limit <= 0 {
		return nil, medkgerr.Errorf(medkgerr.CodeEnrichRequestInvalid, "related limit must be positive (got %d)", limit)
	}
	valid := e.validIDs(seeds)
	if len(valid) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT DISTINCT ?item WHERE {
  VALUES ?seed { %s }
  ?item wdt:%s ?seed .
}
LIMIT %d`, valuesClause(valid), relation, limit+len(valid))

	rows, err := e.run(ctx, query)
	if err != nil {
		return nil, err
	}

	isSeed := make(map[graph.NodeID]bool, len(valid))
	for _, id := range valid {
		isSeed[id] = true
	}
	seen := make(map[graph.NodeID]bool)
	var out []graph.NodeID
	for _, row := range rows {
		id, ok := entityIDFromURI(row["item"].Value)
		if !ok || isSeed[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Health returns the endpoint health snapshot.
func (e *SPARQLEnricher) Health() health.Metrics {
	return e.health.Metrics()
}

func (e *SPARQLEnricher) enrichChunk(ctx context.Context, ids []graph.NodeID) (map[graph.NodeID]graph.Metadata, error) {
	lang := e.cfg.Language
	query := fmt.Sprintf(`SELECT ?item ?itemLabel ?itemDescription WHERE {
  VALUES ?item { %s }
  ?item rdfs:label ?itemLabel .
  FILTER(LANG(?itemLabel) = "%s")
  OPTIONAL {
    ?item schema:description ?itemDescription .
    FILTER(LANG(?itemDescription) = "%s")
  }
}`, valuesClause(ids), lang, lang)

	rows, err := e.run(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make(map[graph.NodeID]graph.Metadata, len(rows))
	for _, row := range rows {
		id, ok := entityIDFromURI(row["item"].Value)
		if !ok {
			continue
		}
		label := row["itemLabel"].Value
		if label == "" {
			continue
		}
		if _, dup := out[id]; dup {
			continue
		}
		out[id] = graph.Metadata{Label: label, Description: row["itemDescription"].Value}
	}
	return out, nil
}

type binding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

func (e *SPARQLEnricher) run(ctx context.Context, query string) ([]map[string]binding, error) {
	reqCtx, cancel := withTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	endpoint := e.cfg.Endpoint + "?" + params.Encode()

	req, err := newRequest(reqCtx, endpoint, e.cfg.UserAgent, "application/sparql-results+json")
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeEnrichRequestInvalid, "building sparql request",
			medkgerr.FieldEndpoint(e.cfg.Endpoint))
	}

	start := time.Now()
	rows, err := e.do(req)
	elapsed := time.Since(start)
	if err != nil {
		e.health.RecordFailure()
		e.metrics.ObserveUpstream(sourceSPARQL, metrics.OutcomeFailure, elapsed)
		return nil, err
	}
	e.health.RecordSuccess()
	e.metrics.ObserveUpstream(sourceSPARQL, metrics.OutcomeSuccess, elapsed)
	return rows, nil
}

func (e *SPARQLEnricher) do(req *http.Request) ([]map[string]binding, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeEnrichUpstreamFailure, "querying sparql endpoint",
			medkgerr.FieldEndpoint(e.cfg.Endpoint))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeEnrichUpstreamFailure, "reading sparql response",
			medkgerr.FieldEndpoint(e.cfg.Endpoint))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, medkgerr.New(medkgerr.CodeEnrichUpstreamFailure,
			fmt.Sprintf("sparql endpoint returned %d", resp.StatusCode),
			medkgerr.FieldEndpoint(e.cfg.Endpoint))
	}

	var decoded sparqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeEnrichResponseInvalid, "decoding sparql response",
			medkgerr.FieldEndpoint(e.cfg.Endpoint))
	}
	return decoded.Results.Bindings, nil
}

// validIDs de-duplicates ids in order and drops anything that is not a
// well-formed entity id, since ids are interpolated into the query.
func (e *SPARQLEnricher) validIDs(ids []graph.NodeID) []graph.NodeID {
	seen := make(map[graph.NodeID]bool, len(ids))
	out := make([]graph.NodeID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !itemIDPattern.MatchString(string(id)) {
			e.logger.Debug("skipping malformed id in metadata query", "node_id", id)
			continue
		}
		out = append(out, id)
	}
	return out
}

func valuesClause(ids []graph.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "wd:" + string(id)
	}
	return strings.Join(parts, " ")
}

func entityIDFromURI(uri string) (graph.NodeID, bool) {
	if uri == "" {
		return "", false
	}
	id := path.Base(uri)
	if !itemIDPattern.MatchString(id) {
		return "", false
	}
	return graph.NodeID(id), true
}
