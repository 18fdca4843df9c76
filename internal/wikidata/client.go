// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package wikidata talks to the two Wikidata services the crawler depends
// on: the EntityData JSON endpoint for per-node claims and the Query Service
// SPARQL endpoint for labels and descriptions.
package wikidata

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"
)

const (
	// DefaultEntityEndpoint serves {id}.json entity documents.
	DefaultEntityEndpoint = "https://www.wikidata.org/wiki/Special:EntityData"
	// DefaultSPARQLEndpoint is the Wikidata Query Service.
	DefaultSPARQLEndpoint = "https://query.wikidata.org/sparql"
	// DefaultUserAgent identifies the crawler to upstream operators.
	DefaultUserAgent = "MedicalKGExtractor/1.0 (research project)"

	maxResponseBytes = 64 << 20
)

// Metric source labels.
const (
	sourceEntity = "entity"
	sourceSPARQL = "sparql"
)

var (
	itemIDPattern     = regexp.MustCompile(`^[QPL][1-9][0-9]*$`)
	propertyIDPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)
	languagePattern   = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]+)*$`)
)

// HTTPClient is the subset of *http.Client used here, so tests can inject a
// fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func newRequest(ctx context.Context, url, userAgent, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	return req, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
