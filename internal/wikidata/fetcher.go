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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/pacing"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/medkg-dev/medkg/pkg/health"
	"github.com/medkg-dev/medkg/pkg/metrics"
)

// FetcherConfig configures an EntityFetcher.
type FetcherConfig struct {
	Endpoint       string
	UserAgent      string
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

// DefaultFetcherConfig returns the production defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Endpoint:       DefaultEntityEndpoint,
		UserAgent:      DefaultUserAgent,
		MaxAttempts:    3,
		RetryDelay:     2 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// EntityFetcher retrieves the claim set of one entity with bounded retry.
type EntityFetcher struct {
	cfg     FetcherConfig
	client  HTTPClient
	sleep   pacing.SleepFunc
	health  *HealthTracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// FetcherOption customises an EntityFetcher.
type FetcherOption func(*EntityFetcher)

func WithHTTPClient(c HTTPClient) FetcherOption {
	return func(f *EntityFetcher) { f.client = c }
}

// WithSleep replaces the sleep used between attempts.
func WithSleep(s pacing.SleepFunc) FetcherOption {
	return func(f *EntityFetcher) { f.sleep = s }
}

func WithFetchMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *EntityFetcher) { f.metrics = m }
}

func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *EntityFetcher) { f.logger = l }
}

// NewEntityFetcher validates cfg and builds a fetcher.
func NewEntityFetcher(cfg FetcherConfig, opts ...FetcherOption) (*EntityFetcher, error) {
	if cfg.Endpoint == "" {
		return nil, medkgerr.New(medkgerr.CodeFetchRequestInvalid, "entity endpoint is required")
	}
	if cfg.MaxAttempts < 1 {
		return nil, medkgerr.Errorf(medkgerr.CodeFetchRequestInvalid, "max attempts must be at least 1 (got %d)", cfg.MaxAttempts)
	}
	if cfg.RetryDelay < 0 {
		return nil, medkgerr.Errorf(medkgerr.CodeFetchRequestInvalid, "retry delay must not be negative (got %s)", cfg.RetryDelay)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	tracker, err := NewHealthTracker(cfg.Endpoint, DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}

	f := &EntityFetcher{
		cfg:    cfg,
		client: http.DefaultClient,
		sleep:  pacing.Sleep,
		health: tracker,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// Fetch returns the entity document for id. Transport errors and non-2xx
// statuses other than 404 are retried up to MaxAttempts times, sleeping
// RetryDelay×attempt in between. A 404 or an undecodable document fails
// immediately.
func (f *EntityFetcher) Fetch(ctx context.Context, id graph.NodeID) (*Entity, error) {
	if !itemIDPattern.MatchString(string(id)) {
		return nil, medkgerr.New(medkgerr.CodeFetchRequestInvalid, "malformed entity id",
			medkgerr.FieldNodeID(string(id)))
	}

	schedule := newLinearBackOff(f.cfg.RetryDelay, f.cfg.MaxAttempts)
	var lastErr error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		ent, err := f.fetchOnce(ctx, id)
		elapsed := time.Since(start)

		if err == nil {
			f.health.RecordSuccess()
			f.metrics.ObserveUpstream(sourceEntity, metrics.OutcomeSuccess, elapsed)
			return ent, nil
		}
		if ctx.Err() != nil {
			return nil, medkgerr.Wrap(ctx.Err(), medkgerr.CodeFetchCancelled, "entity fetch cancelled",
				medkgerr.FieldNodeID(string(id)), medkgerr.FieldAttempt(attempt))
		}
		if !retryable(err) {
			// The upstream answered, so it counts as reachable.
			f.health.RecordSuccess()
			f.metrics.ObserveUpstream(sourceEntity, outcomeOf(err), elapsed)
			return nil, err
		}

		lastErr = err
		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			f.metrics.ObserveUpstream(sourceEntity, metrics.OutcomeFailure, elapsed)
			break
		}
		f.metrics.ObserveUpstream(sourceEntity, metrics.OutcomeRetry, elapsed)

		f.logger.Warn("entity fetch failed, retrying",
			"node_id", id, "attempt", attempt, "delay", delay, "error", err)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, medkgerr.Wrap(err, medkgerr.CodeFetchCancelled, "entity fetch cancelled",
				medkgerr.FieldNodeID(string(id)), medkgerr.FieldAttempt(attempt))
		}
	}

	f.health.RecordFailure()
	return nil, medkgerr.Wrap(lastErr, medkgerr.CodeFetchUpstreamFailure, "entity fetch exhausted retries",
		medkgerr.FieldNodeID(string(id)), medkgerr.FieldAttempt(f.cfg.MaxAttempts))
}

// Health returns the endpoint health snapshot.
func (f *EntityFetcher) Health() health.Metrics {
	return f.health.Metrics()
}

func (f *EntityFetcher) fetchOnce(ctx context.Context, id graph.NodeID) (*Entity, error) {
	reqCtx, cancel := withTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s.json", f.cfg.Endpoint, url.PathEscape(string(id)))
	req, err := newRequest(reqCtx, endpoint, f.cfg.UserAgent, "application/json")
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeFetchRequestInvalid, "building entity request",
			medkgerr.FieldEndpoint(endpoint))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeFetchUpstreamFailure, "requesting entity",
			medkgerr.FieldNodeID(string(id)))
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeFetchUpstreamFailure, "reading entity response",
			medkgerr.FieldNodeID(string(id)))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, medkgerr.New(medkgerr.CodeFetchEntityNotFound, "entity not found",
			medkgerr.FieldNodeID(string(id)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, medkgerr.New(medkgerr.CodeFetchUpstreamFailure,
			fmt.Sprintf("entity endpoint returned %d", resp.StatusCode),
			medkgerr.FieldNodeID(string(id)))
	}

	return f.decode(id, body)
}

func (f *EntityFetcher) decode(id graph.NodeID, body []byte) (*Entity, error) {
	var doc struct {
		Entities map[string]json.RawMessage `json:"entities"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeFetchResponseInvalid, "decoding entity document",
			medkgerr.FieldNodeID(string(id)))
	}

	raw, ok := doc.Entities[string(id)]
	if !ok && len(doc.Entities) == 1 {
		// Redirected ids are returned under their target id.
		for target, r := range doc.Entities {
			f.logger.Debug("entity redirected", "node_id", id, "target", target)
			raw, ok = r, true
		}
	}
	if !ok {
		return nil, medkgerr.New(medkgerr.CodeFetchResponseInvalid, "entity missing from document",
			medkgerr.FieldNodeID(string(id)))
	}

	ent, err := ParseEntity(raw)
	if err != nil {
		return nil, medkgerr.Wrap(err, medkgerr.CodeFetchResponseInvalid, "decoding entity",
			medkgerr.FieldNodeID(string(id)))
	}
	return ent, nil
}

func retryable(err error) bool {
	return medkgerr.HasCode(err, medkgerr.CodeFetchUpstreamFailure)
}

func outcomeOf(err error) string {
	switch {
	case medkgerr.IsNotFound(err):
		return metrics.OutcomeNotFound
	case medkgerr.IsInvalidInput(err):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeFailure
	}
}
