// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/config"
	"github.com/medkg-dev/medkg/internal/expand"
	"github.com/medkg-dev/medkg/internal/pacing"
	"github.com/medkg-dev/medkg/internal/report"
	"github.com/medkg-dev/medkg/internal/server"
	_ "github.com/medkg-dev/medkg/internal/store/sqlite" // register sqlite backend
	"github.com/medkg-dev/medkg/internal/wikidata"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/medkg-dev/medkg/pkg/health"
	"github.com/medkg-dev/medkg/pkg/metrics"
)

// Crawler holds every subsystem a crawl run needs.
type Crawler struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Fetcher  *wikidata.EntityFetcher
	Enricher *wikidata.SPARQLEnricher
	Expander *expand.Expander
	Metrics  *metrics.Metrics
	Reporter *report.Reporter
	// Server is nil unless metrics.listen is set.
	Server *server.Server

	logger *slog.Logger
}

// WireCrawler creates all subsystems and wires them together. Console
// output goes to out.
func WireCrawler(cfg *config.Config, out io.Writer) (*Crawler, error) {
	logger := slog.Default()

	// 1. Relation catalog.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	// 2. Metrics registry shared by the upstream clients and the expander.
	m := metrics.New()

	// 3. Upstream clients.
	fetcher, err := wikidata.NewEntityFetcher(wikidata.FetcherConfig{
		Endpoint:       cfg.Fetch.Endpoint,
		UserAgent:      cfg.UserAgent,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		RetryDelay:     cfg.Fetch.RetryDelay,
		RequestTimeout: cfg.Fetch.RequestTimeout,
	}, wikidata.WithFetchMetrics(m), wikidata.WithFetchLogger(logger))
	if err != nil {
		return nil, medkgerr.Wrapf(err, medkgerr.CodeCLISetupFailure, "creating entity fetcher")
	}

	enricher, err := wikidata.NewSPARQLEnricher(wikidata.EnricherConfig{
		Endpoint:       cfg.Enrich.Endpoint,
		UserAgent:      cfg.UserAgent,
		Language:       cfg.Enrich.Language,
		RequestTimeout: cfg.Enrich.RequestTimeout,
	}, wikidata.WithEnrichMetrics(m), wikidata.WithEnrichLogger(logger))
	if err != nil {
		return nil, medkgerr.Wrapf(err, medkgerr.CodeCLISetupFailure, "creating metadata enricher")
	}

	// 4. Request pacing.
	pacer, err := pacing.New(pacing.Config{
		Strategy: pacing.Strategy(cfg.Pacing.Strategy),
		Delay:    cfg.Pacing.Delay,
		Rate:     cfg.Pacing.Rate,
		Burst:    cfg.Pacing.Burst,
	})
	if err != nil {
		return nil, err
	}

	// 5. Expander with progress and metrics observers.
	reporter := report.New(out)
	expander, err := expand.New(expand.Config{
		MaxDepth:       cfg.Crawl.MaxDepth,
		BatchSize:      cfg.Crawl.BatchSize,
		Workers:        cfg.Crawl.Workers,
		PruneAtEnqueue: cfg.Crawl.PruneAtEnqueue,
	}, fetcher, enricher, cat,
		expand.WithPacer(pacer),
		expand.WithObservers(expand.MetricsObserver{M: m}, reporter.Progress()),
		expand.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		Config:   cfg,
		Catalog:  cat,
		Fetcher:  fetcher,
		Enricher: enricher,
		Expander: expander,
		Metrics:  m,
		Reporter: reporter,
		logger:   logger,
	}

	// 6. Optional metrics endpoint.
	if cfg.Metrics.Listen != "" {
		srv, err := server.New(server.Config{ListenAddr: cfg.Metrics.Listen}, m.Registry(), c.UpstreamHealth)
		if err != nil {
			return nil, err
		}
		c.Server = srv
	}

	return c, nil
}

// UpstreamHealth reports the health of both upstream endpoints.
func (c *Crawler) UpstreamHealth() map[string]health.Metrics {
	return map[string]health.Metrics{
		"entity": c.Fetcher.Health(),
		"sparql": c.Enricher.Health(),
	}
}
