// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package main

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medkg-dev/medkg/internal/analysis"
	"github.com/medkg-dev/medkg/internal/catalog"
	"github.com/medkg-dev/medkg/internal/config"
	"github.com/medkg-dev/medkg/internal/graph"
	"github.com/medkg-dev/medkg/internal/snapshot"
	"github.com/medkg-dev/medkg/internal/store"
	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Expand the seed conditions into a subgraph snapshot",
		Long: "Fetch the seed conditions and their related entities breadth-first up to the maximum depth, " +
			"resolve labels, analyse the result and write a single snapshot.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, v)
		},
	}

	f := cmd.Flags()
	f.Int("max-depth", 0, "maximum hop distance from the seeds")
	f.Int("batch-size", 0, "frontier entries per batch (1-50)")
	f.Int("workers", 0, "concurrent fetches per batch")
	f.StringP("output", "o", "", "snapshot path")
	f.String("format", "", "snapshot format (json, sqlite)")
	f.Duration("timeout", 0, "stop the crawl after this long and save what was collected (0 = no limit)")
	f.String("metrics-listen", "", "serve /metrics and /health on host:port while crawling")
	f.Bool("related", false, "add items related to the seeds before crawling")
	f.StringArray("seed", nil, "seed condition as ID or ID=Label (repeatable, replaces configured seeds)")

	for key, flag := range map[string]string{
		"crawl.max_depth":  "max-depth",
		"crawl.batch_size": "batch-size",
		"crawl.workers":    "workers",
		"crawl.timeout":    "timeout",
		"output.path":      "output",
		"output.format":    "format",
		"metrics.listen":   "metrics-listen",
		"related.enabled":  "related",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func runCrawl(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	seedFlags, _ := cmd.Flags().GetStringArray("seed")
	if len(seedFlags) > 0 {
		if cfg.Seeds, err = parseSeeds(seedFlags); err != nil {
			return err
		}
		if errs := cfg.Validate(); len(errs) > 0 {
			return medkgerr.Join(medkgerr.CodeConfigValidateInvalidValue, "validating config", errs...)
		}
	}

	c, err := WireCrawler(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	_, err = c.Start(cmd.Context())
	return err
}

// parseSeeds turns "Q1=Label" or "Q1" values into seed configs.
func parseSeeds(values []string) ([]config.SeedConfig, error) {
	seeds := make([]config.SeedConfig, 0, len(values))
	for _, raw := range values {
		id, label, _ := strings.Cut(raw, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, medkgerr.Errorf(medkgerr.CodeCLIInputInvalid, "seed %q has no id", raw)
		}
		seeds = append(seeds, config.SeedConfig{ID: id, Label: strings.TrimSpace(label)})
	}
	return seeds, nil
}

// Start runs the crawl, serving metrics alongside it when configured. The
// server is shut down once the crawl finishes.
func (c *Crawler) Start(ctx context.Context) (*snapshot.Document, error) {
	if c.Server == nil {
		return c.Run(ctx)
	}

	// Bind before crawling so a busy port fails the command up front.
	if err := c.Server.Listen(); err != nil {
		return nil, err
	}
	c.logger.Info("serving metrics", "addr", c.Server.Addr())

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var doc *snapshot.Document
	g.Go(func() error {
		return c.Server.Start(srvCtx)
	})
	g.Go(func() error {
		defer stopServer()
		var err error
		doc, err = c.Run(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Run performs one crawl: seed widening, expansion, analysis, snapshot
// write and console report. Cancelling ctx ends the expansion early; what
// was collected is still written.
func (c *Crawler) Run(ctx context.Context) (*snapshot.Document, error) {
	started := time.Now()
	cfg := c.Config

	conditions := make(map[graph.NodeID]string, len(cfg.Seeds))
	meta := graph.NewMetadataTable()
	seeds := make([]graph.NodeID, 0, len(cfg.Seeds))
	for _, s := range cfg.Seeds {
		id := graph.NodeID(s.ID)
		seeds = append(seeds, id)
		conditions[id] = s.Label
		if s.Label == "" {
			conditions[id] = s.ID
			continue
		}
		meta.Put(id, graph.Metadata{Label: s.Label})
	}

	seeds = append(seeds, c.relatedSeeds(ctx, seeds)...)

	c.Reporter.Start(conditions, len(seeds))

	runCtx := ctx
	if cfg.Crawl.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Crawl.Timeout)
		defer cancel()
	}

	sg, stats := c.Expander.Expand(runCtx, seeds, meta)
	if stats.Interrupted {
		c.logger.Warn("crawl interrupted, saving partial subgraph", "nodes", len(sg.Order), "edges", len(sg.Edges))
	}

	a := analysis.Analyze(sg, c.Catalog, analysis.Options{
		InstanceOf: catalog.InstanceOf,
		TopK:       cfg.Analysis.TopK,
	})

	doc := snapshot.Build(sg, c.Catalog, snapshot.Metadata{
		RunID:          uuid.NewString(),
		GeneratedAt:    time.Now().UTC(),
		SeedConditions: conditions,
		Seeds:          seeds,
		MaxDepth:       cfg.Crawl.MaxDepth,
		Analysis:       a,
		Stats:          stats,
		UpstreamHealth: c.UpstreamHealth(),
	})

	// The write must survive an interrupted crawl.
	if err := c.write(context.WithoutCancel(ctx), doc); err != nil {
		return nil, err
	}

	c.Reporter.Saved(cfg.Output.Path, stats, time.Since(started))
	c.Reporter.Summary(a)
	return doc, nil
}

// relatedSeeds widens the seed set when enabled. Any failure yields no
// extra seeds.
func (c *Crawler) relatedSeeds(ctx context.Context, seeds []graph.NodeID) []graph.NodeID {
	rc := c.Config.Related
	if !rc.Enabled || len(seeds) == 0 {
		return nil
	}

	related, err := c.Enricher.Related(ctx, seeds, graph.RelationID(rc.Relation), rc.Limit)
	if err != nil {
		c.logger.Warn("related condition lookup failed", "relation", rc.Relation, "error", err)
		return nil
	}

	extra := make([]graph.NodeID, 0, len(related))
	for _, id := range related {
		if !slices.Contains(seeds, id) {
			extra = append(extra, id)
		}
	}
	c.logger.Info("added related conditions", "relation", rc.Relation, "count", len(extra))
	return extra
}

func (c *Crawler) write(ctx context.Context, doc *snapshot.Document) error {
	out := c.Config.Output
	switch out.Format {
	case config.FormatSQLite:
		return snapshot.WriteStore(ctx, &store.StorageConfig{Backend: "sqlite"}, out.Path, doc)
	default:
		return snapshot.Write(out.Path, doc)
	}
}
