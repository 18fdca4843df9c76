// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package config

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level medkg configuration.
type Config struct {
	Seeds     []SeedConfig   `mapstructure:"seeds"`
	Catalog   CatalogConfig  `mapstructure:"catalog"`
	Crawl     CrawlConfig    `mapstructure:"crawl"`
	Fetch     FetchConfig    `mapstructure:"fetch"`
	Enrich    EnrichConfig   `mapstructure:"enrich"`
	Related   RelatedConfig  `mapstructure:"related"`
	Pacing    PacingConfig   `mapstructure:"pacing"`
	UserAgent string         `mapstructure:"user_agent"`
	Output    OutputConfig   `mapstructure:"output"`
	Analysis  AnalysisConfig `mapstructure:"analysis"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Log       LogConfig      `mapstructure:"log"`
}

// SeedConfig is one seed condition. Seeds are a list rather than a map
// because viper folds map keys to lower case.
type SeedConfig struct {
	ID    string `mapstructure:"id"`
	Label string `mapstructure:"label"`
}

// CatalogConfig points at the relation catalog file.
type CatalogConfig struct {
	Path string `mapstructure:"path"` // empty uses the embedded catalog
}

// CrawlConfig controls the expansion.
type CrawlConfig struct {
	MaxDepth       int           `mapstructure:"max_depth"`
	BatchSize      int           `mapstructure:"batch_size"`
	Workers        int           `mapstructure:"workers"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PruneAtEnqueue bool          `mapstructure:"prune_at_enqueue"`
}

// FetchConfig controls the entity document fetcher.
type FetchConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// EnrichConfig controls the SPARQL label lookup.
type EnrichConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Language       string        `mapstructure:"language"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RelatedConfig controls seed widening through a SPARQL relation query.
type RelatedConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Relation string `mapstructure:"relation"`
	Limit    int    `mapstructure:"limit"`
}

// PacingConfig controls request pacing.
type PacingConfig struct {
	Strategy string        `mapstructure:"strategy"`
	Delay    time.Duration `mapstructure:"delay"`
	Rate     float64       `mapstructure:"rate"`
	Burst    int           `mapstructure:"burst"`
}

// OutputConfig selects where and how the snapshot is written.
type OutputConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// AnalysisConfig tunes the summary.
type AnalysisConfig struct {
	TopK int `mapstructure:"top_k"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"` // empty disables the endpoint
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Output formats.
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// DefaultSeeds are the chronic respiratory conditions crawled when no seeds
// are configured.
var DefaultSeeds = []SeedConfig{
	{ID: "Q199804", Label: "Asthma"},
	{ID: "Q199766", Label: "Chronic obstructive pulmonary disease"},
	{ID: "Q623067", Label: "Emphysema"},
	{ID: "Q1496829", Label: "Chronic bronchitis"},
	{ID: "Q1397391", Label: "Bronchiectasis"},
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	seeds := make([]map[string]any, 0, len(DefaultSeeds))
	for _, s := range DefaultSeeds {
		seeds = append(seeds, map[string]any{"id": s.ID, "label": s.Label})
	}
	v.SetDefault("seeds", seeds)
	v.SetDefault("catalog.path", "")
	v.SetDefault("crawl.max_depth", 4)
	v.SetDefault("crawl.batch_size", 50)
	v.SetDefault("crawl.workers", 1)
	v.SetDefault("crawl.timeout", "0s")
	v.SetDefault("crawl.prune_at_enqueue", false)
	v.SetDefault("fetch.endpoint", "https://www.wikidata.org/wiki/Special:EntityData")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_delay", "2s")
	v.SetDefault("fetch.request_timeout", "30s")
	v.SetDefault("enrich.endpoint", "https://query.wikidata.org/sparql")
	v.SetDefault("enrich.language", "en")
	v.SetDefault("enrich.request_timeout", "30s")
	v.SetDefault("related.enabled", false)
	v.SetDefault("related.relation", "P279")
	v.SetDefault("related.limit", 50)
	v.SetDefault("pacing.strategy", "fixed")
	v.SetDefault("pacing.delay", "100ms")
	v.SetDefault("pacing.rate", 10.0)
	v.SetDefault("pacing.burst", 1)
	v.SetDefault("user_agent", "MedicalKGExtractor/1.0 (research project)")
	v.SetDefault("output.path", "enhanced_copd_kg_4hops.json")
	v.SetDefault("output.format", FormatJSON)
	v.SetDefault("analysis.top_k", 20)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// SetupEnv binds MEDKG_-prefixed environment variables, with "." in keys
// replaced by "_" (MEDKG_CRAWL_MAX_DEPTH).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("MEDKG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix MEDKG_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, medkgerr.Wrap(err, medkgerr.CodeConfigLoadReadFailure, "reading config", medkgerr.FieldPath(path))
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, medkgerr.Errorf(medkgerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, medkgerr.Join(medkgerr.CodeConfigValidateInvalidValue, "validating config", errs...)
	}

	return &cfg, nil
}

var (
	seedIDPattern     = regexp.MustCompile(`^Q[1-9][0-9]*$`)
	relationIDPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)
)

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateSeeds()...)
	errs = append(errs, c.validateCrawl()...)
	errs = append(errs, c.validateUpstreams()...)
	errs = append(errs, c.validatePacing()...)
	errs = append(errs, c.validateOutput()...)
	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func invalid(format string, args ...any) error {
	return medkgerr.Errorf(medkgerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateSeeds() []error {
	var errs []error

	seen := make(map[string]bool, len(c.Seeds))
	for i, s := range c.Seeds {
		if !seedIDPattern.MatchString(s.ID) {
			errs = append(errs, invalid("seeds[%d].id must be an item id like Q199804, got %q", i, s.ID))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, invalid("seeds[%d].id %q is listed more than once", i, s.ID))
		}
		seen[s.ID] = true
	}

	return errs
}

func (c *Config) validateCrawl() []error {
	var errs []error

	if c.Crawl.MaxDepth < 0 {
		errs = append(errs, invalid("crawl.max_depth must be >= 0, got %d", c.Crawl.MaxDepth))
	}
	if c.Crawl.BatchSize < 1 || c.Crawl.BatchSize > 50 {
		errs = append(errs, invalid("crawl.batch_size must be between 1 and 50, got %d", c.Crawl.BatchSize))
	}
	if c.Crawl.Workers < 1 {
		errs = append(errs, invalid("crawl.workers must be >= 1, got %d", c.Crawl.Workers))
	}
	if c.Crawl.Timeout < 0 {
		errs = append(errs, invalid("crawl.timeout must not be negative, got %s", c.Crawl.Timeout))
	}
	if c.Analysis.TopK < 1 {
		errs = append(errs, invalid("analysis.top_k must be >= 1, got %d", c.Analysis.TopK))
	}

	return errs
}

func validateEndpoint(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}

func (c *Config) validateUpstreams() []error {
	var errs []error

	if err := validateEndpoint("fetch.endpoint", c.Fetch.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, invalid("fetch.max_attempts must be >= 1, got %d", c.Fetch.MaxAttempts))
	}
	if c.Fetch.RetryDelay < 0 {
		errs = append(errs, invalid("fetch.retry_delay must not be negative, got %s", c.Fetch.RetryDelay))
	}
	if c.Fetch.RequestTimeout <= 0 {
		errs = append(errs, invalid("fetch.request_timeout must be greater than 0, got %s", c.Fetch.RequestTimeout))
	}

	if err := validateEndpoint("enrich.endpoint", c.Enrich.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if c.Enrich.Language == "" {
		errs = append(errs, invalid("enrich.language must not be empty"))
	}
	if c.Enrich.RequestTimeout <= 0 {
		errs = append(errs, invalid("enrich.request_timeout must be greater than 0, got %s", c.Enrich.RequestTimeout))
	}

	if c.Related.Enabled {
		if !relationIDPattern.MatchString(c.Related.Relation) {
			errs = append(errs, invalid("related.relation must be a property id like P279, got %q", c.Related.Relation))
		}
		if c.Related.Limit < 1 {
			errs = append(errs, invalid("related.limit must be >= 1, got %d", c.Related.Limit))
		}
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, invalid("user_agent must not be empty"))
	}

	return errs
}

func (c *Config) validatePacing() []error {
	var errs []error

	switch c.Pacing.Strategy {
	case "fixed":
		if c.Pacing.Delay < 0 {
			errs = append(errs, invalid("pacing.delay must not be negative, got %s", c.Pacing.Delay))
		}
	case "token_bucket":
		if c.Pacing.Rate <= 0 {
			errs = append(errs, invalid("pacing.rate must be greater than 0, got %g", c.Pacing.Rate))
		}
		if c.Pacing.Burst < 1 {
			errs = append(errs, invalid("pacing.burst must be >= 1, got %d", c.Pacing.Burst))
		}
	case "none":
	default:
		errs = append(errs, invalid("pacing.strategy must be one of [fixed, token_bucket, none], got %q", c.Pacing.Strategy))
	}

	return errs
}

func (c *Config) validateOutput() []error {
	var errs []error

	if c.Output.Path == "" {
		errs = append(errs, invalid("output.path must not be empty"))
	}
	validFormats := map[string]bool{FormatJSON: true, FormatSQLite: true}
	if !validFormats[c.Output.Format] {
		errs = append(errs, invalid("output.format must be one of [json, sqlite], got %q", c.Output.Format))
	}

	return errs
}

func (c *Config) validateMetrics() []error {
	if c.Metrics.Listen == "" {
		return nil
	}

	var errs []error
	_, portStr, err := net.SplitHostPort(c.Metrics.Listen)
	if err != nil {
		errs = append(errs, invalid("metrics.listen must be a valid host:port address, got %q: %w", c.Metrics.Listen, err))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("metrics.listen port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		errs = append(errs, invalid("metrics.listen port must be between 0 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, invalid("log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, invalid("log.format must be one of [text, json], got %q", c.Log.Format))
	}

	return errs
}

// SeedIDs returns the configured seed ids in order.
func (c *Config) SeedIDs() []string {
	ids := make([]string, 0, len(c.Seeds))
	for _, s := range c.Seeds {
		ids = append(ids, s.ID)
	}
	return ids
}
