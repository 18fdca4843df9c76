// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

// Package server exposes crawl metrics and upstream health over HTTP while a
// crawl runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	medkgerr "github.com/medkg-dev/medkg/pkg/errors"
	"github.com/medkg-dev/medkg/pkg/health"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HealthSource reports the current health of each upstream endpoint.
type HealthSource func() map[string]health.Metrics

// Server wraps a chi router serving /metrics and /health.
type Server struct {
	router chi.Router
	cfg    Config
	ln     net.Listener
}

// New creates a Server. gatherer supplies /metrics; upstreams may be nil.
func New(cfg Config, gatherer prometheus.Gatherer, upstreams HealthSource) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, medkgerr.New(medkgerr.CodeServerConfigInvalid, "listen address is required")
	}
	if gatherer == nil {
		return nil, medkgerr.New(medkgerr.CodeServerConfigInvalid, "metrics gatherer is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", healthHandler(upstreams))

	return &Server{router: r, cfg: cfg}, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HealthBody is the JSON body of the health endpoint.
type HealthBody struct {
	Status    string                    `json:"status"`
	Upstreams map[string]health.Metrics `json:"upstreams,omitempty"`
}

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

func healthHandler(upstreams HealthSource) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := HealthBody{Status: StatusOK}
		if upstreams != nil {
			body.Upstreams = upstreams()
			for _, m := range body.Upstreams {
				if !m.Available {
					body.Status = StatusDegraded
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Listen binds the configured address. Start calls it when needed.
func (s *Server) Listen() error {
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeMetricsServeFailure, "listening", medkgerr.FieldEndpoint(s.cfg.ListenAddr))
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.ListenAddr
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return medkgerr.Wrap(err, medkgerr.CodeMetricsServeFailure, "serving metrics")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return medkgerr.Wrap(err, medkgerr.CodeMetricsServeFailure, "shutting down")
	}

	return <-errCh
}
