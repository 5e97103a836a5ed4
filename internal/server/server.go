/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/lofield/internal/config"
	"github.com/friendsincode/lofield/internal/playout"
	"github.com/friendsincode/lofield/internal/telemetry"
)

// Server exposes the operator surface: health, metrics, and the HLS output
// directory. The public listener API lives elsewhere; this is what ops and
// standard HLS clients need from the engine itself.
type Server struct {
	cfg       *config.Config
	scheduler *playout.Scheduler
	logger    zerolog.Logger
	router    chi.Router
}

// New builds the HTTP surface around a running scheduler.
func New(cfg *config.Config, scheduler *playout.Scheduler, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", telemetry.Handler())
	r.Handle("/stream/*", http.StripPrefix("/stream/", http.FileServer(http.Dir(cfg.StreamOutputDir))))
	s.router = r
	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.scheduler.GetHealth(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "running" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode health response")
	}
}
