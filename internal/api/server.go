// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the HTTP surface: storyboard and protagonist calls,
// the streamed scene job, job cancellation and the operational probes.
package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/mvgen/internal/api/middleware"
	"github.com/ManuGH/mvgen/internal/health"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HeaderJobID carries the scene job's cancel handle on the stream response.
const HeaderJobID = "X-Job-ID"

const (
	maxJSONBody   = 1 << 20
	maxStreamBody = 32 << 20 // protagonistImageUrl may be an inline data URL
)

// Pipeline is the orchestrator surface the handlers drive.
type Pipeline interface {
	CreateStoryboard(ctx context.Context, lyrics string, sceneCount int) (pipeline.StoryboardResult, error)
	RegenerateStoryboard(ctx context.Context, sessionID, lyrics string, sceneCount int) (pipeline.StoryboardResult, error)
	GetStoryboard(ctx context.Context, sessionID string) (storyboard.Storyboard, error)
	UpdateStoryboard(ctx context.Context, sessionID string, sb storyboard.Storyboard) error
	GenerateProtagonists(ctx context.Context, sessionID string) ([]pipeline.ProtagonistCandidate, error)
	GenerateScenes(ctx context.Context, req pipeline.ScenesRequest, em pipeline.Emitter) (pipeline.Result, error)
	NewJobID() string
	CancelJob(jobID string) bool
}

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string
	EnableCSRF     bool
	RateLimitRPM   int
	// TracingService enables request spans under this service name.
	TracingService string
}

// Server wires the pipeline and probes into a chi router.
type Server struct {
	cfg      Config
	pipeline Pipeline
	health   *health.Manager
	metrics  http.Handler
}

// New returns a Server. hm may be nil, in which case the probes report
// healthy with no component checks.
func New(cfg Config, p Pipeline, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{cfg: cfg, pipeline: p, health: hm, metrics: promhttp.Handler()}
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableCSRF:     s.cfg.EnableCSRF,
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})
	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/regenerate-storyboard", s.handleRegenerate)
		r.Get("/storyboard/{sessionId}", s.handleGetStoryboard)
		r.Post("/update-storyboard", s.handleUpdateStoryboard)
		r.Post("/generate-protagonist", s.handleGenerateProtagonist)
		r.Post("/generate-final", s.handleGenerateFinal)
		r.Post("/jobs/{jobId}/cancel", s.handleCancelJob)
	})
}
