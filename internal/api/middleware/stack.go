// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package middleware holds the HTTP ingress stack of the mvgen API.
package middleware

import (
	"net/http"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	AllowedOrigins []string
	// EnableCSRF rejects browser POSTs from origins outside AllowedOrigins.
	EnableCSRF bool
	CSP        string

	EnableMetrics  bool
	TracingService string // empty disables tracing

	RateLimitRPM       int // per client IP; 0 disables the limiter
	RateLimitWhitelist []string
}

// Layers returns the middleware chain in application order. Panics are
// recovered first and the request ID exists before anything logs; the
// limiter runs last so rejected requests are still logged and measured.
func Layers(cfg StackConfig) []func(http.Handler) http.Handler {
	layers := []func(http.Handler) http.Handler{
		Recoverer,
		RequestID,
		CORS(cfg.AllowedOrigins),
	}
	if cfg.EnableCSRF {
		layers = append(layers, CSRFProtection(cfg.AllowedOrigins))
	}
	layers = append(layers, SecurityHeaders(cfg.CSP))
	if cfg.EnableMetrics {
		layers = append(layers, Metrics())
	}
	if cfg.TracingService != "" {
		layers = append(layers, Tracing(cfg.TracingService))
	}
	layers = append(layers, log.Middleware())
	if cfg.RateLimitRPM > 0 {
		layers = append(layers, APIRateLimit(cfg.RateLimitRPM, cfg.RateLimitWhitelist))
	}
	return layers
}

// NewRouter returns a chi router with Layers(cfg) installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Layers(cfg)...)
	return r
}
