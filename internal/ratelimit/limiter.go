// SPDX-License-Identifier: MIT

// Package ratelimit throttles outbound calls to generation providers.
package ratelimit

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	rateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mvgen",
			Name:      "provider_ratelimit_waits_total",
			Help:      "Provider calls that had to wait for a rate limit token",
		},
		[]string{"operation"},
	)
)

// Config holds rate limiting configuration.
type Config struct {
	// Global limit shared by every operation (requests per second)
	GlobalRate  rate.Limit
	GlobalBurst int

	// Per-operation limits (e.g. "storyboard", "image"); missing entries are unlimited
	OperationRates map[string]rate.Limit
	OperationBurst map[string]int
}

// DefaultConfig returns a conservative single-lane configuration.
func DefaultConfig() Config {
	return Config{
		GlobalRate:  1,
		GlobalBurst: 1,
	}
}

// Limiter manages rate limits for provider calls.
// A zero or negative GlobalRate disables the global limit.
type Limiter struct {
	global *rate.Limiter

	mu    sync.RWMutex
	perOp map[string]*rate.Limiter
}

// New creates a new rate limiter with the given config
func New(config Config) *Limiter {
	l := &Limiter{perOp: make(map[string]*rate.Limiter)}

	globalRate, burst := config.GlobalRate, config.GlobalBurst
	if globalRate <= 0 {
		globalRate = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	l.global = rate.NewLimiter(globalRate, burst)

	for op, opRate := range config.OperationRates {
		opBurst := config.OperationBurst[op]
		if opBurst <= 0 {
			opBurst = 1
		}
		l.perOp[op] = rate.NewLimiter(opRate, opBurst)
	}
	return l
}

// Wait blocks until the operation may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, operation string) error {
	if !l.global.Allow() {
		rateLimitWaits.WithLabelValues(operation).Inc()
		if err := l.global.Wait(ctx); err != nil {
			return err
		}
	}

	l.mu.RLock()
	opLimiter, ok := l.perOp[operation]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	if opLimiter.Allow() {
		return nil
	}
	rateLimitWaits.WithLabelValues(operation).Inc()
	return opLimiter.Wait(ctx)
}

// SetRate changes the global rate at runtime (config hot reload).
func (l *Limiter) SetRate(r rate.Limit) {
	if r <= 0 {
		r = rate.Inf
	}
	l.global.SetLimit(r)
}
