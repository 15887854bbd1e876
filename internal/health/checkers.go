// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"time"

	"github.com/ManuGH/mvgen/internal/resilience"
)

// FuncChecker adapts a probe function. A failing probe is unhealthy.
type FuncChecker struct {
	name  string
	probe func(ctx context.Context) error
}

// NewFuncChecker wraps probe under name.
func NewFuncChecker(name string, probe func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, probe: probe}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.probe(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SweepChecker reports on the session sweeper's last pass.
type SweepChecker struct {
	lastRun  func() (time.Time, string)
	interval time.Duration
	started  time.Time
	now      func() time.Time
}

// NewSweepChecker watches a sweeper running every interval.
func NewSweepChecker(lastRun func() (time.Time, string), interval time.Duration) *SweepChecker {
	return &SweepChecker{lastRun: lastRun, interval: interval, started: time.Now(), now: time.Now}
}

func (c *SweepChecker) Name() string { return "session_sweeper" }

// Check is degraded, never unhealthy: stale sessions only cost memory.
func (c *SweepChecker) Check(_ context.Context) CheckResult {
	last, lastErr := c.lastRun()
	stale := 3 * c.interval

	if last.IsZero() {
		if c.now().Sub(c.started) > stale {
			return CheckResult{Status: StatusDegraded, Message: "no sweep has run yet"}
		}
		return CheckResult{Status: StatusHealthy, Message: "waiting for first sweep"}
	}
	if lastErr != "" {
		return CheckResult{Status: StatusDegraded, Error: lastErr, Message: "last sweep failed"}
	}
	if c.now().Sub(last) > stale {
		return CheckResult{Status: StatusDegraded, Message: "last sweep is overdue"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last sweep successful"}
}

// ProviderChecker reports whether a generation provider can take calls.
type ProviderChecker struct {
	name       string
	configured bool
	breaker    *resilience.CircuitBreaker
}

// NewProviderChecker describes provider name; breaker may be nil.
func NewProviderChecker(name string, configured bool, breaker *resilience.CircuitBreaker) *ProviderChecker {
	return &ProviderChecker{name: name, configured: configured, breaker: breaker}
}

func (c *ProviderChecker) Name() string { return "provider_" + c.name }

// Check never fails readiness: a missing key is reported per request.
func (c *ProviderChecker) Check(_ context.Context) CheckResult {
	if !c.configured {
		return CheckResult{Status: StatusDegraded, Message: "API key not configured"}
	}
	if c.breaker != nil && c.breaker.State() == resilience.StateOpen {
		return CheckResult{Status: StatusDegraded, Message: "circuit breaker open"}
	}
	return CheckResult{Status: StatusHealthy}
}
