// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
)

// DefaultSweepInterval is how often the sweeper runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically removes expired sessions from a Store.
type Sweeper struct {
	Store    Store
	Interval time.Duration
	MaxAge   time.Duration

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

// NewSweeper returns a sweeper with defaults applied.
func NewSweeper(st Store, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Sweeper{Store: st, Interval: interval, MaxAge: maxAge}
}

// Run sweeps every Interval until ctx is cancelled. It always returns nil
// so it can sit in an errgroup without tearing the daemon down.
func (s *Sweeper) Run(ctx context.Context) error {
	logger := log.WithComponent("session")
	logger.Info().
		Str(log.FieldEvent, "session.sweeper.start").
		Dur("interval", s.Interval).
		Dur("max_age", s.MaxAge).
		Msg("session sweeper started")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "session.sweeper.stop").Msg("session sweeper stopped")
			return nil
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single cleanup pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.Store.Cleanup(ctx, s.MaxAge)
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	logger := log.WithComponent("session")
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Str(log.FieldEvent, "session.sweep.failed").Msg("session sweep failed")
		}
		return n, err
	}
	if n > 0 {
		logger.Info().
			Str(log.FieldEvent, "session.expired").
			Int("removed", n).
			Msg("expired sessions removed")
	}
	return n, nil
}

// LastRun returns the time of the last pass and its error text, if any.
func (s *Sweeper) LastRun() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
