// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/mvgen/internal/metrics"
)

// Instrumented decorates a Store with Prometheus metrics.
type Instrumented struct {
	next    Store
	backend string
}

// NewInstrumented wraps next; backend labels the metrics.
func NewInstrumented(next Store, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.ObserveSessionOp(s.backend, op, outcome, time.Since(start))
}

func (s *Instrumented) Set(ctx context.Context, id string, sess Session) error {
	start := time.Now()
	err := s.next.Set(ctx, id, sess)
	s.observe("set", start, err)
	return err
}

func (s *Instrumented) Get(ctx context.Context, id string) (Session, error) {
	start := time.Now()
	v, err := s.next.Get(ctx, id)
	s.observe("get", start, err)
	return v, err
}

func (s *Instrumented) Has(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Has(ctx, id)
	s.observe("has", start, err)
	return ok, err
}

func (s *Instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}

func (s *Instrumented) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	start := time.Now()
	n, err := s.next.Cleanup(ctx, maxAge)
	s.observe("cleanup", start, err)
	metrics.RecordSessionsExpired(s.backend, n)
	return n, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}

// Unwrap returns the decorated store.
func (s *Instrumented) Unwrap() Store { return s.next }
