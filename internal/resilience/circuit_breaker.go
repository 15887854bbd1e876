// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to external generation providers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/mvgen/internal/metrics"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = State(metrics.BreakerClosed)
	StateHalfOpen State = State(metrics.BreakerHalfOpen)
	StateOpen     State = State(metrics.BreakerOpen)
)

// ErrCircuitOpen matches every *OpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned instead of calling the provider.
type OpenError struct {
	Name    string
	RetryIn time.Duration // zero while a half-open probe is in flight
}

func (e *OpenError) Error() string {
	if e.RetryIn > 0 {
		return fmt.Sprintf("%s unavailable, retry in %s", e.Name, e.RetryIn.Round(time.Second))
	}
	return e.Name + " unavailable, probe in progress"
}

func (e *OpenError) Is(target error) bool { return target == ErrCircuitOpen }

// Clock is the time source; tests step it by hand.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive counted failures. Once
// the cooldown has passed it admits a single probe call; the probe's result
// closes or reopens it.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	clock     Clock
	counts    func(error) bool

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

type Option func(*CircuitBreaker)

func WithClock(c Clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithFailureFilter selects the errors that count as provider failures.
// By default everything but context cancellation counts.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = fn }
}

// NewCircuitBreaker returns a closed breaker. Non-positive threshold and
// cooldown fall back to 3 failures and 30s.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: cmpOr(threshold, 3),
		cooldown:  cmpOr(cooldown, 30*time.Second),
		clock:     wallClock{},
		counts:    func(err error) bool { return !errors.Is(err, context.Canceled) },
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetBreakerState(name, string(StateClosed))
	return cb
}

func cmpOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Do runs fn unless the breaker refuses the call. A done ctx is returned
// as is and never counts against the provider.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.admit(); err != nil {
		metrics.RecordBreakerRejection(cb.name)
		return err
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	wasProbe := cb.probing
	cb.probing = false
	switch {
	case err == nil:
		cb.failures = 0
		cb.setState(StateClosed)
	case !cb.counts(err):
	case wasProbe:
		metrics.RecordBreakerTrip(cb.name, "probe_failed")
		cb.setState(StateOpen)
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.threshold {
			metrics.RecordBreakerTrip(cb.name, "threshold_exceeded")
			cb.setState(StateOpen)
		}
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if wait := cb.cooldown - cb.clock.Now().Sub(cb.openedAt); wait > 0 {
			return &OpenError{Name: cb.name, RetryIn: wait}
		}
		cb.setState(StateHalfOpen)
	case StateHalfOpen:
		if cb.probing {
			return &OpenError{Name: cb.name}
		}
	default:
		return nil
	}
	cb.probing = true
	return nil
}

// setState requires cb.mu.
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if s == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetBreakerState(cb.name, string(s))
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
