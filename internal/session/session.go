// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session holds the time-boxed pipeline state shared between stages.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/mvgen/internal/storyboard"
)

// DefaultMaxAge is how long a session lives after creation.
const DefaultMaxAge = 30 * time.Minute

var (
	// ErrNotFound is returned for missing or expired sessions. It is an
	// expected, user-facing condition.
	ErrNotFound = errors.New("session not found or expired")
	// ErrInvalid rejects a session that would store a broken storyboard.
	ErrInvalid = errors.New("invalid session")
	// ErrEmptyID rejects an empty session id.
	ErrEmptyID = errors.New("session id is empty")
)

// Session is the state of one pipeline run.
type Session struct {
	Storyboard storyboard.Storyboard `json:"storyboard"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Storyboard = s.Storyboard.Clone()
	return s
}

// Store is a TTL-bounded mapping from session id to Session. Set replaces
// whole values; readers never observe a partially written session.
type Store interface {
	Set(ctx context.Context, id string, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Has(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	// Cleanup removes sessions older than maxAge and returns how many it removed.
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
	Close() error
}

// Clock supplies the current time.
type Clock func() time.Time

// prepare validates s and returns the normalized value to store. A zero
// CreatedAt is stamped with now.
func prepare(id string, s Session, now time.Time) (Session, error) {
	if id == "" {
		return Session{}, ErrEmptyID
	}
	if err := s.Storyboard.Validate(); err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	s.Storyboard = s.Storyboard.Normalize()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	return s, nil
}

func expired(s Session, now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(s.CreatedAt) > maxAge
}
