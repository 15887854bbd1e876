// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Values are copied on the way
// in and out, so callers can never mutate a stored session.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]Session
	now    Clock
	maxAge time.Duration
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now.
func WithClock(c Clock) MemoryOption {
	return func(s *MemoryStore) { s.now = c }
}

// WithMaxAge makes Get and Has treat sessions older than d as gone before the
// sweeper removes them.
func WithMaxAge(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.maxAge = d }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Session), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, id string, sess Session) error {
	v, err := prepare(id, sess, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[id] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	v, ok := s.items[id]
	s.mu.RUnlock()
	if !ok || expired(v, s.now(), s.maxAge) {
		return Session{}, ErrNotFound
	}
	return v.Clone(), nil
}

func (s *MemoryStore) Has(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, v := range s.items {
		if now.Sub(v.CreatedAt) > maxAge {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) Close() error { return nil }
