// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm runs a table-driven state machine over string-typed states
// and events.
package fsm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition means the current state has no edge for the event.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition is one edge of the table.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// Step is an applied transition as seen by hooks.
type Step[S ~string, E ~string] struct {
	From  S
	To    S
	Event E
}

type edgeKey[S ~string, E ~string] struct {
	from  S
	event E
}

// Machine is safe for concurrent use. Hooks run outside the lock, in
// registration order, after the state changed.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	edges map[edgeKey[S, E]]S
	hooks []func(context.Context, Step[S, E])
}

// New builds a machine in initial. The table must not map one state and
// event to two targets.
func New[S ~string, E ~string](initial S, table []Transition[S, E]) (*Machine[S, E], error) {
	edges := make(map[edgeKey[S, E]]S, len(table))
	for _, t := range table {
		k := edgeKey[S, E]{t.From, t.Event}
		if prev, dup := edges[k]; dup {
			return nil, fmt.Errorf("duplicate transition %s --%s--> %s and %s", t.From, t.Event, prev, t.To)
		}
		edges[k] = t.To
	}
	return &Machine[S, E]{state: initial, edges: edges}, nil
}

// OnTransition adds a hook.
func (m *Machine[S, E]) OnTransition(fn func(context.Context, Step[S, E])) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether Fire(event) would succeed now.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[edgeKey[S, E]{m.state, event}]
	return ok
}

// Fire applies event and returns the new state, or the unchanged state and
// ErrInvalidTransition.
func (m *Machine[S, E]) Fire(ctx context.Context, event E) (S, error) {
	m.mu.Lock()
	from := m.state
	to, ok := m.edges[edgeKey[S, E]{from, event}]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	m.state = to
	hooks := m.hooks
	m.mu.Unlock()

	step := Step[S, E]{From: from, To: to, Event: event}
	for _, h := range hooks {
		h(ctx, step)
	}
	return to, nil
}
