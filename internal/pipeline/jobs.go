// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"sort"
	"sync"
)

// Jobs tracks running scene jobs and their cancel tokens. Tokens derive from
// the base context, so cancelling it (daemon shutdown) cancels every job.
type Jobs struct {
	base context.Context

	mu     sync.Mutex
	active map[string]*jobHandle
}

// jobHandle is one registration; release only removes its own handle.
type jobHandle struct {
	cancel context.CancelFunc
}

// NewJobs creates a registry rooted at base.
func NewJobs(base context.Context) *Jobs {
	return &Jobs{base: base, active: make(map[string]*jobHandle)}
}

// Register creates the cancel token for id. release must be called when the
// job ends. Registering an id that is still active cancels the older job and
// hands the id to the new one.
func (j *Jobs) Register(id string) (token context.Context, release func()) {
	ctx, cancel := context.WithCancel(j.base)
	h := &jobHandle{cancel: cancel}

	j.mu.Lock()
	if prev, ok := j.active[id]; ok {
		prev.cancel()
	}
	j.active[id] = h
	j.mu.Unlock()

	return ctx, func() {
		j.mu.Lock()
		if j.active[id] == h {
			delete(j.active, id)
		}
		j.mu.Unlock()
		cancel()
	}
}

// Cancel requests cooperative cancellation of id. It reports whether the job
// was running.
func (j *Jobs) Cancel(id string) bool {
	j.mu.Lock()
	h, ok := j.active[id]
	j.mu.Unlock()
	if ok {
		h.cancel()
	}
	return ok
}

// Active returns the ids of running jobs in sorted order.
func (j *Jobs) Active() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	ids := make([]string, 0, len(j.active))
	for id := range j.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
