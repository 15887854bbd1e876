// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func expiredTotal(t *testing.T, backend string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "mvgen_sessions_expired_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "backend" && lp.GetValue() == backend {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	st := NewInstrumented(NewMemoryStore(WithClock(clock.Now)), "sweep-test")

	require.NoError(t, st.Set(ctx, "a", Session{Storyboard: board("a", 1)}))
	require.NoError(t, st.Set(ctx, "b", Session{Storyboard: board("b", 1)}))
	clock.Advance(31 * time.Minute)
	require.NoError(t, st.Set(ctx, "c", Session{Storyboard: board("c", 1)}))

	sw := NewSweeper(st, 0, 0)
	assert.Equal(t, DefaultSweepInterval, sw.Interval)
	assert.Equal(t, DefaultMaxAge, sw.MaxAge)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mem := st.Unwrap().(*MemoryStore)
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 2.0, expiredTotal(t, "sweep-test"))
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	clock := newFakeClock()
	mem := NewMemoryStore(WithClock(clock.Now))
	require.NoError(t, mem.Set(ctx, "a", Session{Storyboard: board("a", 1)}))
	clock.Advance(time.Hour)

	sw := NewSweeper(mem, 5*time.Millisecond, time.Minute)
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	require.Eventually(t, func() bool { return mem.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
