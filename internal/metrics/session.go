// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_session_store_ops_total",
		Help: "Session store operations by backend, operation and outcome",
	}, []string{"backend", "op", "outcome"}) // outcome=ok|not_found|error

	sessionOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mvgen_session_store_op_duration_seconds",
		Help:    "Session store operation latency",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"backend", "op"})

	sessionsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_sessions_expired_total",
		Help: "Sessions removed by the background sweep",
	}, []string{"backend"})
)

// ObserveSessionOp records one session store call.
func ObserveSessionOp(backend, op, outcome string, d time.Duration) {
	sessionOpsTotal.WithLabelValues(backend, op, outcome).Inc()
	sessionOpDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

// RecordSessionsExpired adds n swept sessions.
func RecordSessionsExpired(backend string, n int) {
	if n <= 0 {
		return
	}
	sessionsExpired.WithLabelValues(backend).Add(float64(n))
}
