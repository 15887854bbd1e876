// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "mvgen_http_request_duration_seconds",
		Help: "Time to serve a request, by route; scene streams are observed separately",
		// Storyboards take seconds, protagonist batches up to a few minutes.
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"method", "route", "code"})

	streamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mvgen_http_stream_duration_seconds",
		Help:    "Lifetime of server-sent event responses",
		Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"route"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mvgen_http_requests_in_flight",
		Help: "Requests currently being served, streams included",
	})

	responseBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_http_response_bytes_total",
		Help: "Response body bytes written, by route",
	}, []string{"route"})
)

// Metrics observes every request under its chi route pattern.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			rec := newRecorder(w)
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start).Seconds()

			route := routePattern(r)
			responseBytes.WithLabelValues(route).Add(float64(rec.size))
			if rec.streaming() {
				streamDuration.WithLabelValues(route).Observe(elapsed)
				return
			}
			requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Observe(elapsed)
		})
	}
}
