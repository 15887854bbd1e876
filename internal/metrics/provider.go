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
	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mvgen_provider_request_duration_seconds",
		Help:    "Latency of calls to external generation providers",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"provider", "operation", "outcome"})

	referenceFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mvgen_reference_fetch_failures_total",
		Help: "Reference image fetches that failed and degraded to text-only generation",
	})
)

// ObserveProviderRequest records the latency of one provider call.
func ObserveProviderRequest(provider, operation string, err error, d time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	providerRequestDuration.WithLabelValues(provider, operation, outcome).Observe(d.Seconds())
}

// RecordReferenceFetchFailure counts a dropped reference image.
func RecordReferenceFetchFailure() {
	referenceFetchFailures.Inc()
}
