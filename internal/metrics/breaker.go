// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker states as exported by mvgen_provider_breaker_open.
const (
	BreakerClosed   = "closed"
	BreakerHalfOpen = "half-open"
	BreakerOpen     = "open"
)

var (
	breakerOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mvgen_provider_breaker_open",
		Help: "Provider breaker position: 0 closed, 0.5 probing, 1 open",
	}, []string{"provider"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_provider_breaker_trips_total",
		Help: "Times a provider breaker opened, by cause",
	}, []string{"provider", "cause"})

	breakerRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mvgen_provider_breaker_rejected_total",
		Help: "Provider calls refused while the breaker was open",
	}, []string{"provider"})
)

// SetBreakerState exports the breaker position for provider.
func SetBreakerState(provider, state string) {
	var v float64
	switch state {
	case BreakerOpen:
		v = 1
	case BreakerHalfOpen:
		v = 0.5
	}
	breakerOpen.WithLabelValues(provider).Set(v)
}

func RecordBreakerTrip(provider, cause string) {
	breakerTrips.WithLabelValues(provider, cause).Inc()
}

func RecordBreakerRejection(provider string) {
	breakerRejected.WithLabelValues(provider).Inc()
}
