// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.GetGauge().GetValue()
}

func getHistogramCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	h, ok := vec.WithLabelValues(labels...).(prometheus.Histogram)
	require.True(t, ok)
	metric := &dto.Metric{}
	require.NoError(t, h.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func TestBreakerState(t *testing.T) {
	SetBreakerState("imagegen-test", BreakerOpen)
	assert.Equal(t, 1.0, getGaugeValue(t, breakerOpen.WithLabelValues("imagegen-test")))

	SetBreakerState("imagegen-test", BreakerHalfOpen)
	assert.Equal(t, 0.5, getGaugeValue(t, breakerOpen.WithLabelValues("imagegen-test")))

	SetBreakerState("imagegen-test", BreakerClosed)
	assert.Equal(t, 0.0, getGaugeValue(t, breakerOpen.WithLabelValues("imagegen-test")))
}

func TestBreakerCounters(t *testing.T) {
	before := testutil.ToFloat64(breakerTrips.WithLabelValues("trip-test", "threshold_exceeded"))
	RecordBreakerTrip("trip-test", "threshold_exceeded")
	assert.Equal(t, before+1, testutil.ToFloat64(breakerTrips.WithLabelValues("trip-test", "threshold_exceeded")))

	beforeRej := testutil.ToFloat64(breakerRejected.WithLabelValues("trip-test"))
	RecordBreakerRejection("trip-test")
	assert.Equal(t, beforeRej+1, testutil.ToFloat64(breakerRejected.WithLabelValues("trip-test")))
}

func TestPipelineCounters(t *testing.T) {
	before := testutil.ToFloat64(scenesTotal.WithLabelValues(OutcomeFailed))
	RecordScene(OutcomeFailed)
	assert.Equal(t, before+1, testutil.ToFloat64(scenesTotal.WithLabelValues(OutcomeFailed)))

	beforeSB := testutil.ToFloat64(storyboardsTotal.WithLabelValues(OutcomeDegraded))
	RecordStoryboard(OutcomeDegraded)
	assert.Equal(t, beforeSB+1, testutil.ToFloat64(storyboardsTotal.WithLabelValues(OutcomeDegraded)))
}

func TestJobGauge(t *testing.T) {
	active := getGaugeValue(t, jobsActive)
	cancelled := testutil.ToFloat64(jobsTotal.WithLabelValues(OutcomeCancelled))

	JobStarted()
	assert.Equal(t, active+1, getGaugeValue(t, jobsActive))
	JobFinished(OutcomeCancelled)
	assert.Equal(t, active, getGaugeValue(t, jobsActive))
	assert.Equal(t, cancelled+1, testutil.ToFloat64(jobsTotal.WithLabelValues(OutcomeCancelled)))
}

func TestObserveProviderRequest(t *testing.T) {
	before := getHistogramCount(t, providerRequestDuration, "gemini", "image", OutcomeError)
	ObserveProviderRequest("gemini", "image", errors.New("boom"), 1500*time.Millisecond)
	assert.Equal(t, before+1, getHistogramCount(t, providerRequestDuration, "gemini", "image", OutcomeError))
}

func TestSessionMetrics(t *testing.T) {
	before := testutil.ToFloat64(sessionOpsTotal.WithLabelValues("memory", "get", "not_found"))
	ObserveSessionOp("memory", "get", "not_found", time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(sessionOpsTotal.WithLabelValues("memory", "get", "not_found")))

	expired := testutil.ToFloat64(sessionsExpired.WithLabelValues("memory"))
	RecordSessionsExpired("memory", 0)
	RecordSessionsExpired("memory", 3)
	assert.Equal(t, expired+3, testutil.ToFloat64(sessionsExpired.WithLabelValues("memory")))
}

func TestIllegalTransitionCounter(t *testing.T) {
	before := testutil.ToFloat64(illegalTransitions.WithLabelValues("scene_progress"))
	RecordIllegalTransition("scene_progress")
	assert.Equal(t, before+1, testutil.ToFloat64(illegalTransitions.WithLabelValues("scene_progress")))
}
