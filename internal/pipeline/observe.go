// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "mvgen.pipeline"

type instruments struct {
	scenes metric.Int64Counter
	jobs   metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     instruments
)

// otelInstruments lazily creates the OpenTelemetry counters. The global
// meter provider delegates, so instruments created before telemetry setup
// still report once a real provider is installed.
func otelInstruments() instruments {
	instOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		inst.scenes, _ = meter.Int64Counter("mvgen.pipeline.scenes",
			metric.WithDescription("Scene units processed by outcome"))
		inst.jobs, _ = meter.Int64Counter("mvgen.pipeline.jobs",
			metric.WithDescription("Scene jobs by terminal outcome"))
	})
	return inst
}

func recordSceneOutcome(ctx context.Context, outcome string) {
	if c := otelInstruments().scenes; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func recordJobOutcome(ctx context.Context, outcome string) {
	if c := otelInstruments().jobs; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
