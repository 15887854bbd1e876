// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package telemetry provides OpenTelemetry tracing utilities for the mvgen daemon.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects the OTLP exporter and sampling.
type Config struct {
	// Enabled turns span export on.
	Enabled bool

	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType string // grpc | http
	Endpoint     string // OTLP collector host:port
	SamplingRate float64 // root span ratio, 0..1

	// MetricReader, when set, installs a global MeterProvider fed by this reader.
	MetricReader sdkmetric.Reader
}

// Provider owns the SDK tracer and meter providers installed globally by
// NewProvider.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

const shutdownTimeout = 5 * time.Second

type exporterFactory func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	"grpc": func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	},
	"http": func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	},
}

// NewProvider installs the global tracer and meter providers. A disabled
// config installs a no-op tracer; the meter provider only depends on
// MetricReader.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.Enabled {
		factory, ok := exporters[cfg.ExporterType]
		if !ok {
			return nil, fmt.Errorf("unsupported exporter type: %s (supported: grpc, http)", cfg.ExporterType)
		}
		if exporter, err = factory(ctx, cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("%s exporter: %w", cfg.ExporterType, err)
		}
	}

	p := &Provider{}
	if cfg.MetricReader != nil {
		p.mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(cfg.MetricReader), sdkmetric.WithResource(res))
		otel.SetMeterProvider(p.mp)
	}
	if exporter == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return p, nil
	}

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(samplerFor(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(p.tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return p, nil
}

// samplerFor maps a 0..1 rate to the root sampler.
func samplerFor(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

// Shutdown flushes pending spans and stops both providers, waiting at most
// five seconds.
func (p *Provider) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if p.tp != nil {
		err = errors.Join(err, p.tp.Shutdown(ctx))
	}
	if p.mp != nil {
		err = errors.Join(err, p.mp.Shutdown(ctx))
	}
	return err
}

func Tracer(name string) trace.Tracer { return otel.Tracer(name) }
