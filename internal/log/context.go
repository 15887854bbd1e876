// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log provides structured logging utilities.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type correlationKey struct{}

// correlation is the set of ids that follow a request into the pipeline.
// It is copied on every update so parent contexts never see child ids.
type correlation struct {
	requestID string
	sessionID string
	jobID     string
}

func correlationFrom(ctx context.Context) correlation {
	if ctx == nil {
		return correlation{}
	}
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*correlation)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := correlationFrom(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// ContextWithRequestID stores the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.requestID = id })
}

// ContextWithSessionID stores the storyboard session id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.sessionID = id })
}

// ContextWithJobID stores the scene job id.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.jobID = id })
}

func RequestIDFromContext(ctx context.Context) string { return correlationFrom(ctx).requestID }
func SessionIDFromContext(ctx context.Context) string { return correlationFrom(ctx).sessionID }
func JobIDFromContext(ctx context.Context) string     { return correlationFrom(ctx).jobID }

// WithContext adds the correlation ids carried by ctx to logger. Without any
// ids the logger is returned unchanged.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	c := correlationFrom(ctx)
	if c == (correlation{}) {
		return logger
	}
	b := logger.With()
	for _, f := range [...]struct{ key, val string }{
		{FieldRequestID, c.requestID},
		{FieldSessionID, c.sessionID},
		{FieldJobID, c.jobID},
	} {
		if f.val != "" {
			b = b.Str(f.key, f.val)
		}
	}
	return b.Logger()
}

// WithComponentFromContext is WithContext applied to the component logger.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}

// FromContext returns the logger attached with zerolog's WithContext, or the
// correlated base logger when none is attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	l := WithContext(ctx, Base())
	return &l
}
