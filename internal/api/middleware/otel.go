// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// HeaderTraceID echoes the server span's trace id.
const HeaderTraceID = "X-Trace-ID"

// Tracing starts a server span per request. The span is renamed to the chi
// route once routing is done, and the trace id is returned in HeaderTraceID.
func Tracing(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := trace.SpanFromContext(r.Context())
			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set(HeaderTraceID, sc.TraceID().String())
			}
			next.ServeHTTP(w, r)
			span.SetName(r.Method + " " + routePattern(r))
		})
		return otelhttp.NewHandler(inner, service,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithFilter(traced),
		)
	}
}

// traced skips probes and scrapes.
func traced(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}
