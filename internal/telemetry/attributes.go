// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Provider call attributes
	ProviderKey      = "mvgen.provider"
	ModelKey         = "mvgen.model"
	OperationKey     = "mvgen.operation"
	AspectRatioKey   = "mvgen.aspect_ratio"
	ReferenceKey     = "mvgen.reference"
	ReferenceUsedKey = "mvgen.reference_used"

	// Pipeline attributes
	SessionIDKey   = "mvgen.session_id"
	JobIDKey       = "mvgen.job_id"
	SceneKey       = "mvgen.scene"
	TotalScenesKey = "mvgen.total_scenes"
	JobOutcomeKey  = "mvgen.job_outcome"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ProviderAttributes describes one call to an external generation provider.
func ProviderAttributes(provider, model, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProviderKey, provider),
		attribute.String(ModelKey, model),
		attribute.String(OperationKey, operation),
	}
}

// SceneAttributes creates scene-loop span attributes.
func SceneAttributes(sessionID, jobID string, scene, total int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if jobID != "" {
		attrs = append(attrs, attribute.String(JobIDKey, jobID))
	}
	if scene > 0 {
		attrs = append(attrs, attribute.Int(SceneKey, scene))
	}
	return append(attrs, attribute.Int(TotalScenesKey, total))
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
