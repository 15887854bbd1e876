// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestProviderAttributes(t *testing.T) {
	m := attrMap(ProviderAttributes("gemini", "gemini-2.5-flash-image", "image"))
	assert.Equal(t, "gemini", m[ProviderKey].AsString())
	assert.Equal(t, "gemini-2.5-flash-image", m[ModelKey].AsString())
	assert.Equal(t, "image", m[OperationKey].AsString())
}

func TestSceneAttributesSkipsEmpty(t *testing.T) {
	attrs := SceneAttributes("", "", 0, 12)
	assert.Len(t, attrs, 1)
	assert.Equal(t, int64(12), attrMap(attrs)[TotalScenesKey].AsInt64())

	m := attrMap(SceneAttributes("s1", "j1", 3, 12))
	assert.Equal(t, "s1", m[SessionIDKey].AsString())
	assert.Equal(t, "j1", m[JobIDKey].AsString())
	assert.Equal(t, int64(3), m[SceneKey].AsInt64())
}

func TestErrorAttributes(t *testing.T) {
	m := attrMap(ErrorAttributes("provider_error"))
	assert.True(t, m[ErrorKey].AsBool())
	assert.Equal(t, "provider_error", m[ErrorTypeKey].AsString())
}
