// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ok    bool
	}{
		{"http", "http://example.com", true},
		{"https with path", "https://generativelanguage.googleapis.com/v1beta", true},
		{"empty", "", false},
		{"no host", "http://", false},
		{"ftp", "ftp://example.com", false},
		{"no scheme", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Report
			URL(&r, "Provider.ImageBaseURL", tt.value, "http", "https")
			assert.Equal(t, tt.ok, r.Len() == 0, "err: %v", r.Err())
		})
	}
}

func TestHostPort(t *testing.T) {
	for addr, ok := range map[string]bool{
		":8080":          true,
		"127.0.0.1:9000": true,
		"localhost":      false,
		"":               false,
	} {
		var r Report
		HostPort(&r, "Server.ListenAddr", addr)
		assert.Equal(t, ok, r.Len() == 0, addr)
	}
}

func TestOrderedChecks(t *testing.T) {
	var r Report
	Above(&r, "Session.MaxAge", 30*time.Minute, 0)
	AtLeast(&r, "Pipeline.SceneDelay", time.Duration(0), 0)
	Between(&r, "Telemetry.SamplingRate", 0.5, 0, 1)
	Between(&r, "Session.RedisDB", 3, 0, 15)
	require.NoError(t, r.Err())

	Above(&r, "Server.ShutdownTimeout", time.Duration(0), 0)
	AtLeast(&r, "Server.RateLimitRPM", -1, 0)
	Between(&r, "Telemetry.SamplingRate", 1.5, 0, 1)
	assert.Equal(t, 3, r.Len())
}

func TestOneOfAndNotBlank(t *testing.T) {
	var r Report
	OneOf(&r, "Session.Backend", "redis", "memory", "redis", "badger")
	OneOf(&r, "Pipeline.DefaultSceneCount", 12, 8, 12, 20)
	NotBlank(&r, "Provider.ImageModel", "gemini-2.5-flash-image")
	require.NoError(t, r.Err())

	OneOf(&r, "Session.Backend", "etcd", "memory", "redis")
	NotBlank(&r, "Provider.StoryboardModel", "  ")
	err := r.Err()
	require.Error(t, err)

	var es Errors
	require.True(t, errors.As(err, &es))
	assert.Equal(t, []string{"Session.Backend", "Provider.StoryboardModel"}, es.Fields())
	assert.Contains(t, err.Error(), `Session.Backend: must be one of [memory redis], got etcd`)
}

func TestErrSnapshots(t *testing.T) {
	var r Report
	r.Must("Pipeline.DefaultAspectRatio", "4:3", fmt.Errorf("unsupported aspect ratio %q", "4:3"))
	r.Must("ignored", nil, nil)
	err := r.Err()

	r.Fail("late", 1, "added after Err")
	var es Errors
	require.True(t, errors.As(err, &es))
	assert.Len(t, es, 1)
	assert.Equal(t, `invalid configuration: Pipeline.DefaultAspectRatio: unsupported aspect ratio "4:3"`, err.Error())
}
