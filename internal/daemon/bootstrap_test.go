// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/mvgen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Server.RateLimitRPM = 0
	cfg.Session.BadgerPath = t.TempDir()
	return cfg
}

func TestBuild_MemoryBackendWithoutKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := Build(ctx, testAppConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, rt.Close(context.Background())) }()

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"lyrics":"hello"}`))
	w := httptest.NewRecorder()
	rt.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Failed to generate storyboard", body.Error)
	assert.Equal(t, "GEMINI_API_KEY is not configured", body.Details)

	w = httptest.NewRecorder()
	rt.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code, "missing key degrades but stays ready")
	assert.Contains(t, w.Body.String(), "provider_image")

	assert.Len(t, rt.Tasks(), 1)
}

func TestBuild_BadgerBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Session.Backend = "badger"

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
}

func TestBuild_SQLiteBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Session.Backend = "sqlite"
	cfg.Session.SQLitePath = filepath.Join(t.TempDir(), "sessions.db")

	rt, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
	assert.FileExists(t, cfg.Session.SQLitePath)
}

func TestBuild_RejectsUnknownBackends(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Session.Backend = "etcd"
	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown session backend")

	cfg = testAppConfig(t)
	cfg.Provider.APIKey = "k"
	cfg.Provider.StoryboardBackend = "llama"
	_, err = Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storyboard backend")
}

func TestRuntime_ApplyReload(t *testing.T) {
	rt, err := Build(context.Background(), testAppConfig(t))
	require.NoError(t, err)
	defer func() { _ = rt.Close(context.Background()) }()

	old := testAppConfig(t)
	updated := old
	updated.LogLevel = "debug"
	updated.Pipeline.SceneDelay = 5 * time.Millisecond
	updated.Provider.RateLimitRPS = 0
	rt.ApplyReload(old, updated)
	rt.ApplyReload(updated, old)
}
