// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/resilience"
	"github.com/ManuGH/mvgen/internal/session"
	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStoryboards struct{}

func (stubStoryboards) Generate(_ context.Context, lyrics string, n int) (storyboard.Result, error) {
	sb := storyboard.Storyboard{
		ProtagonistPrompt: "a singer in a red coat",
		MoodAnalysis:      "wistful",
	}
	for i := 0; i < n; i++ {
		sb.Scenes = append(sb.Scenes, storyboard.Scene{
			SceneNumber: i + 1,
			Description: fmt.Sprintf("%s %d", lyrics, i+1),
			Prompt:      fmt.Sprintf("scene %d", i+1),
		})
	}
	return storyboard.Result{Storyboard: sb}, nil
}

type stubImages struct {
	mu    sync.Mutex
	calls []imagegen.Request
	err   map[int]error
}

func (s *stubImages) Generate(_ context.Context, req imagegen.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if err := s.err[len(s.calls)]; err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/png;base64,aW1n%d", len(s.calls)), nil
}

type testEnv struct {
	handler http.Handler
	store   *session.MemoryStore
	images  *stubImages
}

func newTestEnv(t *testing.T, sb pipeline.StoryboardGenerator) *testEnv {
	t.Helper()
	if sb == nil {
		sb = stubStoryboards{}
	}
	store := session.NewMemoryStore()
	images := &stubImages{err: map[int]error{}}
	orch := pipeline.New(store, sb, images, pipeline.NewJobs(context.Background()), pipeline.Config{})
	srv := New(Config{}, orch, nil)
	return &testEnv{handler: srv.Handler(), store: store, images: images}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, id string, scenes int) {
	t.Helper()
	res, err := stubStoryboards{}.Generate(context.Background(), "line", scenes)
	require.NoError(t, err)
	require.NoError(t, e.store.Set(context.Background(), id, session.Session{Storyboard: res.Storyboard}))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func frames(t *testing.T, body string) []sse.Event {
	t.Helper()
	var p sse.Parser
	var out []sse.Event
	for _, f := range p.Feed([]byte(body)) {
		ev, err := sse.Decode([]byte(f.Data))
		require.NoError(t, err)
		out = append(out, ev)
	}
	require.False(t, p.Pending(), "trailing partial frame")
	return out
}

func TestGenerateCreatesSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/generate", `{"lyrics":"hello world","sceneCount":8}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp storyboardResponse
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.SessionID)
	assert.Len(t, resp.Storyboard.Scenes, 8)
	assert.False(t, resp.Degraded)

	w = env.do(t, http.MethodGet, "/api/storyboard/"+resp.SessionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got storyboardResponse
	decodeBody(t, w, &got)
	assert.Equal(t, resp.Storyboard, got.Storyboard)
}

func TestGenerateRejectsInvalidLyrics(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{``, `{}`, `{"lyrics":"   "}`, `{"lyrics":42}`, `not json`} {
		w := env.do(t, http.MethodPost, "/api/generate", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		var e errorBody
		decodeBody(t, w, &e)
		assert.Equal(t, "Invalid lyrics provided", e.Error, body)
	}
}

func TestGenerateWithoutProviderKey(t *testing.T) {
	env := newTestEnv(t, storyboard.NewGenerator(nil, "gemini", "m", 0))

	w := env.do(t, http.MethodPost, "/api/generate", `{"lyrics":"la la","sceneCount":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/generate", `{"lyrics":"la la"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, errorBody{Error: "Failed to generate storyboard", Details: "GEMINI_API_KEY is not configured"}, e)
}

func TestRegenerateStoryboard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 12)

	w := env.do(t, http.MethodPost, "/api/regenerate-storyboard", `{"sessionId":"s1","lyrics":"again","sceneCount":20}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp storyboardResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Len(t, resp.Storyboard.Scenes, 20)

	w = env.do(t, http.MethodPost, "/api/regenerate-storyboard", `{"sessionId":"gone","lyrics":"again"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/regenerate-storyboard", `{"lyrics":"again"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStoryboardNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/storyboard/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestUpdateStoryboard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 8)

	edited := `{"sessionId":"s1","storyboard":{"protagonist_prompt":"new hero","scene_prompts":[{"prompt":"only scene"}]}}`
	w := env.do(t, http.MethodPost, "/api/update-storyboard", edited)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	cur, err := env.store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "new hero", cur.Storyboard.ProtagonistPrompt)
	require.Len(t, cur.Storyboard.Scenes, 1)
	assert.Equal(t, 1, cur.Storyboard.Scenes[0].SceneNumber)

	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"missing storyboard", `{"sessionId":"s1"}`, http.StatusBadRequest, "Missing sessionId or storyboard"},
		{"missing session id", `{"storyboard":{}}`, http.StatusBadRequest, "Missing sessionId or storyboard"},
		{"unknown session", `{"sessionId":"nope","storyboard":{"protagonist_prompt":"x","scene_prompts":[{"prompt":"p"}]}}`, http.StatusNotFound, "Session not found"},
		{"invalid storyboard", `{"sessionId":"s1","storyboard":{"protagonist_prompt":"x","scene_prompts":[]}}`, http.StatusBadRequest, "Invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/update-storyboard", tt.body)
			assert.Equal(t, tt.code, w.Code)
			var e errorBody
			decodeBody(t, w, &e)
			assert.Equal(t, tt.msg, e.Error)
		})
	}
}

func TestGenerateProtagonist(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 8)

	w := env.do(t, http.MethodPost, "/api/generate-protagonist", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		ProtagonistImages []pipeline.ProtagonistCandidate `json:"protagonistImages"`
	}
	decodeBody(t, w, &resp)
	require.Len(t, resp.ProtagonistImages, 4)
	for i, c := range resp.ProtagonistImages {
		assert.Equal(t, fmt.Sprintf("protagonist-%d", i), c.ID)
		assert.True(t, strings.HasPrefix(c.URL, "data:image/png;base64,"))
	}
	for _, call := range env.images.calls {
		assert.Equal(t, imagegen.Aspect1x1, call.AspectRatio)
	}
}

func TestGenerateProtagonistErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 8)

	w := env.do(t, http.MethodPost, "/api/generate-protagonist", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, "Session ID is required", e.Error)

	w = env.do(t, http.MethodPost, "/api/generate-protagonist", `{"sessionId":"gone"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	decodeBody(t, w, &e)
	assert.Equal(t, "Session not found or expired. Please try generating the storyboard again.", e.Error)

	env.images.err[2] = fmt.Errorf("provider exploded")
	w = env.do(t, http.MethodPost, "/api/generate-protagonist", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e = errorBody{}
	decodeBody(t, w, &e)
	assert.Equal(t, "Failed to generate protagonist images", e.Error)
	assert.Contains(t, e.Details, "provider exploded")
}

func TestGenerateProtagonistBreakerOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 8)

	env.images.err[1] = &resilience.OpenError{Name: "imagegen", RetryIn: 12500 * time.Millisecond}
	w := env.do(t, http.MethodPost, "/api/generate-protagonist", `{"sessionId":"s1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "13", w.Header().Get("Retry-After"))
	var e errorBody
	decodeBody(t, w, &e)
	assert.Equal(t, "Failed to generate protagonist images", e.Error)
	assert.Contains(t, e.Details, "imagegen unavailable")
}

func TestGenerateFinalStreamsScenes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "s1", 4)
	env.images.err[3] = fmt.Errorf("scene blew up")

	w := env.do(t, http.MethodPost, "/api/generate-final",
		`{"sessionId":"s1","protagonistImageUrl":"data:image/png;base64,cmVm","aspectRatio":"9:16"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	assert.NotEmpty(t, w.Header().Get(HeaderJobID))

	evs := frames(t, w.Body.String())
	require.Len(t, evs, 5)
	for i := 0; i < 4; i++ {
		require.Equal(t, sse.KindProgress, evs[i].Kind)
		assert.Equal(t, i+1, evs[i].Progress.Progress)
		assert.Equal(t, 4, evs[i].Progress.Total)
	}
	assert.True(t, evs[2].Progress.Failed)
	assert.Empty(t, evs[2].Progress.ImageURL)

	require.Equal(t, sse.KindCompleted, evs[4].Kind)
	imgs := evs[4].Completed.SceneImages
	require.Len(t, imgs, 4)
	assert.Equal(t, "", imgs[2])

	for _, call := range env.images.calls {
		assert.Equal(t, imagegen.Aspect9x16, call.AspectRatio)
		assert.True(t, call.CharacterConsistency)
	}
}

func TestGenerateFinalErrorFrames(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		seed    bool
		fail    error
		msg     string
		details string
	}{
		{
			name: "unknown session",
			body: `{"sessionId":"gone"}`,
			msg:  "Session expired or not found",
		},
		{
			name:    "bad aspect ratio",
			body:    `{"sessionId":"s1","aspectRatio":"4:3"}`,
			seed:    true,
			msg:     "Failed to generate scenes",
			details: "invalid aspect ratio",
		},
		{
			name:    "provider not configured",
			body:    `{"sessionId":"s1","noProtagonist":true}`,
			seed:    true,
			fail:    imagegen.ErrNotConfigured,
			msg:     "Failed to generate scenes",
			details: "GEMINI_API_KEY is not configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.seed {
				env.seed(t, "s1", 3)
			}
			if tt.fail != nil {
				env.images.err[1] = tt.fail
			}

			w := env.do(t, http.MethodPost, "/api/generate-final", tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			evs := frames(t, w.Body.String())
			require.Len(t, evs, 1)
			require.Equal(t, sse.KindError, evs[0].Kind)
			assert.Equal(t, tt.msg, evs[0].Error.Error)
			if tt.details == "" {
				assert.Empty(t, evs[0].Error.Details)
			} else {
				assert.Contains(t, evs[0].Error.Details, tt.details)
			}
		})
	}
}

func TestGenerateFinalMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/generate-final", `{"sessionId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get(HeaderJobID))
}

func TestCancelUnknownJob(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/api/jobs/nope/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":false}`, w.Body.String())
}

func TestProbesAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	env.do(t, http.MethodGet, "/api/storyboard/x", "")
	w = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mvgen_http_request_duration_seconds")
}
