// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["lyrics"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid lyrics provided"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sessionId":"s-1","storyboard":{"protagonist_prompt":"a sailor","mood_analysis":"calm","scene_prompts":[{"scene_number":1,"timestamp":"0:00-0:10","description":"sea","prompt":"a calm sea"}]}}`))
	})
	mux.HandleFunc("POST /api/jobs/{jobId}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"cancelled":%t}`, r.PathValue("jobId") == "job-live")
	})
	mux.HandleFunc("POST /api/generate-final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("X-Job-ID", "job-1")
		fmt.Fprintf(w, "data: {\"progress\":1,\"total\":2,\"imageUrl\":%q,\"sceneNumber\":1}\n\n", pngDataURL)
		fmt.Fprint(w, "data: {\"progress\":2,\"total\":2,\"sceneNumber\":2,\"failed\":true,\"details\":\"quota\"}\n\n")
		fmt.Fprintf(w, "data: {\"completed\":true,\"sceneImages\":[%q,\"\"]}\n\n", pngDataURL)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCmd(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = runCmd(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestGenerate(t *testing.T) {
	srv := fakeServer(t)

	code, stdout, _ := runCmd(t, "generate", "-server", srv.URL, "-lyrics", "la la")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"sessionId": "s-1"`)
	assert.Contains(t, stdout, `"mood_analysis": "calm"`)

	code, _, stderr := runCmd(t, "generate", "-server", srv.URL)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-lyrics or -lyrics-file is required")
}

func TestGenerate_LyricsFile(t *testing.T) {
	srv := fakeServer(t)
	path := filepath.Join(t.TempDir(), "song.txt")
	require.NoError(t, os.WriteFile(path, []byte("verse"), 0o600))

	code, stdout, _ := runCmd(t, "generate", "-server", srv.URL, "-lyrics-file", path)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "s-1")
}

func TestCancel(t *testing.T) {
	srv := fakeServer(t)

	code, stdout, _ := runCmd(t, "cancel", "-server", srv.URL, "-job", "job-live")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "job job-live cancelled")

	code, stdout, _ = runCmd(t, "cancel", "-server", srv.URL, "-job", "job-gone")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "was not running")

	code, _, stderr := runCmd(t, "cancel", "-server", srv.URL)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-job is required")
}

func TestRender_ExportsImages(t *testing.T) {
	srv := fakeServer(t)
	dir := t.TempDir()

	code, stdout, stderr := runCmd(t, "render", "-server", srv.URL, "-session", "s-1", "-out", dir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "job job-1 started")
	assert.Contains(t, stdout, "[1/2] scene 1 ok")
	assert.Contains(t, stdout, "[2/2] scene 2 failed: quota")
	assert.Contains(t, stdout, "completed: 2 images")
	assert.Contains(t, stdout, "wrote 1 images to "+dir)
	assert.FileExists(t, filepath.Join(dir, "scene-01.png"))
	assert.NoFileExists(t, filepath.Join(dir, "scene-02.png"))
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "short", abbreviate("short"))
	long := bytes.Repeat([]byte("x"), 100)
	assert.Equal(t, string(long[:60])+"…", abbreviate(string(long)))
}
