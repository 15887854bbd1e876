// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/ManuGH/mvgen/internal/storyboard"
)

// fakeAPI is a scripted stand-in for the daemon.
type fakeAPI struct {
	mu        sync.Mutex
	requests  map[string][]map[string]any
	scenes    int
	blockAt   int // stream blocks after this many progress frames; 0 = never
	release   chan struct{}
	cancelled []string
	srv       *httptest.Server
}

func newFakeAPI(t *testing.T, scenes int) *fakeAPI {
	t.Helper()
	f := &fakeAPI{requests: map[string][]map[string]any{}, scenes: scenes, release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", f.handleGenerate)
	mux.HandleFunc("POST /api/regenerate-storyboard", f.handleGenerate)
	mux.HandleFunc("GET /api/storyboard/{id}", f.handleGet)
	mux.HandleFunc("POST /api/update-storyboard", f.handleUpdate)
	mux.HandleFunc("POST /api/generate-protagonist", f.handleProtagonists)
	mux.HandleFunc("POST /api/generate-final", f.handleFinal)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", f.handleCancel)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		select {
		case <-f.release:
		default:
			close(f.release)
		}
		f.mu.Unlock()
		f.srv.Close()
	})
	return f
}

func (f *fakeAPI) record(r *http.Request) map[string]any {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], body)
	f.mu.Unlock()
	return body
}

func (f *fakeAPI) bodies(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fakeBoard(n int) storyboard.Storyboard {
	sb := storyboard.Storyboard{ProtagonistPrompt: "a courier"}
	for i := 1; i <= n; i++ {
		sb.Scenes = append(sb.Scenes, storyboard.Scene{SceneNumber: i, Description: fmt.Sprintf("d%d", i), Prompt: fmt.Sprintf("p%d", i)})
	}
	return sb
}

func (f *fakeAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	if strings.TrimSpace(fmt.Sprint(body["lyrics"])) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Lyrics are required"})
		return
	}
	id := "sess-1"
	if s, ok := body["sessionId"].(string); ok {
		id = s
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "storyboard": fakeBoard(f.scenes)})
}

func (f *fakeAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "sess-1" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session expired or not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": "sess-1", "storyboard": fakeBoard(f.scenes)})
}

func (f *fakeAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	if body["sessionId"] != "sess-1" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session expired or not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *fakeAPI) handleProtagonists(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	out := make([]map[string]string, 4)
	for i := range out {
		out[i] = map[string]string{"id": fmt.Sprintf("protagonist-%d", i), "url": fmt.Sprintf("data:image/png;base64,UA%d=", i)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"protagonistImages": out})
}

func (f *fakeAPI) handleFinal(w http.ResponseWriter, r *http.Request) {
	body := f.record(r)
	if body["sessionId"] != "sess-1" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session expired or not found"})
		return
	}
	w.Header().Set("X-Job-ID", "job-42")
	sw := sse.NewWriter(r.Context(), w)

	images := make([]string, 0, f.scenes)
	for i := 1; i <= f.scenes; i++ {
		img := fmt.Sprintf("data:image/png;base64,AA%d=", i)
		images = append(images, img)
		if err := sw.Send(sse.Progress{Progress: i, Total: f.scenes, ImageURL: img, SceneNumber: i}); err != nil {
			return
		}
		if f.blockAt > 0 && i == f.blockAt {
			select {
			case <-r.Context().Done():
			case <-f.release:
			}
			return
		}
	}
	_ = sw.Send(sse.Completed{Completed: true, SceneImages: images})
}

func (f *fakeAPI) handleCancel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, r.PathValue("id"))
	select {
	case <-f.release:
	default:
		close(f.release)
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
