// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/go-chi/chi/v5"
)

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads one JSON value from the body, bounded by limit.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

type generateRequest struct {
	SessionID  string `json:"sessionId,omitempty"`
	Lyrics     string `json:"lyrics"`
	SceneCount int    `json:"sceneCount,omitempty"`
}

type storyboardResponse struct {
	SessionID  string                `json:"sessionId"`
	Storyboard storyboard.Storyboard `json:"storyboard"`
	Degraded   bool                  `json:"degraded,omitempty"`
}

var storyboardFailure = failure{
	event:    "storyboard",
	notFound: "Session not found",
	failed:   "Failed to generate storyboard",
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil || strings.TrimSpace(req.Lyrics) == "" {
		writeError(w, http.StatusBadRequest, "Invalid lyrics provided", "")
		return
	}

	res, err := s.pipeline.CreateStoryboard(r.Context(), req.Lyrics, req.SceneCount)
	if err != nil {
		respondError(w, r, storyboardFailure, err)
		return
	}
	writeJSON(w, http.StatusOK, storyboardResponse{
		SessionID:  res.SessionID,
		Storyboard: res.Storyboard,
		Degraded:   res.Degraded,
	})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required", "")
		return
	}
	if strings.TrimSpace(req.Lyrics) == "" {
		writeError(w, http.StatusBadRequest, "Invalid lyrics provided", "")
		return
	}

	res, err := s.pipeline.RegenerateStoryboard(r.Context(), req.SessionID, req.Lyrics, req.SceneCount)
	if err != nil {
		respondError(w, r, storyboardFailure, err)
		return
	}
	writeJSON(w, http.StatusOK, storyboardResponse{
		SessionID:  res.SessionID,
		Storyboard: res.Storyboard,
		Degraded:   res.Degraded,
	})
}

func (s *Server) handleGetStoryboard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	sb, err := s.pipeline.GetStoryboard(r.Context(), id)
	if err != nil {
		respondError(w, r, storyboardFailure, err)
		return
	}
	writeJSON(w, http.StatusOK, storyboardResponse{SessionID: id, Storyboard: sb})
}

type updateRequest struct {
	SessionID  string                 `json:"sessionId"`
	Storyboard *storyboard.Storyboard `json:"storyboard"`
}

func (s *Server) handleUpdateStoryboard(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil || req.SessionID == "" || req.Storyboard == nil {
		writeError(w, http.StatusBadRequest, "Missing sessionId or storyboard", "")
		return
	}

	if err := s.pipeline.UpdateStoryboard(r.Context(), req.SessionID, *req.Storyboard); err != nil {
		respondError(w, r, failure{
			event:    "storyboard.update",
			notFound: "Session not found",
			failed:   "Failed to update storyboard",
		}, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type protagonistRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleGenerateProtagonist(w http.ResponseWriter, r *http.Request) {
	var req protagonistRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID is required", "")
		return
	}

	images, err := s.pipeline.GenerateProtagonists(r.Context(), req.SessionID)
	if err != nil {
		respondError(w, r, failure{
			event:    "protagonist",
			notFound: "Session not found or expired. Please try generating the storyboard again.",
			failed:   "Failed to generate protagonist images",
		}, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "protagonist.batch_served").
		Str(log.FieldSessionID, req.SessionID).
		Int("count", len(images)).
		Msg("protagonist candidates returned")
	writeJSON(w, http.StatusOK, struct {
		ProtagonistImages []pipeline.ProtagonistCandidate `json:"protagonistImages"`
	}{images})
}
