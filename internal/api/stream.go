// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/session"
	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/go-chi/chi/v5"
)

type finalRequest struct {
	SessionID           string `json:"sessionId"`
	ProtagonistImageURL string `json:"protagonistImageUrl"`
	NoProtagonist       bool   `json:"noProtagonist"`
	AspectRatio         string `json:"aspectRatio"`
}

// handleGenerateFinal streams the scene job. Once the body is decoded the
// response is always a 200 event stream; failures before the first scene
// arrive as a single error frame.
func (s *Server) handleGenerateFinal(w http.ResponseWriter, r *http.Request) {
	var req finalRequest
	if err := decodeJSON(w, r, maxStreamBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	jobID := s.pipeline.NewJobID()
	ctx := log.ContextWithJobID(r.Context(), jobID)
	logger := log.WithComponentFromContext(ctx, "api")

	w.Header().Set(HeaderJobID, jobID)
	stream := sse.NewWriter(ctx, w)

	res, err := s.pipeline.GenerateScenes(ctx, pipeline.ScenesRequest{
		SessionID:      req.SessionID,
		JobID:          jobID,
		ReferenceImage: req.ProtagonistImageURL,
		NoProtagonist:  req.NoProtagonist,
		AspectRatio:    req.AspectRatio,
	}, stream)

	switch {
	case err == nil:
		logger.Debug().
			Str(log.FieldEvent, "stream.finished").
			Int("frames", stream.Sent()).
			Bool("cancelled", res.Cancelled).
			Bool("disconnected", res.Disconnected).
			Msg("scene stream finished")
	case errors.Is(err, pipeline.ErrJobAborted):
		// error frame already sent
	case errors.Is(err, session.ErrNotFound):
		logger.Info().Err(err).Str(log.FieldEvent, "stream.session_not_found").Msg("scene stream for unknown session")
		_ = stream.Send(sse.Error{Error: "Session expired or not found"})
	default:
		logger.Warn().Err(err).Str(log.FieldEvent, "stream.rejected").Msg("scene stream rejected")
		_ = stream.Send(sse.Error{Error: "Failed to generate scenes", Details: err.Error()})
	}
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	ok := s.pipeline.CancelJob(chi.URLParam(r, "jobId"))
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": ok})
}
