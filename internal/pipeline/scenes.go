// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/metrics"
	"github.com/ManuGH/mvgen/internal/sse"
	"github.com/ManuGH/mvgen/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// ScenesRequest starts a scene job.
type ScenesRequest struct {
	SessionID string
	// JobID is the cancel handle; empty means generate one.
	JobID          string
	ReferenceImage string
	NoProtagonist  bool
	AspectRatio    string
}

// Result summarises a finished scene job. Images has one entry per attempted
// scene; failed scenes hold "".
type Result struct {
	JobID        string
	Images       []string
	Failed       int
	Completed    bool
	Cancelled    bool
	Disconnected bool
	// State is the run state the job ended in.
	State State
}

// ErrJobAborted is returned when the loop stops on an unrecoverable error
// after the stream has started; an error frame has already been sent.
var ErrJobAborted = errors.New("scene job aborted")

// GenerateScenes renders every scene of the session in order and emits a
// progress payload per scene followed by one completed payload.
//
// A failed scene leaves "" at its position and the loop continues. The job
// token is checked between scenes only, and a cancelled job emits nothing
// further. A closed emitter does not stop generation.
func (o *Orchestrator) GenerateScenes(ctx context.Context, req ScenesRequest, em Emitter) (Result, error) {
	aspect := o.defaultAspect
	if req.AspectRatio != "" {
		a, err := imagegen.ParseAspectRatio(req.AspectRatio)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		aspect = a
	}
	if req.SessionID == "" {
		return Result{}, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	cur, err := o.store.Get(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	scenes := cur.Storyboard.Scenes

	jobID := req.JobID
	if jobID == "" {
		jobID = o.newID()
	}
	token, release := o.jobs.Register(jobID)
	defer release()

	// Provider calls keep request values but are not preempted by cancellation.
	callCtx := context.WithoutCancel(log.ContextWithJobID(log.ContextWithSessionID(ctx, req.SessionID), jobID))
	logger := log.WithComponentFromContext(callCtx, "pipeline")

	run := NewMachine(StateProtagonistReady)
	run.OnTransition(func(ctx context.Context, st Step) {
		if st.From != st.To {
			stepLogger := log.WithComponentFromContext(ctx, "pipeline")
			stepLogger.Debug().
				Str(log.FieldOldState, string(st.From)).
				Str(log.FieldNewState, string(st.To)).
				Str(log.FieldEvent, "job.state").
				Msg(string(st.Event))
		}
	})
	advance(callCtx, run, EventSelectProtagonist)

	withRef := !req.NoProtagonist && req.ReferenceImage != ""
	total := len(scenes)
	res := Result{JobID: jobID, Images: make([]string, 0, total)}

	ctx, span := telemetry.Tracer("mvgen/pipeline").Start(callCtx, "pipeline.scenes")
	defer span.End()
	span.SetAttributes(telemetry.SceneAttributes(req.SessionID, jobID, 0, total)...)

	metrics.JobStarted()
	logger.Info().
		Str(log.FieldEvent, "job.started").
		Int(log.FieldTotalScenes, total).
		Str(log.FieldAspectRatio, string(aspect)).
		Bool("reference", withRef).
		Msg("scene generation started")

	emit := func(v any) {
		if res.Disconnected {
			return
		}
		if err := em.Send(v); err != nil {
			res.Disconnected = true
			metrics.RecordStreamDisconnect()
			logger.Warn().Err(err).
				Str(log.FieldEvent, "job.client_gone").
				Int(log.FieldScene, len(res.Images)).
				Msg("client disconnected, continuing generation")
		}
	}

	delay := time.Duration(o.sceneDelay.Load())
	for i, sc := range scenes {
		if token.Err() != nil {
			return o.finishCancelled(ctx, run, logger, res), nil
		}

		start := time.Now()
		url, err := o.images.Generate(ctx, imagegen.Request{
			Prompt:               imagegen.ScenePrompt(sc.Prompt, withRef),
			ReferenceImage:       req.ReferenceImage,
			CharacterConsistency: withRef,
			AspectRatio:          aspect,
		})

		if errors.Is(err, imagegen.ErrNotConfigured) {
			logger.Error().Err(err).Str(log.FieldEvent, "job.failed").Msg("image provider not configured")
			emit(sse.Error{Error: "Failed to generate scenes", Details: err.Error()})
			advance(ctx, run, EventFail)
			res.State = run.State()
			metrics.JobFinished(metrics.OutcomeFailed)
			recordJobOutcome(ctx, metrics.OutcomeFailed)
			span.SetAttributes(attribute.String(telemetry.JobOutcomeKey, metrics.OutcomeFailed))
			return res, fmt.Errorf("%w: %w", ErrJobAborted, err)
		}

		ev := sse.Progress{
			Progress:    i + 1,
			Total:       total,
			SceneNumber: i + 1,
			SceneData: &sse.SceneData{
				Prompt:      sc.Prompt,
				Description: sc.Description,
				SceneNumber: sc.SceneNumber,
			},
		}
		if err != nil {
			url = ""
			res.Failed++
			ev.Failed = true
			ev.Details = err.Error()
			metrics.RecordScene(metrics.OutcomeFailed)
			recordSceneOutcome(ctx, metrics.OutcomeFailed)
			logger.Warn().Err(err).
				Str(log.FieldEvent, "scene.failed").
				Int(log.FieldScene, i+1).
				Int(log.FieldTotalScenes, total).
				Msg("scene failed, continuing with placeholder")
		} else {
			metrics.RecordScene(metrics.OutcomeOK)
			recordSceneOutcome(ctx, metrics.OutcomeOK)
			logger.Info().
				Str(log.FieldEvent, "scene.generated").
				Int(log.FieldScene, i+1).
				Int(log.FieldTotalScenes, total).
				Dur(log.FieldDuration, time.Since(start)).
				Msg("scene generated")
		}
		ev.ImageURL = url
		ev.SceneData.URL = url
		res.Images = append(res.Images, url)
		advance(ctx, run, EventSceneProgress)
		emit(ev)

		if i < total-1 {
			if err := sleep(token, delay); err != nil {
				return o.finishCancelled(ctx, run, logger, res), nil
			}
		}
	}

	res.Completed = true
	emit(sse.Completed{Completed: true, SceneImages: res.Images})
	advance(ctx, run, EventComplete)
	res.State = run.State()
	metrics.JobFinished(metrics.OutcomeCompleted)
	recordJobOutcome(ctx, metrics.OutcomeCompleted)
	span.SetAttributes(attribute.String(telemetry.JobOutcomeKey, metrics.OutcomeCompleted))
	logger.Info().
		Str(log.FieldEvent, "job.completed").
		Int(log.FieldTotalScenes, total).
		Int("failed", res.Failed).
		Bool("disconnected", res.Disconnected).
		Msg("scene generation completed")
	return res, nil
}

func (o *Orchestrator) finishCancelled(ctx context.Context, run *Machine, logger zerolog.Logger, res Result) Result {
	res.Cancelled = true
	advance(ctx, run, EventCancel)
	res.State = run.State()
	metrics.JobFinished(metrics.OutcomeCancelled)
	recordJobOutcome(ctx, metrics.OutcomeCancelled)
	logger.Info().
		Str(log.FieldEvent, "job.cancelled").
		Int("generated", len(res.Images)).
		Msg("scene generation cancelled")
	return res
}

// advance fires ev on the job machine. The scene loop only fires edges that
// exist, so a rejected event is logged as an error and returned.
func advance(ctx context.Context, run *Machine, ev Event) error {
	if _, err := run.Fire(ctx, ev); err != nil {
		metrics.RecordIllegalTransition(string(ev))
		logger := log.WithComponentFromContext(ctx, "pipeline")
		logger.Error().Err(err).
			Str(log.FieldEvent, "job.illegal_transition").
			Str(log.FieldOldState, string(run.State())).
			Msg("run machine rejected event")
		return err
	}
	return nil
}
