// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/pipeline/fsm"
	"github.com/ManuGH/mvgen/internal/storyboard"
)

// cancelTimeout bounds the server-side cancel call made after a local cancel.
const cancelTimeout = 10 * time.Second

// Flow drives one run through the pipeline state machine from client
// actions. It is not safe for concurrent use except for Cancel.
type Flow struct {
	api     *Client
	machine *pipeline.Machine

	mu    sync.Mutex
	token *CancelToken

	sessionID  string
	storyboard storyboard.Storyboard
	candidates []pipeline.ProtagonistCandidate
	jobID      string
}

// NewFlow starts an idle flow.
func NewFlow(api *Client) *Flow {
	return &Flow{api: api, machine: pipeline.NewMachine(pipeline.StateIdle), token: &CancelToken{}}
}

// State returns the current run state.
func (f *Flow) State() pipeline.State { return f.machine.State() }

// SessionID returns the server session of the run.
func (f *Flow) SessionID() string { return f.sessionID }

// Storyboard returns the latest storyboard.
func (f *Flow) Storyboard() storyboard.Storyboard { return f.storyboard }

// Candidates returns the generated protagonist candidates.
func (f *Flow) Candidates() []pipeline.ProtagonistCandidate { return f.candidates }

// JobID returns the running or last scene job id.
func (f *Flow) JobID() string { return f.jobID }

// Submit generates a storyboard from lyrics.
func (f *Flow) Submit(ctx context.Context, lyrics string, sceneCount int) (StoryboardResponse, error) {
	if _, err := f.machine.Fire(ctx, pipeline.EventSubmitLyrics); err != nil {
		return StoryboardResponse{}, err
	}
	res, err := f.api.Generate(ctx, lyrics, sceneCount)
	if err != nil {
		return res, f.fail(ctx, err)
	}
	f.sessionID, f.storyboard = res.SessionID, res.Storyboard
	_, err = f.machine.Fire(ctx, pipeline.EventStoryboardGenerated)
	return res, err
}

// Regenerate replaces the storyboard with a fresh one for the same session.
func (f *Flow) Regenerate(ctx context.Context, lyrics string, sceneCount int) (StoryboardResponse, error) {
	if _, err := f.machine.Fire(ctx, pipeline.EventRegenerateStoryboard); err != nil {
		return StoryboardResponse{}, err
	}
	res, err := f.api.Regenerate(ctx, f.sessionID, lyrics, sceneCount)
	if err != nil {
		return res, f.fail(ctx, err)
	}
	f.storyboard = res.Storyboard
	_, err = f.machine.Fire(ctx, pipeline.EventStoryboardGenerated)
	return res, err
}

// Edit persists an edited storyboard. A rejected edit leaves the run in
// storyboard_ready with the previous storyboard.
func (f *Flow) Edit(ctx context.Context, sb storyboard.Storyboard) error {
	if !f.machine.Can(pipeline.EventEditStoryboard) {
		return fmt.Errorf("%w: state=%s event=%s", fsm.ErrInvalidTransition, f.State(), pipeline.EventEditStoryboard)
	}
	if err := f.api.UpdateStoryboard(ctx, f.sessionID, sb); err != nil {
		return err
	}
	f.storyboard = sb.Clone()
	_, err := f.machine.Fire(ctx, pipeline.EventEditStoryboard)
	return err
}

// Confirm accepts the storyboard and generates the protagonist candidates.
func (f *Flow) Confirm(ctx context.Context) ([]pipeline.ProtagonistCandidate, error) {
	if _, err := f.machine.Fire(ctx, pipeline.EventConfirmStoryboard); err != nil {
		return nil, err
	}
	c, err := f.api.Protagonists(ctx, f.sessionID)
	if err != nil {
		return nil, f.fail(ctx, err)
	}
	f.candidates = c
	_, err = f.machine.Fire(ctx, pipeline.EventProtagonistsGenerated)
	return c, err
}

// Render selects a protagonist and consumes the scene stream. An empty
// referenceURL generates without a protagonist.
func (f *Flow) Render(ctx context.Context, referenceURL, aspectRatio string, h Handler) (Outcome, error) {
	if _, err := f.machine.Fire(ctx, pipeline.EventSelectProtagonist); err != nil {
		return Outcome{}, err
	}
	token := &CancelToken{}
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()

	stream, err := f.api.GenerateScenes(ctx, ScenesRequest{
		SessionID:           f.sessionID,
		ProtagonistImageURL: referenceURL,
		NoProtagonist:       referenceURL == "",
		AspectRatio:         aspectRatio,
	})
	if err != nil {
		return Outcome{}, f.fail(ctx, err)
	}
	f.jobID = stream.JobID

	out, err := NewConsumer(token).Consume(ctx, stream.Body, h)
	switch {
	case out.Cancelled:
		f.cancelRemote(ctx)
		_, ferr := f.machine.Fire(ctx, pipeline.EventCancel)
		return out, ferr
	case err != nil:
		return out, f.fail(ctx, err)
	default:
		_, err = f.machine.Fire(ctx, pipeline.EventComplete)
		return out, err
	}
}

// Cancel stops a running Render at the next frame boundary. Safe from any
// goroutine.
func (f *Flow) Cancel() {
	f.mu.Lock()
	t := f.token
	f.mu.Unlock()
	t.Cancel()
}

// Reset returns a finished run to idle.
func (f *Flow) Reset(ctx context.Context) error {
	if _, err := f.machine.Fire(ctx, pipeline.EventReset); err != nil {
		return err
	}
	f.sessionID, f.jobID = "", ""
	f.storyboard, f.candidates = storyboard.Storyboard{}, nil
	return nil
}

func (f *Flow) fail(ctx context.Context, cause error) error {
	if _, err := f.machine.Fire(ctx, pipeline.EventFail); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// cancelRemote stops server work for the job; the caller's context may
// already be done.
func (f *Flow) cancelRemote(ctx context.Context) {
	if f.jobID == "" {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	running, err := f.api.CancelJob(cctx, f.jobID)
	logger := log.WithComponent("client")
	if err != nil {
		logger.Warn().Err(err).
			Str(log.FieldJobID, f.jobID).
			Str(log.FieldEvent, "job.cancel_failed").
			Msg("server-side cancel failed")
		return
	}
	logger.Info().
		Str(log.FieldJobID, f.jobID).
		Bool("running", running).
		Str(log.FieldEvent, "job.cancel_sent").
		Msg("server-side cancel sent")
}
