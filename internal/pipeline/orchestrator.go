// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline drives a run from lyrics to scene images: storyboard,
// protagonist candidates and the streamed scene loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ManuGH/mvgen/internal/imagegen"
	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/metrics"
	"github.com/ManuGH/mvgen/internal/session"
	"github.com/ManuGH/mvgen/internal/storyboard"
	"github.com/google/uuid"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// StoryboardGenerator produces storyboards from lyrics.
type StoryboardGenerator interface {
	Generate(ctx context.Context, lyrics string, sceneCount int) (storyboard.Result, error)
}

// Emitter receives stream payloads. Send returns an error wrapping
// sse.ErrClosed once the client is gone.
type Emitter interface {
	Send(v any) error
}

// Config tunes an Orchestrator.
type Config struct {
	SceneDelay         time.Duration
	ProtagonistDelay   time.Duration
	DefaultSceneCount  int
	DefaultAspectRatio imagegen.AspectRatio
}

// DefaultConfig mirrors the daemon defaults.
func DefaultConfig() Config {
	return Config{
		SceneDelay:         time.Second,
		ProtagonistDelay:   2 * time.Second,
		DefaultSceneCount:  storyboard.DefaultSceneCount,
		DefaultAspectRatio: imagegen.Aspect16x9,
	}
}

// Orchestrator runs pipeline stages against the session store.
type Orchestrator struct {
	store       session.Store
	storyboards StoryboardGenerator
	images      imagegen.Generator
	jobs        *Jobs

	sceneDelay       atomic.Int64
	protagonistDelay atomic.Int64
	defaultCount     int
	defaultAspect    imagegen.AspectRatio

	newID func() string
}

// New wires an Orchestrator. jobs may be nil for a registry rooted at
// context.Background.
func New(store session.Store, sb StoryboardGenerator, images imagegen.Generator, jobs *Jobs, cfg Config) *Orchestrator {
	if jobs == nil {
		jobs = NewJobs(context.Background())
	}
	if cfg.DefaultSceneCount == 0 {
		cfg.DefaultSceneCount = storyboard.DefaultSceneCount
	}
	if cfg.DefaultAspectRatio == "" {
		cfg.DefaultAspectRatio = imagegen.Aspect16x9
	}
	o := &Orchestrator{
		store:         store,
		storyboards:   sb,
		images:        images,
		jobs:          jobs,
		defaultCount:  cfg.DefaultSceneCount,
		defaultAspect: cfg.DefaultAspectRatio,
		newID:         func() string { return uuid.New().String() },
	}
	o.SetDelays(cfg.SceneDelay, cfg.ProtagonistDelay)
	return o
}

// SetDelays updates the inter-call delays; safe while jobs run.
func (o *Orchestrator) SetDelays(scene, protagonist time.Duration) {
	o.sceneDelay.Store(int64(scene))
	o.protagonistDelay.Store(int64(protagonist))
}

// Jobs returns the job registry.
func (o *Orchestrator) Jobs() *Jobs { return o.jobs }

// NewJobID returns a fresh job id.
func (o *Orchestrator) NewJobID() string { return o.newID() }

// CancelJob requests cancellation of a running scene job.
func (o *Orchestrator) CancelJob(jobID string) bool {
	ok := o.jobs.Cancel(jobID)
	log.L().Info().
		Str(log.FieldEvent, "job.cancel_requested").
		Str(log.FieldJobID, jobID).
		Bool("running", ok).
		Msg("scene job cancellation requested")
	return ok
}

// StoryboardResult is returned by storyboard creation.
type StoryboardResult struct {
	SessionID  string
	Storyboard storyboard.Storyboard
	Degraded   bool
}

func (o *Orchestrator) sceneCount(n int) int {
	if n == 0 {
		return o.defaultCount
	}
	return n
}

// CreateStoryboard generates a storyboard and stores it under a new session id.
func (o *Orchestrator) CreateStoryboard(ctx context.Context, lyrics string, sceneCount int) (StoryboardResult, error) {
	res, err := o.storyboards.Generate(ctx, lyrics, o.sceneCount(sceneCount))
	if err != nil {
		return StoryboardResult{}, err
	}

	id := o.newID()
	if err := o.store.Set(ctx, id, session.Session{Storyboard: res.Storyboard}); err != nil {
		return StoryboardResult{}, fmt.Errorf("store session: %w", err)
	}

	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Info().
		Str(log.FieldEvent, "session.created").
		Str(log.FieldSessionID, id).
		Int(log.FieldTotalScenes, len(res.Storyboard.Scenes)).
		Bool("degraded", res.Degraded).
		Msg("storyboard session created")

	return StoryboardResult{SessionID: id, Storyboard: res.Storyboard, Degraded: res.Degraded}, nil
}

// RegenerateStoryboard replaces the storyboard of an existing session with a
// fresh one. The session keeps its creation time.
func (o *Orchestrator) RegenerateStoryboard(ctx context.Context, sessionID, lyrics string, sceneCount int) (StoryboardResult, error) {
	cur, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return StoryboardResult{}, err
	}
	res, err := o.storyboards.Generate(ctx, lyrics, o.sceneCount(sceneCount))
	if err != nil {
		return StoryboardResult{}, err
	}
	if err := o.store.Set(ctx, sessionID, session.Session{Storyboard: res.Storyboard, CreatedAt: cur.CreatedAt}); err != nil {
		return StoryboardResult{}, fmt.Errorf("store session: %w", err)
	}

	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Info().
		Str(log.FieldEvent, "session.regenerated").
		Str(log.FieldSessionID, sessionID).
		Bool("degraded", res.Degraded).
		Msg("storyboard regenerated")

	return StoryboardResult{SessionID: sessionID, Storyboard: res.Storyboard, Degraded: res.Degraded}, nil
}

// UpdateStoryboard replaces the stored storyboard wholesale.
func (o *Orchestrator) UpdateStoryboard(ctx context.Context, sessionID string, sb storyboard.Storyboard) error {
	cur, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := o.store.Set(ctx, sessionID, session.Session{Storyboard: sb, CreatedAt: cur.CreatedAt}); err != nil {
		return err
	}
	logger := log.WithComponentFromContext(ctx, "pipeline")
	logger.Info().
		Str(log.FieldEvent, "session.updated").
		Str(log.FieldSessionID, sessionID).
		Int(log.FieldTotalScenes, len(sb.Scenes)).
		Msg("storyboard updated")
	return nil
}

// GetStoryboard returns the stored storyboard.
func (o *Orchestrator) GetStoryboard(ctx context.Context, sessionID string) (storyboard.Storyboard, error) {
	cur, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return storyboard.Storyboard{}, err
	}
	return cur.Storyboard, nil
}

// ProtagonistCandidate is one generated character option.
type ProtagonistCandidate struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GenerateProtagonists renders the four candidates one after another. The
// first failure aborts the batch.
func (o *Orchestrator) GenerateProtagonists(ctx context.Context, sessionID string) ([]ProtagonistCandidate, error) {
	cur, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cur.Storyboard.ProtagonistPrompt) == "" {
		return nil, fmt.Errorf("%w: session has no protagonist prompt", ErrInvalidRequest)
	}

	ctx = log.ContextWithSessionID(ctx, sessionID)
	logger := log.WithComponentFromContext(ctx, "pipeline")
	prompts := imagegen.ProtagonistPrompts(cur.Storyboard.ProtagonistPrompt, cur.Storyboard.ProtagonistVariations)
	delay := time.Duration(o.protagonistDelay.Load())

	out := make([]ProtagonistCandidate, 0, len(prompts))
	for i, p := range prompts {
		url, err := o.images.Generate(ctx, imagegen.Request{Prompt: p, AspectRatio: imagegen.Aspect1x1})
		if err != nil {
			logger.Error().Err(err).
				Str(log.FieldEvent, "protagonist.failed").
				Int(log.FieldCandidate, i+1).
				Msg("protagonist candidate failed, aborting batch")
			metrics.RecordProtagonistBatch(metrics.OutcomeError)
			return nil, fmt.Errorf("protagonist candidate %d: %w", i+1, err)
		}
		out = append(out, ProtagonistCandidate{ID: fmt.Sprintf("protagonist-%d", i), URL: url})
		logger.Info().
			Str(log.FieldEvent, "protagonist.generated").
			Int(log.FieldCandidate, i+1).
			Int("of", len(prompts)).
			Msg("protagonist candidate generated")

		if i < len(prompts)-1 {
			if err := sleep(ctx, delay); err != nil {
				metrics.RecordProtagonistBatch(metrics.OutcomeError)
				return nil, err
			}
		}
	}
	metrics.RecordProtagonistBatch(metrics.OutcomeOK)
	return out, nil
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
