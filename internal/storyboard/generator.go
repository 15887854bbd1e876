// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/metrics"
	"github.com/ManuGH/mvgen/internal/telemetry"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/codes"
)

// Sampling parameters for storyboard requests.
const (
	temperature     float32 = 0.9
	topP            float32 = 0.95
	maxOutputTokens         = 8192
)

// ChatModel is the subset of an eino chat model the generator needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Result is a generated storyboard plus how it was obtained.
type Result struct {
	Storyboard Storyboard
	// Degraded is set when the storyboard is the synthetic fallback.
	Degraded bool
	// Repaired is set when the model output needed the repair pass.
	Repaired bool
}

// Generator produces storyboards from lyrics.
type Generator struct {
	model     ChatModel
	provider  string
	modelName string
	timeout   time.Duration
}

// NewGenerator wraps a chat model. A nil model yields a generator that
// returns ErrNotConfigured on every call.
func NewGenerator(m ChatModel, provider, modelName string, timeout time.Duration) *Generator {
	return &Generator{model: m, provider: provider, modelName: modelName, timeout: timeout}
}

// Generate returns a storyboard for lyrics with sceneCount scenes.
// Malformed model output and provider failures degrade to Fallback; invalid
// input and a missing API key are returned as errors.
func (g *Generator) Generate(ctx context.Context, lyrics string, sceneCount int) (Result, error) {
	lyrics = NormalizeLyrics(lyrics)
	if lyrics == "" {
		return Result{}, fmt.Errorf("%w: lyrics are empty", ErrInvalidInput)
	}
	if !ValidSceneCount(sceneCount) {
		return Result{}, fmt.Errorf("%w: scene count %d not in %v", ErrInvalidInput, sceneCount, sceneCounts)
	}
	if g == nil || g.model == nil {
		metrics.RecordStoryboard(metrics.OutcomeError)
		return Result{}, ErrNotConfigured
	}

	logger := log.WithComponentFromContext(ctx, "storyboard")

	raw, err := g.complete(ctx, lyrics, sceneCount)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) || ctx.Err() != nil {
			metrics.RecordStoryboard(metrics.OutcomeError)
			return Result{}, err
		}
		logger.Warn().Err(err).
			Str(log.FieldEvent, "storyboard.fallback").
			Str(log.FieldProvider, g.provider).
			Msg("storyboard provider failed, using fallback storyboard")
		metrics.RecordStoryboard(metrics.OutcomeDegraded)
		return Result{Storyboard: Fallback(lyrics, sceneCount), Degraded: true}, nil
	}

	sb, repaired, err := Parse(raw)
	if err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "storyboard.fallback").
			Int("raw_len", len(raw)).
			Msg("storyboard output malformed, using fallback storyboard")
		metrics.RecordStoryboard(metrics.OutcomeDegraded)
		return Result{Storyboard: Fallback(lyrics, sceneCount), Degraded: true, Repaired: repaired}, nil
	}

	if len(sb.Scenes) != sceneCount {
		logger.Warn().
			Str(log.FieldEvent, "storyboard.scene_count_mismatch").
			Int("requested", sceneCount).
			Int("actual", len(sb.Scenes)).
			Msg("storyboard scene count differs from request")
		metrics.RecordStoryboardSceneMismatch()
	}

	logger.Info().
		Str(log.FieldEvent, "storyboard.generated").
		Int(log.FieldTotalScenes, len(sb.Scenes)).
		Bool("repaired", repaired).
		Msg("storyboard generated")
	metrics.RecordStoryboard(metrics.OutcomeOK)
	return Result{Storyboard: sb, Repaired: repaired}, nil
}

func (g *Generator) complete(ctx context.Context, lyrics string, sceneCount int) (string, error) {
	msgs, err := BuildMessages(ctx, lyrics, sceneCount)
	if err != nil {
		return "", err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer("mvgen/storyboard").Start(ctx, "storyboard.generate")
	defer span.End()
	span.SetAttributes(telemetry.ProviderAttributes(g.provider, g.modelName, "storyboard")...)

	start := time.Now()
	resp, err := g.model.Generate(ctx, msgs,
		model.WithTemperature(temperature),
		model.WithTopP(topP),
		model.WithMaxTokens(maxOutputTokens),
	)
	metrics.ObserveProviderRequest(g.provider, "storyboard", err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes("provider_error")...)
		span.SetStatus(codes.Error, "provider call failed")
		return "", fmt.Errorf("storyboard provider: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		span.SetAttributes(telemetry.ErrorAttributes("empty_response")...)
		span.SetStatus(codes.Error, "empty response")
		return "", errors.New("storyboard provider returned an empty response")
	}
	return resp.Content, nil
}
