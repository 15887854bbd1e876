// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package imagegen renders single images through the Gemini image model.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/mvgen/internal/log"
	"github.com/ManuGH/mvgen/internal/metrics"
	"github.com/ManuGH/mvgen/internal/platform/httpx"
	"github.com/ManuGH/mvgen/internal/ratelimit"
	"github.com/ManuGH/mvgen/internal/resilience"
	"github.com/ManuGH/mvgen/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProviderName labels metrics and spans for this client.
const ProviderName = "gemini-image"

// OperationImage is the rate limiter lane for image calls.
const OperationImage = "image"

var (
	// ErrNotConfigured is returned on first use when no API key is set.
	ErrNotConfigured = errors.New("GEMINI_API_KEY is not configured")
	// ErrInvalidAspectRatio reports an aspect ratio outside 16:9, 9:16 and 1:1.
	ErrInvalidAspectRatio = errors.New("invalid aspect ratio")
	// ErrNoImage is returned when the provider answered without image data.
	ErrNoImage = errors.New("unable to extract image from provider response")
)

// AspectRatio is the requested output shape.
type AspectRatio string

// Supported aspect ratios.
const (
	Aspect16x9 AspectRatio = "16:9"
	Aspect9x16 AspectRatio = "9:16"
	Aspect1x1  AspectRatio = "1:1"
)

// DefaultAspectRatio applies when a request leaves the ratio empty.
const DefaultAspectRatio = Aspect1x1

// ParseAspectRatio validates s. The empty string maps to DefaultAspectRatio.
func ParseAspectRatio(s string) (AspectRatio, error) {
	switch AspectRatio(strings.TrimSpace(s)) {
	case "":
		return DefaultAspectRatio, nil
	case Aspect16x9:
		return Aspect16x9, nil
	case Aspect9x16:
		return Aspect9x16, nil
	case Aspect1x1:
		return Aspect1x1, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: 16:9, 9:16, 1:1)", ErrInvalidAspectRatio, s)
	}
}

// Request describes one image.
type Request struct {
	Prompt string
	// ReferenceImage is an http(s) or data: URL of the character to keep.
	ReferenceImage string
	// CharacterConsistency enables ReferenceImage.
	CharacterConsistency bool
	AspectRatio          AspectRatio
}

// Generator is what callers need from an image backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config configures Client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// HTTPClient overrides the provider client (tests).
	HTTPClient *http.Client
	// ReferenceClient overrides the client used to download references.
	ReferenceClient *http.Client
	Limiter         *ratelimit.Limiter
	Breaker         *resilience.CircuitBreaker
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey   string
	endpoint string
	model    string

	http      *http.Client
	refClient *http.Client
	limiter   *ratelimit.Limiter
	breaker   *resilience.CircuitBreaker
}

const referenceFetchTimeout = 15 * time.Second

// New builds a Client. A missing API key is not an error here; Generate
// reports ErrNotConfigured instead.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.BaseURL, "/") + "/models/" + cfg.Model + ":generateContent",
		model:     cfg.Model,
		http:      cfg.HTTPClient,
		refClient: cfg.ReferenceClient,
		limiter:   cfg.Limiter,
		breaker:   cfg.Breaker,
	}
	if c.http == nil {
		c.http = httpx.NewProviderClient(cfg.Timeout)
	}
	if c.refClient == nil {
		c.refClient = httpx.NewClient(referenceFetchTimeout)
	}
	return c
}

// Generate renders req and returns the image as a data: URL.
// A reference that cannot be loaded is dropped with a warning.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("image prompt is empty")
	}
	aspect, err := ParseAspectRatio(string(req.AspectRatio))
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.Tracer("mvgen/imagegen").Start(ctx, "imagegen.generate")
	defer span.End()
	span.SetAttributes(telemetry.ProviderAttributes(ProviderName, c.model, OperationImage)...)
	span.SetAttributes(attribute.String(telemetry.AspectRatioKey, string(aspect)))

	parts := []part{{Text: req.Prompt}}
	useRef := req.CharacterConsistency && req.ReferenceImage != ""
	if useRef {
		span.SetAttributes(attribute.String(telemetry.ReferenceKey, referenceKind(req.ReferenceImage)))
		ref, err := c.loadReference(ctx, req.ReferenceImage)
		if err != nil {
			logger := log.WithComponentFromContext(ctx, "imagegen")
			logger.Warn().Err(err).
				Str(log.FieldEvent, "imagegen.reference_dropped").
				Msg("failed to load reference image, generating without it")
			metrics.RecordReferenceFetchFailure()
			useRef = false
		} else {
			parts = []part{
				{InlineData: &inlineData{MimeType: ref.mimeType, Data: ref.data}},
				{Text: ReferencePrompt(req.Prompt)},
			}
		}
	}
	span.SetAttributes(attribute.Bool(telemetry.ReferenceUsedKey, useRef))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, OperationImage); err != nil {
			return "", fmt.Errorf("image rate limit: %w", err)
		}
	}

	var image string
	call := func(ctx context.Context) error {
		var callErr error
		image, callErr = c.call(ctx, newRequestBody(parts, aspect))
		return callErr
	}

	start := time.Now()
	if c.breaker != nil {
		err = c.breaker.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	metrics.ObserveProviderRequest(ProviderName, OperationImage, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(errorType(err))...)
		span.SetStatus(codes.Error, "image generation failed")
		return "", err
	}
	return image, nil
}

// ReferencePrompt wraps prompt with the instruction to reuse the reference character.
func ReferencePrompt(prompt string) string {
	return "Using the character shown in the reference image, generate: " + prompt +
		". Maintain the exact same character appearance, facial features, and style."
}

// errorType classifies a failed call for span attributes.
func errorType(err error) string {
	var pe *ProviderError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrNoImage):
		return "no_image"
	case errors.As(err, &pe):
		return fmt.Sprintf("http_%d", pe.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider_error"
	}
}
