// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package client talks to the mvgen HTTP API: typed request/response calls,
// the scene stream consumer and the client-side run flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/mvgen/internal/pipeline"
	"github.com/ManuGH/mvgen/internal/platform/httpx"
	"github.com/ManuGH/mvgen/internal/storyboard"
)

const maxErrorBody = 64 << 10

// Options tunes a Client.
type Options struct {
	// Timeout bounds request/response calls. Protagonist generation takes
	// four provider round trips, so keep it generous.
	Timeout time.Duration
	// HeaderTimeout bounds the wait for the stream response headers.
	HeaderTimeout time.Duration
	HTTPClient    *http.Client
	StreamClient  *http.Client
}

// Client is a typed mvgen API client.
type Client struct {
	base   string
	http   *http.Client
	stream *http.Client
}

// New returns a client for the server at base.
func New(base string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   opts.HTTPClient,
		stream: opts.StreamClient,
	}
	if c.http == nil {
		c.http = httpx.NewProviderClient(opts.Timeout)
	}
	if c.stream == nil {
		c.stream = httpx.NewStreamingClient(opts.HeaderTimeout)
	}
	return c
}

// StoryboardResponse is returned by storyboard generation.
type StoryboardResponse struct {
	SessionID  string                `json:"sessionId"`
	Storyboard storyboard.Storyboard `json:"storyboard"`
	Degraded   bool                  `json:"degraded,omitempty"`
}

// Generate submits lyrics and returns the new session's storyboard.
// sceneCount 0 uses the server default.
func (c *Client) Generate(ctx context.Context, lyrics string, sceneCount int) (StoryboardResponse, error) {
	body := map[string]any{"lyrics": lyrics}
	if sceneCount > 0 {
		body["sceneCount"] = sceneCount
	}
	var out StoryboardResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/generate", "generate", body, &out)
	return out, err
}

// Regenerate replaces the storyboard of an existing session.
func (c *Client) Regenerate(ctx context.Context, sessionID, lyrics string, sceneCount int) (StoryboardResponse, error) {
	body := map[string]any{"sessionId": sessionID, "lyrics": lyrics}
	if sceneCount > 0 {
		body["sceneCount"] = sceneCount
	}
	var out StoryboardResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/regenerate-storyboard", "regenerate", body, &out)
	return out, err
}

// Storyboard reads back the stored storyboard.
func (c *Client) Storyboard(ctx context.Context, sessionID string) (storyboard.Storyboard, error) {
	var out StoryboardResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/storyboard/"+url.PathEscape(sessionID), "storyboard", nil, &out)
	return out.Storyboard, err
}

// UpdateStoryboard replaces the stored storyboard.
func (c *Client) UpdateStoryboard(ctx context.Context, sessionID string, sb storyboard.Storyboard) error {
	body := map[string]any{"sessionId": sessionID, "storyboard": sb}
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/update-storyboard", "update-storyboard", body, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: update-storyboard: success=false", ErrBadResponse)
	}
	return nil
}

// Protagonists generates the four protagonist candidates.
func (c *Client) Protagonists(ctx context.Context, sessionID string) ([]pipeline.ProtagonistCandidate, error) {
	var out struct {
		ProtagonistImages []pipeline.ProtagonistCandidate `json:"protagonistImages"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/generate-protagonist", "generate-protagonist",
		map[string]any{"sessionId": sessionID}, &out)
	return out.ProtagonistImages, err
}

// CancelJob asks the server to stop a scene job. It reports whether the
// job was still running.
func (c *Client) CancelJob(ctx context.Context, jobID string) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", "cancel", nil, &out)
	return out.Cancelled, err
}

// ScenesRequest starts scene generation.
type ScenesRequest struct {
	SessionID           string `json:"sessionId"`
	ProtagonistImageURL string `json:"protagonistImageUrl,omitempty"`
	NoProtagonist       bool   `json:"noProtagonist,omitempty"`
	AspectRatio         string `json:"aspectRatio,omitempty"`
}

// Stream is an open scene stream. The caller owns Body.
type Stream struct {
	JobID string
	Body  io.ReadCloser
}

// GenerateScenes opens the scene stream. Errors reported before the stream
// starts come back as *APIError.
func (c *Client) GenerateScenes(ctx context.Context, req ScenesRequest) (*Stream, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/generate-final", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mvgen: generate-final: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp, "generate-final")
	}
	return &Stream{JobID: resp.Header.Get("X-Job-ID"), Body: resp.Body}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("mvgen: encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, op string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mvgen: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp, op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, op, err)
	}
	return nil
}

func readAPIError(resp *http.Response, op string) error {
	e := &APIError{Sentinel: sentinelFor(resp.StatusCode), Operation: op, Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		e.Message, e.Details = body.Error, body.Details
	} else {
		e.Message = strings.TrimSpace(string(raw))
	}
	return e
}
