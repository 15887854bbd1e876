// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sampling parameters for image requests.
const (
	imageTemperature = 0.8
	imageTopK        = 40
	imageTopP        = 0.95
)

const maxErrorBody = 4 << 10

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature"`
	TopK               int          `json:"topK"`
	TopP               float64      `json:"topP"`
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type requestBody struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type responseBody struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func newRequestBody(parts []part, aspect AspectRatio) requestBody {
	return requestBody{
		Contents: []content{{Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        imageTemperature,
			TopK:               imageTopK,
			TopP:               imageTopP,
			ResponseModalities: []string{"image"},
			ImageConfig:        &imageConfig{AspectRatio: string(aspect)},
		},
	}
}

// ProviderError is a non-2xx answer from the image endpoint.
type ProviderError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("image provider error: %s", e.Status)
}

func (c *Client) call(ctx context.Context, body requestBody) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &ProviderError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(b))}
	}

	var out responseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	return extractImage(out)
}

func extractImage(out responseBody) (string, error) {
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/jpeg"
			}
			return "data:" + mime + ";base64," + p.InlineData.Data, nil
		}
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrNoImage, out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) > 0 && out.Candidates[0].FinishReason != "" {
		return "", fmt.Errorf("%w: finish reason %s", ErrNoImage, out.Candidates[0].FinishReason)
	}
	return "", ErrNoImage
}
