// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiTopK int32 = 40

// GeminiModel adapts the Gemini SDK to ChatModel.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel opens a Gemini client for the named model.
func NewGeminiModel(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*GeminiModel, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: modelName}, nil
}

// Generate sends system messages as the system instruction and the remaining
// messages as one user turn. The response is requested as JSON.
func (g *GeminiModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	o := model.GetCommonOptions(&model.Options{}, opts...)

	gm := g.client.GenerativeModel(g.model)
	gm.SetTopK(geminiTopK)
	gm.ResponseMIMEType = "application/json"
	if o.Temperature != nil {
		gm.SetTemperature(*o.Temperature)
	}
	if o.TopP != nil {
		gm.SetTopP(*o.TopP)
	}
	if o.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*o.MaxTokens))
	}

	var system, user []string
	for _, m := range input {
		if m == nil {
			continue
		}
		if m.Role == schema.System {
			system = append(system, m.Content)
		} else {
			user = append(user, m.Content)
		}
	}
	if len(system) > 0 {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(user) == 0 {
		return nil, errors.New("gemini: no user content")
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(strings.Join(user, "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

// Close releases the underlying client.
func (g *GeminiModel) Close() error {
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("gemini: response has no text parts")
	}
	return b.String(), nil
}
