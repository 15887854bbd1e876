// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
)

// OpenAIConfig points the eino OpenAI chat model at any OpenAI-compatible
// endpoint. Request deadlines come from the caller's context.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIModel builds an eino OpenAI chat model.
func NewOpenAIModel(ctx context.Context, cfg OpenAIConfig) (ChatModel, error) {
	maxTokens := maxOutputTokens
	temp := temperature

	m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}
	return m, nil
}
