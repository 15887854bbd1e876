// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const systemTemplate = `You are a music video director and storyboard artist.
You answer with a single JSON object and nothing else.`

// Go template syntax: the JSON example below only uses single braces.
const userTemplate = `Read the song lyrics below and plan a cinematic music video of exactly {{.scene_count}} scenes.

LYRICS:
{{.lyrics}}

PROTAGONIST RULES:
1. 2D illustration (anime or cartoon) style.
2. Plain white background.
3. One consistent, memorable character design.
4. Full body or upper body portrait usable as a character reference.

Return JSON with this shape:
{
  "mood_analysis": "one paragraph on the emotional arc of the song",
  "protagonist_prompt": "appearance, clothing, expression and pose; must contain '2D illustration style, white background, clean design'",
  "protagonist_variations": ["confident/cool take", "gentle/soft take", "mysterious/enigmatic take", "dynamic/energetic take"],
  "scene_prompts": [
    {
      "scene_number": 1,
      "timestamp": "0:00-0:08",
      "description": "what happens, tied to the lyrics",
      "camera_angle": "wide shot, close-up, aerial view, ...",
      "lighting": "dramatic, soft, neon, golden hour, ...",
      "prompt": "full image prompt: protagonist action, environment, mood, camera angle, lighting"
    }
  ]
}

Requirements:
- exactly {{.scene_count}} entries in scene_prompts, spread evenly over the song
- every scene visually distinct; vary camera angles and lighting
- keep the protagonist consistent across scenes
- output the JSON object only`

// chatTemplate renders the storyboard request messages.
var chatTemplate = prompt.FromMessages(schema.GoTemplate,
	schema.SystemMessage(systemTemplate),
	schema.UserMessage(userTemplate),
)

// BuildMessages renders the LLM conversation for one storyboard request.
func BuildMessages(ctx context.Context, lyrics string, sceneCount int) ([]*schema.Message, error) {
	msgs, err := chatTemplate.Format(ctx, map[string]any{
		"lyrics":      lyrics,
		"scene_count": sceneCount,
	})
	if err != nil {
		return nil, fmt.Errorf("render storyboard prompt: %w", err)
	}
	return msgs, nil
}
