// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanOutput = `{
  "mood_analysis": "bittersweet",
  "protagonist_prompt": "girl with a red scarf, 2D illustration style, white background, clean design",
  "scene_prompts": [
    {"scene_number": 1, "timestamp": "0:00-0:08", "description": "rain", "camera_angle": "wide", "lighting": "neon", "prompt": "girl in rain"},
    {"scene_number": 2, "timestamp": "0:08-0:16", "description": "train", "camera_angle": "close-up", "lighting": "soft", "prompt": "girl on train"}
  ]
}`

func TestParseClean(t *testing.T) {
	sb, repaired, err := Parse(cleanOutput)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, "bittersweet", sb.MoodAnalysis)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, "girl on train", sb.Scenes[1].Prompt)
}

func TestParseStripsFencesAndChatter(t *testing.T) {
	for name, raw := range map[string]string{
		"fenced":  "```json\n" + cleanOutput + "\n```",
		"chatter": "Sure! Here is your storyboard:\n" + cleanOutput + "\nEnjoy.",
	} {
		t.Run(name, func(t *testing.T) {
			sb, _, err := Parse(raw)
			require.NoError(t, err)
			assert.Len(t, sb.Scenes, 2)
		})
	}
}

func TestParseRepairsTrailingCommas(t *testing.T) {
	raw := `{"protagonist_prompt": "hero", "scene_prompts": [{"prompt": "a",}, {"prompt": "b"},],}`
	sb, repaired, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, 2, sb.Scenes[1].SceneNumber)
}

func TestParseRepairsTruncatedOutput(t *testing.T) {
	raw := `{"protagonist_prompt": "hero", "scene_prompts": [{"prompt": "a"}, {"prompt": "b", "description": "cut mid`
	sb, repaired, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, "cut mid", sb.Scenes[1].Description)
}

func TestParseRepairsDanglingKey(t *testing.T) {
	raw := `{"protagonist_prompt": "hero", "scene_prompts": [{"prompt": "a", "lighting":`
	sb, _, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, sb.Scenes, 1)
	assert.Equal(t, "a", sb.Scenes[0].Prompt)
}

func TestParseBackfillsPromptFromDescription(t *testing.T) {
	raw := `{"protagonist_prompt": "hero", "scene_prompts": [{"description": "city at dawn"}]}`
	sb, _, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "city at dawn", sb.Scenes[0].Prompt)
}

func TestParseDropsWrongSizedVariations(t *testing.T) {
	for name, vars := range map[string]string{
		"three":     `["cool", "soft", "dark"]`,
		"five":      `["a", "b", "c", "d", "e"]`,
		"one blank": `["cool", "soft", " ", "bright"]`,
	} {
		t.Run(name, func(t *testing.T) {
			raw := `{"protagonist_prompt": "hero", "protagonist_variations": ` + vars + `, "scene_prompts": [{"prompt": "a"}, {"prompt": "b"}]}`
			sb, repaired, err := Parse(raw)
			require.NoError(t, err)
			assert.True(t, repaired)
			assert.Nil(t, sb.ProtagonistVariations)
			assert.Len(t, sb.Scenes, 2)
		})
	}

	sb, repaired, err := Parse(`{"protagonist_prompt": "hero", "protagonist_variations": ["a", "b", "c", "d"], "scene_prompts": [{"prompt": "x"}]}`)
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.Equal(t, []string{"a", "b", "c", "d"}, sb.ProtagonistVariations)
}

func TestParseDropsBlankScenes(t *testing.T) {
	raw := `{"protagonist_prompt": "hero", "scene_prompts": [
		{"scene_number": 1, "prompt": "a"},
		{"scene_number": 2, "prompt": "", "description": "  "},
		{"scene_number": 3, "description": "c"}
	]}`
	sb, repaired, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, repaired)
	require.Len(t, sb.Scenes, 2)
	assert.Equal(t, "a", sb.Scenes[0].Prompt)
	assert.Equal(t, "c", sb.Scenes[1].Prompt)
	assert.Equal(t, 2, sb.Scenes[1].SceneNumber)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"no json":         "I cannot help with that.",
		"missing hero":    `{"scene_prompts": [{"prompt": "a"}]}`,
		"scenes not list": `{"protagonist_prompt": "hero", "scene_prompts": "none"}`,
		"empty scenes":    `{"protagonist_prompt": "hero", "scene_prompts": []}`,
		"only blank":      `{"protagonist_prompt": "hero", "scene_prompts": [{"prompt": " ", "description": ""}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestRepairJSONKeepsStringContent(t *testing.T) {
	in := `{"a": "x, ]", "b": [1, 2,]}`
	out := repairJSON(in)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "x, ]", v["a"])
}
