// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package storyboard turns song lyrics into a structured storyboard through an LLM.
package storyboard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultSceneCount is used when a request does not name a scene count.
const DefaultSceneCount = 12

// ProtagonistVariationCount is the number of mood variations a storyboard may carry.
const ProtagonistVariationCount = 4

var sceneCounts = []int{8, 12, 20, 25, 32}

var (
	// ErrInvalidInput reports bad lyrics or an unsupported scene count.
	ErrInvalidInput = errors.New("invalid storyboard input")
	// ErrInvalidStoryboard reports a structurally broken storyboard.
	ErrInvalidStoryboard = errors.New("invalid storyboard")
	// ErrNotConfigured is returned on first use when no provider API key is set.
	ErrNotConfigured = errors.New("GEMINI_API_KEY is not configured")
)

// SceneCounts returns the supported scene counts in ascending order.
func SceneCounts() []int {
	return slices.Clone(sceneCounts)
}

// ValidSceneCount reports whether n is a supported scene count.
func ValidSceneCount(n int) bool {
	return slices.Contains(sceneCounts, n)
}

// Storyboard is the plan derived from the lyrics.
type Storyboard struct {
	ProtagonistPrompt     string   `json:"protagonist_prompt"`
	ProtagonistVariations []string `json:"protagonist_variations,omitempty"`
	MoodAnalysis          string   `json:"mood_analysis,omitempty"`
	Scenes                []Scene  `json:"scene_prompts"`
}

// Scene is one unit of the storyboard and one image of the final output.
type Scene struct {
	SceneNumber int    `json:"scene_number"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
	CameraAngle string `json:"camera_angle"`
	Lighting    string `json:"lighting"`
	Prompt      string `json:"prompt"`
}

// Validate checks the structural invariants of a storyboard.
func (s Storyboard) Validate() error {
	if strings.TrimSpace(s.ProtagonistPrompt) == "" {
		return fmt.Errorf("%w: protagonist_prompt is empty", ErrInvalidStoryboard)
	}
	if len(s.Scenes) == 0 {
		return fmt.Errorf("%w: scene_prompts is empty", ErrInvalidStoryboard)
	}
	if n := len(s.ProtagonistVariations); n != 0 && n != ProtagonistVariationCount {
		return fmt.Errorf("%w: protagonist_variations has %d entries, want %d",
			ErrInvalidStoryboard, n, ProtagonistVariationCount)
	}
	for i, sc := range s.Scenes {
		if strings.TrimSpace(sc.Prompt) == "" {
			return fmt.Errorf("%w: scene %d has an empty prompt", ErrInvalidStoryboard, i+1)
		}
	}
	return nil
}

// Normalize returns a deep copy whose scene numbers match their 1-based position.
func (s Storyboard) Normalize() Storyboard {
	out := s.Clone()
	for i := range out.Scenes {
		out.Scenes[i].SceneNumber = i + 1
	}
	return out
}

// Clone returns a deep copy.
func (s Storyboard) Clone() Storyboard {
	out := s
	out.ProtagonistVariations = slices.Clone(s.ProtagonistVariations)
	out.Scenes = slices.Clone(s.Scenes)
	return out
}
