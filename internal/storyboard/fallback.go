// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package storyboard

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	fallbackProtagonist = "A young music video protagonist with a distinctive outfit and expressive eyes, " +
		"2D illustration style, white background, clean design, upper body portrait"
	fallbackMood       = "Mood analysis unavailable; placeholder storyboard."
	secondsPerScene    = 8
	fallbackCamera     = "medium shot"
	fallbackLighting   = "soft cinematic lighting"
	fallbackSceneStyle = "cinematic music video frame featuring the protagonist"
)

// Fallback builds a synthetic storyboard with sceneCount placeholder scenes so
// the pipeline can continue when the LLM output is unusable. Scene text cycles
// through the non-empty lyric lines.
func Fallback(lyrics string, sceneCount int) Storyboard {
	if sceneCount <= 0 {
		sceneCount = DefaultSceneCount
	}
	lines := lyricLines(lyrics)

	scenes := make([]Scene, sceneCount)
	for i := range scenes {
		desc := fmt.Sprintf("Scene %d", i+1)
		if len(lines) > 0 {
			desc = lines[i%len(lines)]
		}
		scenes[i] = Scene{
			SceneNumber: i + 1,
			Timestamp:   timestamp(i),
			Description: desc,
			CameraAngle: fallbackCamera,
			Lighting:    fallbackLighting,
			Prompt:      fmt.Sprintf("%s, %s, %s, %s", desc, fallbackSceneStyle, fallbackCamera, fallbackLighting),
		}
	}
	return Storyboard{
		ProtagonistPrompt: fallbackProtagonist,
		MoodAnalysis:      fallbackMood,
		Scenes:            scenes,
	}
}

// NormalizeLyrics composes Unicode to NFC, folds CRLF line endings and trims
// surrounding whitespace.
func NormalizeLyrics(lyrics string) string {
	lyrics = strings.ReplaceAll(norm.NFC.String(lyrics), "\r\n", "\n")
	return strings.TrimSpace(strings.ReplaceAll(lyrics, "\r", "\n"))
}

func lyricLines(lyrics string) []string {
	var out []string
	for _, line := range strings.Split(lyrics, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func timestamp(i int) string {
	from, to := i*secondsPerScene, (i+1)*secondsPerScene
	return fmt.Sprintf("%d:%02d-%d:%02d", from/60, from%60, to/60, to%60)
}
