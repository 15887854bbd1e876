// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imagegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtagonistPromptsDefaultMoods(t *testing.T) {
	got := ProtagonistPrompts("girl with red scarf", nil)
	require.Len(t, got, CandidateCount)

	moods := []string{"Confident/Cool", "Gentle/Soft", "Mysterious/Enigmatic", "Dynamic/Energetic"}
	for i, p := range got {
		assert.True(t, strings.HasPrefix(p, "girl with red scarf. "+moods[i]), p)
		assert.Contains(t, p, "high-quality modern anime style")
		assert.True(t, strings.HasSuffix(p, "Pure white background (#FFFFFF)."))
	}
}

func TestProtagonistPromptsUsesFourVariations(t *testing.T) {
	got := ProtagonistPrompts("ignored", []string{"a", "b", "c", "d"})
	require.Len(t, got, CandidateCount)
	assert.True(t, strings.HasPrefix(got[2], "c. high-quality"))
	assert.NotContains(t, got[0], "ignored")

	got = ProtagonistPrompts("base", []string{"only", "three", "here"})
	assert.Contains(t, got[0], "base. Confident/Cool mood")
}

func TestScenePrompt(t *testing.T) {
	plain := ScenePrompt("rain on the city", false)
	assert.True(t, strings.HasPrefix(plain, "rain on the city. high-quality anime scene"))
	assert.NotContains(t, plain, "CRITICAL")

	withRef := ScenePrompt("rain on the city", true)
	assert.True(t, strings.HasSuffix(withRef, "Character should look identical to reference."))
}
