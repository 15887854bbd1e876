// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package imagegen

// CandidateCount is the number of protagonist candidates per batch.
const CandidateCount = 4

var moodVariations = [CandidateCount]string{
	"Confident/Cool mood: strong presence, charismatic expression, sharp gaze",
	"Gentle/Soft mood: warm expression, approachable demeanor, soft features",
	"Mysterious/Enigmatic mood: intriguing aura, enigmatic expression, captivating presence",
	"Dynamic/Energetic mood: vibrant personality, lively expression, energetic pose",
}

const protagonistQuality = "high-quality modern anime style, detailed shading and highlights, clean linework, " +
	"professional anime series quality (Netflix anime, Crunchyroll original quality), NOT chibi style, " +
	"NOT textbook illustration, vibrant sophisticated colors, charismatic character energy"

const sceneQuality = "high-quality anime scene, modern animation style (Netflix anime quality), " +
	"realistic character proportions, sharp facial features, dynamic composition, " +
	"dramatic lighting with strong contrast, detailed environment, vibrant sophisticated colors, " +
	"cinematic framing, professional anime film/series quality, detailed shading and depth, NOT textbook style"

const identityInstruction = "CRITICAL: Maintain exact character appearance from reference image - " +
	"same face, same features, same style. Character should look identical to reference."

// ProtagonistPrompts returns the four candidate prompts. Exactly four
// variations replace the built-in moods; any other count is ignored.
func ProtagonistPrompts(prompt string, variations []string) []string {
	base := make([]string, CandidateCount)
	if len(variations) == CandidateCount {
		copy(base, variations)
	} else {
		for i, mood := range moodVariations {
			base[i] = prompt + ". " + mood
		}
	}

	out := make([]string, CandidateCount)
	for i, b := range base {
		out[i] = b + ". " + protagonistQuality + ". Pure white background (#FFFFFF)."
	}
	return out
}

// ScenePrompt decorates a storyboard scene prompt for rendering.
func ScenePrompt(base string, withReference bool) string {
	p := base + ". " + sceneQuality + "."
	if withReference {
		p += " " + identityInstruction
	}
	return p
}
