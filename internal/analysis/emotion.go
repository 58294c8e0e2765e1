package analysis

import "github.com/StudentDONGHYUN/DMS-Project/pkg/types"

// EmotionResult is the blendshape-derived affect estimate for one cycle.
type EmotionResult struct {
	Available  bool
	State      types.EmotionState
	Confidence float64
	Arousal    float64
	Valence    float64
}

// AnalyzeEmotion classifies the dominant emotional state from face
// blendshape coefficients. It is a coarse heuristic: enough to drive the
// stress and fatigue contributions, not a full affect model.
func AnalyzeEmotion(blendshapes map[string]float64) EmotionResult {
	if len(blendshapes) == 0 {
		return EmotionResult{}
	}

	smile := (blendshapes["mouthSmileLeft"] + blendshapes["mouthSmileRight"]) / 2
	frown := (blendshapes["mouthFrownLeft"] + blendshapes["mouthFrownRight"]) / 2
	browDown := (blendshapes["browDownLeft"] + blendshapes["browDownRight"]) / 2
	browUp := blendshapes["browInnerUp"]
	eyeWide := (blendshapes["eyeWideLeft"] + blendshapes["eyeWideRight"]) / 2
	eyeClosed := (blendshapes["eyeBlinkLeft"] + blendshapes["eyeBlinkRight"]) / 2
	jawOpen := blendshapes["jawOpen"]
	squint := (blendshapes["eyeSquintLeft"] + blendshapes["eyeSquintRight"]) / 2

	type candidate struct {
		state types.EmotionState
		score float64
	}
	candidates := []candidate{
		{types.EmotionHappy, smile},
		{types.EmotionAnger, (browDown + squint) / 2},
		{types.EmotionStress, (browDown + frown + browUp) / 3},
		{types.EmotionSurprise, (eyeWide + jawOpen) / 2},
		{types.EmotionFatigue, (eyeClosed + jawOpen*0.5) / 1.5},
	}

	best := candidate{state: types.EmotionNeutral, score: 0.25}
	for _, c := range candidates {
		if c.score > best.score {
			best = c
		}
	}

	arousal := clamp01(eyeWide + browUp + jawOpen*0.5 - eyeClosed*0.7)
	valence := clamp01(0.5 + smile - frown - browDown*0.5)

	return EmotionResult{
		Available:  true,
		State:      best.state,
		Confidence: clamp01(best.score),
		Arousal:    arousal,
		Valence:    valence,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
