package fusion

import (
	"math"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// Fixed modality weights. Renormalization over the available modalities
// keeps a missing modality from biasing the fused score toward zero.
const (
	weightFace    = 0.35
	weightPose    = 0.25
	weightHand    = 0.20
	weightObject  = 0.10
	weightEmotion = 0.10
)

// FaceSignal is the face analyzer's immutable per-cycle contribution.
type FaceSignal struct {
	Available           bool
	Perclos             float64
	EnhancedEAR         float64
	TemporalAttention   float64
	GazeDeviationScore  float64
	AttentionFocusScore float64
}

// PoseSignal is the body-pose analyzer's immutable per-cycle contribution.
type PoseSignal struct {
	Available bool
	// HeadNodRateScore is the head-nod count over the last 120s, capped
	// at 5 and divided by 5.
	HeadNodRateScore float64
}

// HandSignal is the hand analyzer's immutable per-cycle contribution.
type HandSignal struct {
	Available              bool
	HandsOnWheelConfidence float64
}

// ObjectSignal is the object analyzer's immutable per-cycle contribution.
type ObjectSignal struct {
	Available              bool
	DistractionObjectCount int
}

// EmotionSignal is the emotion recognizer's immutable per-cycle contribution.
type EmotionSignal struct {
	Available  bool
	Emotion    types.EmotionState
	Confidence float64
	Arousal    float64
}

// FuseFatigue combines face, pose and emotion signals into one fatigue
// scalar. Hand and object modalities carry no fatigue information and are
// excluded. Returns 0 when no modality is available.
func FuseFatigue(face FaceSignal, pose PoseSignal, emotion EmotionSignal) float64 {
	score, totalWeight := 0.0, 0.0

	if face.Available {
		faceFatigue := 0.4*face.Perclos + 0.3*face.EnhancedEAR + 0.3*face.TemporalAttention
		score += faceFatigue * weightFace
		totalWeight += weightFace
	}
	if pose.Available {
		score += pose.HeadNodRateScore * weightPose
		totalWeight += weightPose
	}
	if emotion.Available {
		emotionFatigue := 0.0
		if emotion.Emotion == types.EmotionFatigue {
			emotionFatigue = emotion.Confidence
		} else {
			emotionFatigue = math.Max(0, 1-emotion.Arousal)
		}
		score += emotionFatigue * weightEmotion
		totalWeight += weightEmotion
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

// FuseDistraction combines face, hand, object and emotion signals into one
// distraction scalar. Pose carries no distraction information and is
// excluded. Returns 0 when no modality is available.
func FuseDistraction(face FaceSignal, hand HandSignal, object ObjectSignal, emotion EmotionSignal) float64 {
	score, totalWeight := 0.0, 0.0

	if face.Available {
		faceDistraction := math.Max(face.GazeDeviationScore, 1-face.AttentionFocusScore)
		score += faceDistraction * weightFace
		totalWeight += weightFace
	}
	if hand.Available {
		score += (1 - hand.HandsOnWheelConfidence) * weightHand
		totalWeight += weightHand
	}
	if object.Available {
		objectDistraction := math.Min(1.0, float64(object.DistractionObjectCount)/5.0)
		score += objectDistraction * weightObject
		totalWeight += weightObject
	}
	if emotion.Available {
		emotionDistraction := 0.0
		if emotion.Emotion == types.EmotionStress || emotion.Emotion == types.EmotionAnger {
			emotionDistraction = emotion.Confidence
		}
		score += emotionDistraction * weightEmotion
		totalWeight += weightEmotion
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

// HeadNodRateScore derives the pose fatigue contribution from a windowed
// head-nod count: capped at 5 nods, normalized to [0,1].
func HeadNodRateScore(headNodCount int) float64 {
	return math.Min(1.0, float64(headNodCount)/5.0)
}
