package risk

import (
	"math"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// predictiveWeight blends the predictive signal into the combined score.
const predictiveWeight = 0.3

// Inputs carries everything the aggregator needs from the current cycle.
type Inputs struct {
	Fatigue     float64
	Distraction float64
	Predictive  float64

	Emotion           types.EmotionState
	EmotionConfidence float64

	PoseComplexity   float64
	HeadRoll         float64 // degrees
	GazeZoneDuration float64 // seconds in the current gaze zone

	DistractionObjects []string
	PhoneDetected      bool
}

// Result is the aggregated risk decision for one cycle.
type Result struct {
	Combined float64
	Level    types.RiskLevel
	Events   []types.AnalysisEvent
}

// Aggregate combines the fused scores with the predictive signal and
// categorical modifiers into one discrete risk level, and synthesizes the
// high-level events the state machine consumes.
func Aggregate(in Inputs) Result {
	combined := math.Max(in.Fatigue, in.Distraction)
	combined = combined*(1-predictiveWeight) + in.Predictive*predictiveWeight

	if in.Emotion == types.EmotionStress && in.EmotionConfidence > 0.7 {
		combined = math.Min(1, combined+0.2)
	}
	if in.PoseComplexity > 0.7 {
		combined = math.Min(1, combined+0.1)
	}
	// A heavily tilted head held away from the road is risky on its own.
	if math.Abs(in.HeadRoll) > 25.0 && in.GazeZoneDuration > 1.0 {
		combined = math.Max(combined, 0.7)
	}

	return Result{
		Combined: combined,
		Level:    LevelFor(combined),
		Events:   synthesizeEvents(in),
	}
}

// LevelFor maps a combined score to a discrete level. Thresholds are
// strict: 0.8 itself is still HIGH, 0.2 itself is still SAFE.
func LevelFor(combined float64) types.RiskLevel {
	switch {
	case combined > 0.8:
		return types.RiskCritical
	case combined > 0.6:
		return types.RiskHigh
	case combined > 0.4:
		return types.RiskMedium
	case combined > 0.2:
		return types.RiskLow
	default:
		return types.RiskSafe
	}
}

func synthesizeEvents(in Inputs) []types.AnalysisEvent {
	var events []types.AnalysisEvent

	if in.Fatigue > 0.8 {
		events = append(events, types.EventFatigueAccumulation)
	} else if in.Distraction > 0.7 {
		events = append(events, types.EventAttentionDecline)
	}
	if in.Emotion == types.EmotionStress && in.EmotionConfidence > 0.7 {
		events = append(events, types.EventEmotionStressDetected)
	}
	if len(in.DistractionObjects) > 0 {
		events = append(events, types.EventDistractionObjectDetected)
	}
	if in.PhoneDetected {
		events = append(events, types.EventPhoneUsageConfirmed)
	}
	if in.Fatigue <= 0.5 && in.Distraction <= 0.5 && in.Predictive <= 0.5 {
		events = append(events, types.EventNormalBehavior)
	}
	return events
}
