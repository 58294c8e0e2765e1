package analysis

import "github.com/StudentDONGHYUN/DMS-Project/pkg/types"

// Steering wheel zone in normalized image coordinates.
const (
	wheelXMin = 0.3
	wheelXMax = 0.7
	wheelYMin = 0.4
	wheelYMax = 0.8
)

// HandResult is the hand analyzer's immutable output for one cycle.
type HandResult struct {
	Available bool

	HandsDetected     int
	HandsOnWheel      int
	OnWheelConfidence float64
}

// AnalyzeHands scores steering wheel grip from detected hand positions.
// Confidence is the fraction of the expected two hands inside the wheel
// zone; a zone hit is judged by the wrist landmark.
func AnalyzeHands(payload *types.HandPayload) HandResult {
	if payload == nil || len(payload.Hands) == 0 {
		return HandResult{}
	}

	onWheel := 0
	for _, hand := range payload.Hands {
		if inWheelZone(hand.Wrist) {
			onWheel++
		}
	}

	return HandResult{
		Available:         true,
		HandsDetected:     len(payload.Hands),
		HandsOnWheel:      onWheel,
		OnWheelConfidence: clamp01(float64(onWheel) / 2),
	}
}

func inWheelZone(p types.Landmark) bool {
	return p.X >= wheelXMin && p.X <= wheelXMax &&
		p.Y >= wheelYMin && p.Y <= wheelYMax
}
