package fusion

import (
	"math"
	"testing"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestSingleModalityRenormalization(t *testing.T) {
	// With exactly one modality available the weight cancels: the fused
	// output equals the raw contribution.
	face := FaceSignal{
		Available:         true,
		Perclos:           0.5,
		EnhancedEAR:       0.5,
		TemporalAttention: 0.5,
	}
	raw := 0.4*0.5 + 0.3*0.5 + 0.3*0.5
	if got := FuseFatigue(face, PoseSignal{}, EmotionSignal{}); !almostEqual(got, raw) {
		t.Fatalf("face-only fatigue = %v, want raw contribution %v", got, raw)
	}

	pose := PoseSignal{Available: true, HeadNodRateScore: 0.6}
	if got := FuseFatigue(FaceSignal{}, pose, EmotionSignal{}); !almostEqual(got, 0.6) {
		t.Fatalf("pose-only fatigue = %v, want 0.6", got)
	}

	hand := HandSignal{Available: true, HandsOnWheelConfidence: 0.25}
	if got := FuseDistraction(FaceSignal{}, hand, ObjectSignal{}, EmotionSignal{}); !almostEqual(got, 0.75) {
		t.Fatalf("hand-only distraction = %v, want 0.75", got)
	}
}

func TestNoModalityAvailable(t *testing.T) {
	if got := FuseFatigue(FaceSignal{}, PoseSignal{}, EmotionSignal{}); got != 0 {
		t.Fatalf("fatigue with nothing available = %v, want 0", got)
	}
	if got := FuseDistraction(FaceSignal{}, HandSignal{}, ObjectSignal{}, EmotionSignal{}); got != 0 {
		t.Fatalf("distraction with nothing available = %v, want 0", got)
	}
}

func TestFatigueWeighting(t *testing.T) {
	face := FaceSignal{Available: true, Perclos: 1, EnhancedEAR: 1, TemporalAttention: 1}
	pose := PoseSignal{Available: true, HeadNodRateScore: 0}
	emotion := EmotionSignal{Available: true, Emotion: types.EmotionFatigue, Confidence: 1}

	// face contributes 1*0.35, pose 0*0.25, emotion 1*0.10 over 0.70.
	want := (1*0.35 + 0*0.25 + 1*0.10) / 0.70
	if got := FuseFatigue(face, pose, emotion); !almostEqual(got, want) {
		t.Fatalf("fatigue = %v, want %v", got, want)
	}
}

func TestEmotionFatigueContribution(t *testing.T) {
	cases := []struct {
		name    string
		emotion EmotionSignal
		want    float64
	}{
		{"fatigue emotion uses confidence", EmotionSignal{Available: true, Emotion: types.EmotionFatigue, Confidence: 0.8, Arousal: 0.9}, 0.8},
		{"low arousal maps to fatigue", EmotionSignal{Available: true, Emotion: types.EmotionNeutral, Confidence: 0.9, Arousal: 0.2}, 0.8},
		{"arousal above one clamps to zero", EmotionSignal{Available: true, Emotion: types.EmotionHappy, Arousal: 1.4}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Emotion-only: renormalization exposes the raw contribution.
			if got := FuseFatigue(FaceSignal{}, PoseSignal{}, tc.emotion); !almostEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDistractionContributions(t *testing.T) {
	// Face distraction is the max of gaze deviation and attention loss.
	face := FaceSignal{Available: true, GazeDeviationScore: 0.2, AttentionFocusScore: 0.1}
	if got := FuseDistraction(face, HandSignal{}, ObjectSignal{}, EmotionSignal{}); !almostEqual(got, 0.9) {
		t.Fatalf("face distraction = %v, want 0.9 (1-attention wins)", got)
	}

	// Object count caps at 5.
	object := ObjectSignal{Available: true, DistractionObjectCount: 12}
	if got := FuseDistraction(FaceSignal{}, HandSignal{}, object, EmotionSignal{}); !almostEqual(got, 1.0) {
		t.Fatalf("object distraction = %v, want capped 1.0", got)
	}

	// Stress and anger contribute confidence, anything else zero.
	stress := EmotionSignal{Available: true, Emotion: types.EmotionStress, Confidence: 0.7}
	if got := FuseDistraction(FaceSignal{}, HandSignal{}, ObjectSignal{}, stress); !almostEqual(got, 0.7) {
		t.Fatalf("stress distraction = %v, want 0.7", got)
	}
	happy := EmotionSignal{Available: true, Emotion: types.EmotionHappy, Confidence: 0.7}
	if got := FuseDistraction(FaceSignal{}, HandSignal{}, ObjectSignal{}, happy); got != 0 {
		t.Fatalf("happy distraction = %v, want 0", got)
	}
}

func TestHeadNodRateScore(t *testing.T) {
	cases := []struct {
		count int
		want  float64
	}{
		{0, 0}, {2, 0.4}, {5, 1.0}, {9, 1.0},
	}
	for _, tc := range cases {
		if got := HeadNodRateScore(tc.count); !almostEqual(got, tc.want) {
			t.Fatalf("HeadNodRateScore(%d) = %v, want %v", tc.count, got, tc.want)
		}
	}
}
