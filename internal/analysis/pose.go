package analysis

import (
	"math"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	poseLandmarkCount = 33

	leftShoulderIdx  = 11
	rightShoulderIdx = 12
	leftHipIdx       = 23
	rightHipIdx      = 24

	// torsoHistorySize bounds the samples used for the movement-variance
	// complexity estimate.
	torsoHistorySize = 30
)

// PoseResult is the pose analyzer's immutable output for one cycle.
type PoseResult struct {
	Available bool

	ShoulderYaw float64
	Complexity  float64
	SlouchScore float64
}

// PoseAnalyzer tracks body posture across cycles. Complexity is the
// variance of recent torso keypoint motion; a restless upper body reads
// as high complexity.
type PoseAnalyzer struct {
	torsoHistory [][4]types.Landmark
}

// NewPoseAnalyzer creates a PoseAnalyzer.
func NewPoseAnalyzer() *PoseAnalyzer {
	return &PoseAnalyzer{}
}

// Analyze processes one pose payload. Payloads with fewer than the full
// 33 world landmarks are treated as unavailable.
func (a *PoseAnalyzer) Analyze(payload *types.PosePayload) PoseResult {
	if payload == nil || len(payload.WorldLandmarks) < poseLandmarkCount {
		return PoseResult{}
	}
	lm := payload.WorldLandmarks

	torso := [4]types.Landmark{
		lm[leftShoulderIdx], lm[rightShoulderIdx],
		lm[leftHipIdx], lm[rightHipIdx],
	}
	a.torsoHistory = append(a.torsoHistory, torso)
	if len(a.torsoHistory) > torsoHistorySize {
		a.torsoHistory = a.torsoHistory[1:]
	}

	return PoseResult{
		Available:   true,
		ShoulderYaw: shoulderYaw(lm[leftShoulderIdx], lm[rightShoulderIdx]),
		Complexity:  a.movementComplexity(),
		SlouchScore: slouchScore(lm),
	}
}

// shoulderYaw is the upper-body rotation in degrees derived from the
// depth difference between shoulders. Zero for square shoulders.
func shoulderYaw(left, right types.Landmark) float64 {
	dx := right.X - left.X
	dz := right.Z - left.Z
	if dx == 0 && dz == 0 {
		return 0
	}
	return math.Atan2(dz, dx) * 180 / math.Pi
}

// movementComplexity is the mean per-axis variance of the tracked torso
// keypoints over the history window, scaled onto roughly [0,1].
func (a *PoseAnalyzer) movementComplexity() float64 {
	n := len(a.torsoHistory)
	if n < 2 {
		return 0
	}

	var total float64
	for point := 0; point < 4; point++ {
		var sumX, sumY float64
		for _, frame := range a.torsoHistory {
			sumX += frame[point].X
			sumY += frame[point].Y
		}
		meanX, meanY := sumX/float64(n), sumY/float64(n)

		var varX, varY float64
		for _, frame := range a.torsoHistory {
			dx := frame[point].X - meanX
			dy := frame[point].Y - meanY
			varX += dx * dx
			varY += dy * dy
		}
		total += (varX + varY) / float64(n)
	}

	return clamp01(total / 4 * 10)
}

// slouchScore measures forward collapse of the torso: how far the
// shoulder midpoint drifts toward the hip midpoint vertically.
func slouchScore(lm []types.Landmark) float64 {
	shoulderY := (lm[leftShoulderIdx].Y + lm[rightShoulderIdx].Y) / 2
	hipY := (lm[leftHipIdx].Y + lm[rightHipIdx].Y) / 2

	span := math.Abs(hipY - shoulderY)
	if span < 1e-6 {
		return 1
	}
	// An upright torso keeps roughly a fixed shoulder-hip span; compress
	// below the nominal span and the score rises.
	const nominalSpan = 0.45
	return clamp01(1 - span/nominalSpan)
}
