package analysis

import (
	"math"
	"testing"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

func uprightPose() []types.Landmark {
	lm := make([]types.Landmark, poseLandmarkCount)
	lm[leftShoulderIdx] = types.Landmark{X: -0.2, Y: -0.3}
	lm[rightShoulderIdx] = types.Landmark{X: 0.2, Y: -0.3}
	lm[leftHipIdx] = types.Landmark{X: -0.15, Y: 0.15}
	lm[rightHipIdx] = types.Landmark{X: 0.15, Y: 0.15}
	return lm
}

func TestPartialPoseUnavailable(t *testing.T) {
	a := NewPoseAnalyzer()
	if res := a.Analyze(nil); res.Available {
		t.Fatal("nil payload should be unavailable")
	}
	short := &types.PosePayload{WorldLandmarks: make([]types.Landmark, 20)}
	if res := a.Analyze(short); res.Available {
		t.Fatal("short landmark list should be unavailable")
	}
}

func TestShoulderYawFromDepth(t *testing.T) {
	a := NewPoseAnalyzer()

	lm := uprightPose()
	res := a.Analyze(&types.PosePayload{WorldLandmarks: lm})
	if math.Abs(res.ShoulderYaw) > 1e-9 {
		t.Fatalf("square shoulders yaw = %v, want 0", res.ShoulderYaw)
	}

	// Left shoulder pushed back in depth rotates the torso.
	lm[leftShoulderIdx].Z = -0.4
	res = a.Analyze(&types.PosePayload{WorldLandmarks: lm})
	if math.Abs(res.ShoulderYaw-45) > 1e-9 {
		t.Fatalf("yaw = %v, want 45", res.ShoulderYaw)
	}
}

func TestComplexityRisesWithMovement(t *testing.T) {
	still := NewPoseAnalyzer()
	for i := 0; i < 20; i++ {
		still.Analyze(&types.PosePayload{WorldLandmarks: uprightPose()})
	}
	stillRes := still.Analyze(&types.PosePayload{WorldLandmarks: uprightPose()})
	if stillRes.Complexity != 0 {
		t.Fatalf("still complexity = %v, want 0", stillRes.Complexity)
	}

	restless := NewPoseAnalyzer()
	var res PoseResult
	for i := 0; i < 20; i++ {
		lm := uprightPose()
		offset := 0.3 * float64(i%2)
		for _, idx := range []int{leftShoulderIdx, rightShoulderIdx, leftHipIdx, rightHipIdx} {
			lm[idx].X += offset
			lm[idx].Y += offset
		}
		res = restless.Analyze(&types.PosePayload{WorldLandmarks: lm})
	}
	if res.Complexity <= stillRes.Complexity {
		t.Fatalf("restless complexity = %v, want above %v", res.Complexity, stillRes.Complexity)
	}
}

func TestSlouchScore(t *testing.T) {
	a := NewPoseAnalyzer()

	upright := a.Analyze(&types.PosePayload{WorldLandmarks: uprightPose()})

	slouched := uprightPose()
	slouched[leftShoulderIdx].Y = 0.0
	slouched[rightShoulderIdx].Y = 0.0
	res := a.Analyze(&types.PosePayload{WorldLandmarks: slouched})

	if res.SlouchScore <= upright.SlouchScore {
		t.Fatalf("slouched score = %v, want above upright %v", res.SlouchScore, upright.SlouchScore)
	}
}
