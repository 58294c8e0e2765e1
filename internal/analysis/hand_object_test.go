package analysis

import (
	"testing"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

func TestHandsOnWheelConfidence(t *testing.T) {
	both := &types.HandPayload{Hands: []types.HandDetection{
		{Handedness: "Left", Wrist: types.Landmark{X: 0.4, Y: 0.6}},
		{Handedness: "Right", Wrist: types.Landmark{X: 0.6, Y: 0.6}},
	}}
	res := AnalyzeHands(both)
	if res.OnWheelConfidence != 1 {
		t.Fatalf("both hands on wheel confidence = %v, want 1", res.OnWheelConfidence)
	}

	one := &types.HandPayload{Hands: []types.HandDetection{
		{Handedness: "Left", Wrist: types.Landmark{X: 0.4, Y: 0.6}},
		{Handedness: "Right", Wrist: types.Landmark{X: 0.9, Y: 0.2}},
	}}
	res = AnalyzeHands(one)
	if res.OnWheelConfidence != 0.5 {
		t.Fatalf("one hand on wheel confidence = %v, want 0.5", res.OnWheelConfidence)
	}
	if res.HandsOnWheel != 1 || res.HandsDetected != 2 {
		t.Fatalf("counts = %d/%d, want 1/2", res.HandsOnWheel, res.HandsDetected)
	}
}

func TestWheelZoneEdges(t *testing.T) {
	corner := &types.HandPayload{Hands: []types.HandDetection{
		{Wrist: types.Landmark{X: 0.3, Y: 0.4}},
	}}
	if res := AnalyzeHands(corner); res.HandsOnWheel != 1 {
		t.Fatal("zone boundary is inclusive")
	}

	outside := &types.HandPayload{Hands: []types.HandDetection{
		{Wrist: types.Landmark{X: 0.299, Y: 0.4}},
	}}
	if res := AnalyzeHands(outside); res.HandsOnWheel != 0 {
		t.Fatal("just outside the zone should not count")
	}
}

func TestNoHandsUnavailable(t *testing.T) {
	if res := AnalyzeHands(nil); res.Available {
		t.Fatal("nil payload should be unavailable")
	}
	if res := AnalyzeHands(&types.HandPayload{}); res.Available {
		t.Fatal("empty payload should be unavailable")
	}
}

func TestObjectFilteringAndPhoneFlag(t *testing.T) {
	payload := &types.ObjectPayload{Detections: []types.ObjectDetection{
		{Category: "Cell Phone", Confidence: 0.9},
		{Category: "cup", Confidence: 0.8},
		// Below the confidence floor, then a non-distraction label.
		{Category: "cup", Confidence: 0.3},
		{Category: "steering wheel", Confidence: 0.95},
	}}

	res := AnalyzeObjects(payload, nil)
	if res.DistractionCount != 2 {
		t.Fatalf("distraction count = %d, want 2", res.DistractionCount)
	}
	if !res.PhoneDetected {
		t.Fatal("phone should be flagged")
	}
	if len(res.Categories) != 2 {
		t.Fatalf("categories = %v", res.Categories)
	}
}

func TestObjectsRequireHandProximity(t *testing.T) {
	phone := types.ObjectDetection{
		Category:   "cell phone",
		Confidence: 0.9,
		Box:        types.BoundingBox{X: 0.45, Y: 0.45, Width: 0.1, Height: 0.1},
	}
	payload := &types.ObjectPayload{Detections: []types.ObjectDetection{phone}}

	// Box center (0.5, 0.5) right next to a wrist: held.
	near := []types.Landmark{{X: 0.52, Y: 0.55}}
	res := AnalyzeObjects(payload, near)
	if res.DistractionCount != 1 || !res.PhoneDetected {
		t.Fatalf("phone near wrist should count, got %+v", res)
	}

	// Only a far wrist: the phone is lying somewhere, not held.
	far := []types.Landmark{{X: 0.9, Y: 0.1}}
	res = AnalyzeObjects(payload, far)
	if res.DistractionCount != 0 || res.PhoneDetected {
		t.Fatalf("phone far from every wrist should not count, got %+v", res)
	}

	// No hands tracked at all: the gate is bypassed.
	res = AnalyzeObjects(payload, nil)
	if res.DistractionCount != 1 || !res.PhoneDetected {
		t.Fatalf("phone with no tracked hands should count, got %+v", res)
	}
}

func TestObjectsWithoutDistractions(t *testing.T) {
	payload := &types.ObjectPayload{Detections: []types.ObjectDetection{
		{Category: "person", Confidence: 0.99},
	}}
	res := AnalyzeObjects(payload, nil)
	if !res.Available {
		t.Fatal("detections present, should be available")
	}
	if res.DistractionCount != 0 || res.PhoneDetected {
		t.Fatalf("unexpected distractions: %+v", res)
	}
}
