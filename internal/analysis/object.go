package analysis

import (
	"math"
	"strings"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// minObjectConfidence filters out weak detections before they can
	// raise the distraction score.
	minObjectConfidence = 0.5

	// handProximityRadius is how far (normalized image distance) a
	// detection's box center may sit from the nearest wrist and still
	// count as held.
	handProximityRadius = 0.3
)

// distractionCategories are detector labels that count against the
// driver when held or visible in the cabin.
var distractionCategories = map[string]bool{
	"cell phone": true,
	"phone":      true,
	"cup":        true,
	"bottle":     true,
	"sandwich":   true,
	"donut":      true,
	"book":       true,
	"cigarette":  true,
	"remote":     true,
}

// ObjectResult is the object analyzer's immutable output for one cycle.
type ObjectResult struct {
	Available bool

	DistractionCount int
	PhoneDetected    bool
	Categories       []string
}

// AnalyzeObjects counts confident distraction-relevant detections and
// flags phone presence separately, since phone usage drives its own
// state transition. Detections only count when held: the box center
// must be near one of the given wrists. Without any detected hands the
// proximity gate is bypassed, so a hand-tracking dropout cannot hide a
// phone in plain view.
func AnalyzeObjects(payload *types.ObjectPayload, wrists []types.Landmark) ObjectResult {
	if payload == nil || len(payload.Detections) == 0 {
		return ObjectResult{}
	}

	result := ObjectResult{Available: true}
	for _, obj := range payload.Detections {
		if obj.Confidence < minObjectConfidence {
			continue
		}
		category := strings.ToLower(obj.Category)
		if !distractionCategories[category] {
			continue
		}
		if !nearAnyHand(obj.Box, wrists) {
			continue
		}
		result.DistractionCount++
		result.Categories = append(result.Categories, category)
		if category == "cell phone" || category == "phone" {
			result.PhoneDetected = true
		}
	}
	return result
}

func nearAnyHand(box types.BoundingBox, wrists []types.Landmark) bool {
	if len(wrists) == 0 {
		return true
	}
	cx := box.X + box.Width/2
	cy := box.Y + box.Height/2
	for _, w := range wrists {
		if math.Hypot(cx-w.X, cy-w.Y) <= handProximityRadius {
			return true
		}
	}
	return false
}
