package analysis

import (
	"math"
	"sync"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// zoneWeights scores how distracting a sustained look at each zone is.
var zoneWeights = map[types.GazeZone]float64{
	types.ZoneFront:             0.0,
	types.ZoneRearviewMirror:    0.2,
	types.ZoneLeftSideMirror:    0.2,
	types.ZoneRightSideMirror:   0.2,
	types.ZoneInstrumentCluster: 0.1,
	types.ZoneCenterStack:       0.4,
	types.ZoneFloor:             0.8,
	types.ZoneRoof:              0.6,
	types.ZonePassenger:         0.7,
	types.ZoneDriverWindow:      0.5,
	types.ZoneBlindSpotLeft:     0.9,
}

// gazeHistorySize bounds the zone-change history used for stability.
const gazeHistorySize = 30

// GazeClassifier maps head yaw/pitch to cabin gaze zones and tracks how
// stable the gaze has been recently.
type GazeClassifier struct {
	mu      sync.Mutex
	history []types.GazeZone
}

// NewGazeClassifier creates an empty classifier.
func NewGazeClassifier() *GazeClassifier {
	return &GazeClassifier{}
}

// Classify maps head yaw and pitch (degrees, driver's perspective) to a
// gaze zone and records it for stability tracking.
func (g *GazeClassifier) Classify(yaw, pitch float64) types.GazeZone {
	zone := classifyZone(yaw, pitch)

	g.mu.Lock()
	if len(g.history) >= gazeHistorySize {
		g.history = g.history[1:]
	}
	g.history = append(g.history, zone)
	g.mu.Unlock()

	return zone
}

func classifyZone(yaw, pitch float64) types.GazeZone {
	switch {
	case pitch < -30:
		return types.ZoneFloor
	case pitch > 25:
		return types.ZoneRoof
	case yaw < -70:
		return types.ZoneBlindSpotLeft
	case yaw < -45:
		return types.ZoneLeftSideMirror
	case yaw < -20:
		return types.ZoneDriverWindow
	case yaw > 60:
		return types.ZonePassenger
	case yaw > 35:
		return types.ZoneRightSideMirror
	case yaw > 15 && pitch < -10:
		return types.ZoneCenterStack
	case yaw > 15:
		return types.ZoneRearviewMirror
	case pitch < -15:
		return types.ZoneInstrumentCluster
	default:
		return types.ZoneFront
	}
}

// Stability returns 1 for a perfectly steady gaze and approaches 0 as the
// zone flips on every sample.
func (g *GazeClassifier) Stability() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.history) < 2 {
		return 1.0
	}
	changes := 0
	for i := 1; i < len(g.history); i++ {
		if g.history[i] != g.history[i-1] {
			changes++
		}
	}
	return 1.0 - float64(changes)/float64(len(g.history)-1)
}

// AttentionFocus scores how much recent gaze stayed on driving-relevant
// zones (front, mirrors, instrument cluster).
func (g *GazeClassifier) AttentionFocus() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.history) == 0 {
		return 1.0
	}
	focused := 0
	for _, zone := range g.history {
		switch zone {
		case types.ZoneFront, types.ZoneRearviewMirror, types.ZoneLeftSideMirror,
			types.ZoneRightSideMirror, types.ZoneInstrumentCluster:
			focused++
		}
	}
	return float64(focused) / float64(len(g.history))
}

// GazeDeviationScore combines extreme yaw, zone weight and dwell time into
// one distraction score in [0,1]. zoneDuration is seconds spent in the
// current zone.
func (g *GazeClassifier) GazeDeviationScore(zone types.GazeZone, headYaw, zoneDuration float64) float64 {
	base := 0.0
	if math.Abs(headYaw) > 60.0 {
		base = math.Min(1.0, 0.5+zoneDuration/2.0)
	}

	weight, ok := zoneWeights[zone]
	if !ok {
		weight = 0.5
	}
	durationFactor := math.Min(1.0, zoneDuration/3.0)
	instabilityPenalty := (1.0 - g.Stability()) * 0.3

	return math.Min(1.0, math.Max(base, weight*durationFactor)+instabilityPenalty)
}
