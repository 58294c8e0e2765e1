// Package dynamic tracks where the driver's hands are interacting inside
// the cabin and decides when detectors should widen their search region.
package dynamic

import (
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// Zone names the cabin regions hands are tracked against.
type Zone string

const (
	ZoneSteeringWheel  Zone = "steering_wheel"
	ZoneDashboard      Zone = "dashboard"
	ZoneGearLever      Zone = "gear_lever"
	ZoneSideMirrorLeft Zone = "side_mirror_left"
	ZoneNone           Zone = "none"
)

// rect is a normalized image-space region.
type rect struct {
	xMin, yMin, xMax, yMax float64
}

// zoneOrder sets classification priority where regions touch; the wheel
// wins ties.
var zoneOrder = []struct {
	zone Zone
	area rect
}{
	{ZoneSteeringWheel, rect{0.3, 0.4, 0.7, 0.8}},
	{ZoneGearLever, rect{0.7, 0.6, 0.95, 0.9}},
	{ZoneDashboard, rect{0.2, 0.1, 0.8, 0.4}},
	{ZoneSideMirrorLeft, rect{0.0, 0.2, 0.15, 0.5}},
}

const (
	// faceLossExpandMS: face or pose missing this long triggers expanded
	// search mode.
	faceLossExpandMS = 2000

	// handsAwayExpandMS: both hands off the wheel this long triggers
	// expanded search mode.
	handsAwayExpandMS = 1000
)

// Tracker follows hand-zone interactions and detector health across
// cycles. Driven by the single analysis loop; not safe for concurrent
// use.
type Tracker struct {
	log *zap.Logger

	// zoneSince is when the current continuous interaction with each
	// zone began, in capture-clock ms. Absent key means not interacting.
	zoneSince map[Zone]int64

	faceSeenAt  int64
	poseSeenAt  int64
	wheelSeenAt int64
	started     bool

	expanded bool
}

// NewTracker creates a Tracker.
func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{log: log, zoneSince: make(map[Zone]int64)}
}

// Observe ingests one cycle. faceOK and poseOK report whether those
// modalities produced usable output; hands carries the wrist positions
// seen this cycle.
func (t *Tracker) Observe(nowMS int64, faceOK, poseOK bool, hands []types.Landmark) {
	if !t.started {
		t.faceSeenAt, t.poseSeenAt, t.wheelSeenAt = nowMS, nowMS, nowMS
		t.started = true
	}
	if faceOK {
		t.faceSeenAt = nowMS
	}
	if poseOK {
		t.poseSeenAt = nowMS
	}

	active := make(map[Zone]bool, len(hands))
	for _, wrist := range hands {
		if z := classify(wrist); z != ZoneNone {
			active[z] = true
		}
	}
	if active[ZoneSteeringWheel] {
		t.wheelSeenAt = nowMS
	}

	for z := range active {
		if _, ok := t.zoneSince[z]; !ok {
			t.zoneSince[z] = nowMS
		}
	}
	for z := range t.zoneSince {
		if !active[z] {
			delete(t.zoneSince, z)
		}
	}

	t.updateMode(nowMS)
}

func (t *Tracker) updateMode(nowMS int64) {
	expand := nowMS-t.faceSeenAt > faceLossExpandMS ||
		nowMS-t.poseSeenAt > faceLossExpandMS ||
		nowMS-t.wheelSeenAt > handsAwayExpandMS
	if expand == t.expanded {
		return
	}
	t.expanded = expand
	if expand {
		t.log.Info("expanded search mode on",
			zap.Int64("face_gap_ms", nowMS-t.faceSeenAt),
			zap.Int64("pose_gap_ms", nowMS-t.poseSeenAt),
			zap.Int64("wheel_gap_ms", nowMS-t.wheelSeenAt))
	} else {
		t.log.Info("expanded search mode off")
	}
}

// Expanded reports whether detectors should currently widen their search
// region.
func (t *Tracker) Expanded() bool {
	return t.expanded
}

// InteractionSeconds returns how long the driver has continuously
// interacted with the zone, zero if not interacting.
func (t *Tracker) InteractionSeconds(zone Zone, nowMS int64) float64 {
	since, ok := t.zoneSince[zone]
	if !ok {
		return 0
	}
	return float64(nowMS-since) / 1000
}

// Interactions returns all active zone interaction durations in seconds.
func (t *Tracker) Interactions(nowMS int64) map[Zone]float64 {
	out := make(map[Zone]float64, len(t.zoneSince))
	for z, since := range t.zoneSince {
		out[z] = float64(nowMS-since) / 1000
	}
	return out
}

func classify(p types.Landmark) Zone {
	for _, entry := range zoneOrder {
		r := entry.area
		if p.X >= r.xMin && p.X <= r.xMax && p.Y >= r.yMin && p.Y <= r.yMax {
			return entry.zone
		}
	}
	return ZoneNone
}
