package analysis

import (
	"fmt"
	"math"

	"github.com/StudentDONGHYUN/DMS-Project/internal/identity"
	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// openEAR is the eye aspect ratio of fully open eyes; values at or
	// above it score zero drowsiness.
	openEAR = 0.30

	// perclosWindowMS is the rolling window for the eye-closure ratio.
	perclosWindowMS = 60_000

	// attentionWindowMS is the rolling window for the temporal attention
	// score (sustained-closure ratio over the last 10s).
	attentionWindowMS = 10_000

	yawnThreshold  = 0.6
	blinkThreshold = 0.8

	// Head-nod detection: pitch dipping below nodPitch after being above
	// nodRecovery counts as one nod.
	nodPitch    = -15.0
	nodRecovery = -5.0
)

// MediaPipe face-mesh eye contour indices used for the aspect ratio.
var (
	leftEyeIdx  = [6]int{33, 160, 158, 133, 153, 144}
	rightEyeIdx = [6]int{362, 385, 387, 263, 373, 380}
)

// FaceResult is the face analyzer's immutable output for one cycle.
type FaceResult struct {
	Available bool

	RawEAR            float64
	EnhancedEAR       float64
	Perclos           float64
	TemporalAttention float64
	Threshold         float64

	YawnScore       float64
	LeftEyeClosure  float64
	RightEyeClosure float64

	HasHeadPose bool
	HeadYaw     float64
	HeadPitch   float64
	HeadRoll    float64

	Emotion  EmotionResult
	Identity types.DriverIdentity

	// Events are the discrete occurrences detected this cycle; the
	// coordinating engine feeds them into the window counter.
	Events []types.EventType
}

// closureSample is one historical eye-closure observation.
type closureSample struct {
	ts     int64
	closed bool
}

// FaceAnalyzer derives drowsiness, emotion, head pose and identity
// signals from face detector output. Driven by a single cycle at a time.
type FaceAnalyzer struct {
	cache     *identity.Cache
	closures  []closureSample
	prevPitch float64
	hasPrev   bool
}

// NewFaceAnalyzer creates a FaceAnalyzer backed by the given identity
// cache.
func NewFaceAnalyzer(cache *identity.Cache) *FaceAnalyzer {
	return &FaceAnalyzer{cache: cache}
}

// Analyze processes one face payload. earThreshold is the (possibly
// personalized) closed-eye EAR threshold. An empty payload returns a
// result with Available=false and no error: missing data is degradation,
// not failure.
func (a *FaceAnalyzer) Analyze(payload *types.FacePayload, timestampMS int64, earThreshold float64) FaceResult {
	if payload == nil || len(payload.Landmarks) == 0 {
		return FaceResult{}
	}

	result := FaceResult{Available: true, Threshold: earThreshold}

	ear, earOK := eyeAspectRatio(payload.Landmarks)
	if earOK {
		result.RawEAR = ear
		result.EnhancedEAR = drowsinessFromEAR(ear, earThreshold)
		a.recordClosure(timestampMS, ear < earThreshold)
		result.Perclos = a.perclos(timestampMS)
		result.TemporalAttention = a.temporalAttention(timestampMS)
	}

	if len(payload.Blendshapes) > 0 {
		result.YawnScore = payload.Blendshapes["jawOpen"]
		result.LeftEyeClosure = payload.Blendshapes["eyeBlinkLeft"]
		result.RightEyeClosure = payload.Blendshapes["eyeBlinkRight"]

		if result.YawnScore > yawnThreshold {
			result.Events = append(result.Events, types.EventYawn)
		}
		if (result.LeftEyeClosure+result.RightEyeClosure)/2 > blinkThreshold {
			result.Events = append(result.Events, types.EventBlink)
		}

		result.Emotion = AnalyzeEmotion(payload.Blendshapes)
	}

	if payload.Transform != nil {
		yaw, pitch, roll := eulerFromTransform(payload.Transform)
		result.HasHeadPose = true
		result.HeadYaw, result.HeadPitch, result.HeadRoll = yaw, pitch, roll

		if a.hasPrev && a.prevPitch >= nodRecovery && pitch < nodPitch {
			result.Events = append(result.Events, types.EventHeadNod)
		}
		a.prevPitch, a.hasPrev = pitch, true
	}

	result.Identity = a.identify(payload.Landmarks)
	return result
}

// identify resolves the driver through the memoized cache. Failure falls
// back to the unknown identity; the cycle continues regardless.
func (a *FaceAnalyzer) identify(landmarks []types.Landmark) types.DriverIdentity {
	key := identity.Key(landmarks)
	id, err := a.cache.GetOrCompute(key, func() (types.DriverIdentity, error) {
		return fingerprintIdentity(landmarks)
	})
	if err != nil {
		return identity.Unknown
	}
	return id
}

// fingerprintIdentity stands in for the external identification model: a
// stable pseudo-identity derived from coarse face geometry.
func fingerprintIdentity(landmarks []types.Landmark) (types.DriverIdentity, error) {
	if len(landmarks) < max(leftEyeIdx[0], rightEyeIdx[3])+1 {
		return types.DriverIdentity{}, fmt.Errorf("identify: %d landmarks, need full mesh", len(landmarks))
	}
	l, r := landmarks[leftEyeIdx[0]], landmarks[rightEyeIdx[3]]
	interocular := math.Hypot(l.X-r.X, l.Y-r.Y)
	return types.DriverIdentity{
		DriverID:   fmt.Sprintf("driver-%03d", int(interocular*1000)%1000),
		Confidence: 0.6,
	}, nil
}

func (a *FaceAnalyzer) recordClosure(timestampMS int64, closed bool) {
	a.closures = append(a.closures, closureSample{ts: timestampMS, closed: closed})

	cut := 0
	for cut < len(a.closures) && timestampMS-a.closures[cut].ts > perclosWindowMS {
		cut++
	}
	a.closures = a.closures[cut:]
}

// perclos is the closed-sample ratio over the rolling window.
func (a *FaceAnalyzer) perclos(nowMS int64) float64 {
	total, closed := 0, 0
	for _, s := range a.closures {
		if nowMS-s.ts <= perclosWindowMS {
			total++
			if s.closed {
				closed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(closed) / float64(total)
}

// temporalAttention scores sustained recent closure: the closed ratio over
// the short attention window.
func (a *FaceAnalyzer) temporalAttention(nowMS int64) float64 {
	total, closed := 0, 0
	for _, s := range a.closures {
		if nowMS-s.ts <= attentionWindowMS {
			total++
			if s.closed {
				closed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(closed) / float64(total)
}

// eyeAspectRatio computes the mean EAR over both eyes. Requires the full
// face mesh; returns false otherwise.
func eyeAspectRatio(landmarks []types.Landmark) (float64, bool) {
	need := 0
	for _, i := range leftEyeIdx {
		need = max(need, i)
	}
	for _, i := range rightEyeIdx {
		need = max(need, i)
	}
	if len(landmarks) <= need {
		return 0, false
	}
	left := singleEAR(landmarks, leftEyeIdx)
	right := singleEAR(landmarks, rightEyeIdx)
	return (left + right) / 2, true
}

func singleEAR(landmarks []types.Landmark, idx [6]int) float64 {
	p1, p2, p3 := landmarks[idx[0]], landmarks[idx[1]], landmarks[idx[2]]
	p4, p5, p6 := landmarks[idx[3]], landmarks[idx[4]], landmarks[idx[5]]

	horizontal := math.Hypot(p1.X-p4.X, p1.Y-p4.Y)
	if horizontal == 0 {
		return 0
	}
	v1 := math.Hypot(p2.X-p6.X, p2.Y-p6.Y)
	v2 := math.Hypot(p3.X-p5.X, p3.Y-p5.Y)
	return (v1 + v2) / (2 * horizontal)
}

// drowsinessFromEAR maps the eye aspect ratio onto [0,1]: 0 at fully open
// eyes, 1 at or below the closed-eye threshold.
func drowsinessFromEAR(ear, threshold float64) float64 {
	if threshold >= openEAR {
		threshold = openEAR - 0.01
	}
	switch {
	case ear >= openEAR:
		return 0
	case ear <= threshold:
		return 1
	default:
		return (openEAR - ear) / (openEAR - threshold)
	}
}

// eulerFromTransform extracts head yaw/pitch/roll in degrees from the
// row-major 4x4 facial transformation matrix.
func eulerFromTransform(m *[16]float64) (yaw, pitch, roll float64) {
	r00 := m[0]
	r10 := m[4]
	r20, r21, r22 := m[8], m[9], m[10]
	r11, r12 := m[5], m[6]

	sy := math.Sqrt(r00*r00 + r10*r10)

	var x, y, z float64
	if sy > 1e-6 {
		x = math.Atan2(r21, r22)
		y = math.Atan2(-r20, sy)
		z = math.Atan2(r10, r00)
	} else {
		x = math.Atan2(-r12, r11)
		y = math.Atan2(-r20, sy)
		z = 0
	}

	yaw = -y * 180 / math.Pi
	pitch = -x * 180 / math.Pi
	roll = z * 180 / math.Pi
	return yaw, pitch, roll
}
