// Package analysis turns synchronized detection bundles into driver
// safety scores, discrete events and state transitions.
package analysis

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/StudentDONGHYUN/DMS-Project/internal/dynamic"
	"github.com/StudentDONGHYUN/DMS-Project/internal/events"
	"github.com/StudentDONGHYUN/DMS-Project/internal/fusion"
	"github.com/StudentDONGHYUN/DMS-Project/internal/identity"
	"github.com/StudentDONGHYUN/DMS-Project/internal/perf"
	"github.com/StudentDONGHYUN/DMS-Project/internal/personalize"
	"github.com/StudentDONGHYUN/DMS-Project/internal/risk"
	"github.com/StudentDONGHYUN/DMS-Project/internal/state"
	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// identityConfidenceFloor gates driver profile switching: below it
	// the identification is too weak to act on.
	identityConfidenceFloor = 0.5

	// emotionConfidenceFloor gates the emotion modality's participation
	// in fusion. The recognizer always produces an estimate; only a
	// confident one may move the fused scores.
	emotionConfidenceFloor = 0.5
)

// CycleResult is what one processed bundle produced, for recording and
// broadcast.
type CycleResult struct {
	Timestamp int64                 `json:"timestamp"`
	FrameID   uint64                `json:"frame_id"`
	Snapshot  types.MetricsSnapshot `json:"metrics"`
	State     types.DriverState     `json:"state"`
	Events    []types.AnalysisEvent `json:"events,omitempty"`
	Latency   time.Duration         `json:"latency_ns"`
}

// Engine coordinates the per-modality analyzers, fuses their outputs and
// drives the state machine. Process is called from a single goroutine;
// Snapshot and State may be read from any.
type Engine struct {
	log   *zap.Logger
	clock func() time.Time

	face       *FaceAnalyzer
	pose       *PoseAnalyzer
	gaze       *GazeClassifier
	predictive *PredictiveAnalyzer
	counter    *events.Counter
	personal   *personalize.Manager
	zones      *dynamic.Tracker
	perf       *perf.Tracker
	machine    *state.Machine

	mu       sync.RWMutex
	snapshot types.MetricsSnapshot

	// Gaze zone dwell is tracked in capture-clock ms so replayed feeds
	// behave the same as live ones.
	gazeZone        types.GazeZone
	gazeZoneSince   int64
	gazeZoneFlagged bool
	gazeStarted     bool
}

// Options carries the engine's collaborators. Zero-value fields get
// working defaults.
type Options struct {
	Clock         func() time.Time
	IdentityCache *identity.Cache
	Personal      *personalize.Manager
	Perf          *perf.Tracker
	Logger        *zap.Logger
}

// NewEngine assembles an Engine.
func NewEngine(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdentityCache == nil {
		opts.IdentityCache = identity.NewCache(identity.DefaultCapacity, identity.DefaultTTL, opts.Clock)
	}
	if opts.Personal == nil {
		opts.Personal = personalize.NewManager(nil, opts.Logger)
	}
	if opts.Perf == nil {
		opts.Perf = perf.NewTracker(opts.Logger)
	}
	return &Engine{
		log:        opts.Logger,
		clock:      opts.Clock,
		face:       NewFaceAnalyzer(opts.IdentityCache),
		pose:       NewPoseAnalyzer(),
		gaze:       NewGazeClassifier(),
		predictive: NewPredictiveAnalyzer(),
		counter:    events.NewCounter(),
		personal:   opts.Personal,
		zones:      dynamic.NewTracker(opts.Logger),
		perf:       opts.Perf,
		machine:    state.NewMachine(opts.Clock, opts.Logger),
		gazeZone:   types.ZoneFront,
	}
}

// Process runs one full analysis cycle over a synchronized bundle.
func (e *Engine) Process(ctx context.Context, bundle *types.ResultBundle) CycleResult {
	start := e.clock()

	var (
		faceRes FaceResult
		poseRes PoseResult
		handRes HandResult
		objRes  ObjectResult
	)

	// Face and pose are independent and the heaviest; they run in
	// parallel and both must finish before fusion. Hand gates object:
	// held objects are only credible near a detected hand.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		faceRes = e.face.Analyze(bundle.Face, bundle.Timestamp, e.personal.EARThreshold())
		return nil
	})
	g.Go(func() error {
		poseRes = e.pose.Analyze(bundle.Pose)
		return nil
	})
	g.Go(func() error {
		handRes = AnalyzeHands(bundle.Hand)
		objRes = AnalyzeObjects(bundle.Object, wrists(bundle.Hand))
		return nil
	})
	_ = g.Wait()

	cycle := e.evaluate(bundle, faceRes, poseRes, handRes, objRes)

	cycle.Latency = e.clock().Sub(start)
	e.perf.Record(cycle.Latency)
	return cycle
}

// evaluate is the sequential tail of the cycle: event bookkeeping,
// fusion, risk aggregation, state transitions and snapshot publication.
// Split out from Process so tests can drive it with hand-built partials.
func (e *Engine) evaluate(bundle *types.ResultBundle, faceRes FaceResult, poseRes PoseResult, handRes HandResult, objRes ObjectResult) CycleResult {
	nowMS := bundle.Timestamp
	degraded := e.perf.Degraded()

	for _, ev := range faceRes.Events {
		e.counter.Add(ev, nowMS)
	}

	if faceRes.Available {
		if faceRes.Identity.DriverID != "" && faceRes.Identity.Confidence >= identityConfidenceFloor {
			e.personal.SetDriver(faceRes.Identity.DriverID)
		}
		if faceRes.EnhancedEAR < 0.1 {
			e.personal.ObserveOpenEye(faceRes.RawEAR)
		}
	}

	zone, zoneDuration := e.trackGaze(faceRes, nowMS)

	e.zones.Observe(nowMS, faceRes.Available, poseRes.Available, wrists(bundle.Hand))

	faceSig := fusion.FaceSignal{Available: faceRes.Available}
	if faceRes.Available {
		faceSig.Perclos = faceRes.Perclos
		faceSig.EnhancedEAR = faceRes.EnhancedEAR
		faceSig.TemporalAttention = faceRes.TemporalAttention
		faceSig.GazeDeviationScore = e.gaze.GazeDeviationScore(zone, faceRes.HeadYaw, zoneDuration)
		faceSig.AttentionFocusScore = e.gaze.AttentionFocus()
	}
	poseSig := fusion.PoseSignal{Available: poseRes.Available}
	if poseRes.Available {
		poseSig.HeadNodRateScore = fusion.HeadNodRateScore(e.counter.Count(types.EventHeadNod, nowMS))
	}
	handSig := fusion.HandSignal{
		Available:              handRes.Available,
		HandsOnWheelConfidence: handRes.OnWheelConfidence,
	}
	objSig := fusion.ObjectSignal{
		Available:              objRes.Available,
		DistractionObjectCount: objRes.DistractionCount,
	}
	emoSig := fusion.EmotionSignal{}
	if !degraded && faceRes.Emotion.Available && faceRes.Emotion.Confidence > emotionConfidenceFloor {
		emoSig = fusion.EmotionSignal{
			Available:  true,
			Emotion:    faceRes.Emotion.State,
			Confidence: faceRes.Emotion.Confidence,
			Arousal:    faceRes.Emotion.Arousal,
		}
	}

	fatigue := fusion.FuseFatigue(faceSig, poseSig, emoSig)
	distraction := fusion.FuseDistraction(faceSig, handSig, objSig, emoSig)

	var predRes PredictiveResult
	if !degraded {
		predRes = e.predictive.Observe(math.Max(fatigue, distraction), fatigue, faceSig.Perclos)
	}

	result := risk.Aggregate(risk.Inputs{
		Fatigue:            fatigue,
		Distraction:        distraction,
		Predictive:         predRes.RiskProbability,
		Emotion:            faceRes.Emotion.State,
		EmotionConfidence:  faceRes.Emotion.Confidence,
		PoseComplexity:     poseRes.Complexity,
		HeadRoll:           faceRes.HeadRoll,
		GazeZoneDuration:   zoneDuration,
		DistractionObjects: objRes.Categories,
		PhoneDetected:      objRes.PhoneDetected,
	})

	cycleEvents := append(predRes.Events, result.Events...)
	for _, ev := range cycleEvents {
		e.machine.HandleEvent(ev)
	}

	snap := e.buildSnapshot(faceRes, poseRes, handRes, objRes, fatigue, distraction, predRes, result, zone, zoneDuration, nowMS, degraded)

	return CycleResult{
		Timestamp: nowMS,
		FrameID:   bundle.FrameID,
		Snapshot:  snap,
		State:     e.machine.Current(),
		Events:    cycleEvents,
	}
}

// trackGaze classifies the gaze zone, maintains dwell time in capture
// ms, and emits a deviation event once per off-road stay that outlasts
// the personalized limit.
func (e *Engine) trackGaze(faceRes FaceResult, nowMS int64) (types.GazeZone, float64) {
	if !e.gazeStarted {
		e.gazeZoneSince = nowMS
		e.gazeStarted = true
	}
	if !faceRes.Available || !faceRes.HasHeadPose {
		// Hold the previous zone; dwell keeps accumulating.
		return e.gazeZone, float64(nowMS-e.gazeZoneSince) / 1000
	}

	zone := e.gaze.Classify(faceRes.HeadYaw, faceRes.HeadPitch)
	if zone != e.gazeZone {
		e.gazeZone = zone
		e.gazeZoneSince = nowMS
		e.gazeZoneFlagged = false
	}
	duration := float64(nowMS-e.gazeZoneSince) / 1000

	if zone != types.ZoneFront && !e.gazeZoneFlagged && duration > e.personal.GazeLimitSeconds() {
		e.counter.Add(types.EventGazeDeviation, nowMS)
		e.gazeZoneFlagged = true
	}
	return zone, duration
}

func (e *Engine) buildSnapshot(faceRes FaceResult, poseRes PoseResult, handRes HandResult, objRes ObjectResult,
	fatigue, distraction float64, predRes PredictiveResult, result risk.Result,
	zone types.GazeZone, zoneDuration float64, nowMS int64, degraded bool) types.MetricsSnapshot {

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshot

	snap.FatigueScore = fatigue
	snap.DistractionScore = distraction
	snap.PredictiveScore = predRes.RiskProbability
	snap.RiskLevel = result.Level

	// Unavailable modalities keep their previous sub-scores; a dropped
	// frame is not evidence the driver changed.
	if faceRes.Available {
		snap.EnhancedEAR = faceRes.EnhancedEAR
		snap.Perclos = faceRes.Perclos
		snap.TemporalAttention = faceRes.TemporalAttention
		snap.PersonalizedThreshold = faceRes.Threshold
		snap.YawnScore = faceRes.YawnScore
		snap.LeftEyeClosure = faceRes.LeftEyeClosure
		snap.RightEyeClosure = faceRes.RightEyeClosure
		snap.GazeDeviationScore = e.gaze.GazeDeviationScore(zone, faceRes.HeadYaw, zoneDuration)
		snap.AttentionFocusScore = e.gaze.AttentionFocus()
		if faceRes.HasHeadPose {
			snap.HeadYaw = faceRes.HeadYaw
			snap.HeadPitch = faceRes.HeadPitch
			snap.HeadRoll = faceRes.HeadRoll
		}
		if faceRes.Emotion.Available {
			snap.EmotionState = faceRes.Emotion.State
			snap.EmotionConfidence = faceRes.Emotion.Confidence
			snap.ArousalLevel = faceRes.Emotion.Arousal
			snap.ValenceLevel = faceRes.Emotion.Valence
		}
		snap.DriverID = faceRes.Identity.DriverID
		snap.DriverConfidence = faceRes.Identity.Confidence
	}
	snap.GazeZone = zone
	snap.GazeZoneDuration = zoneDuration

	if poseRes.Available {
		snap.PoseComplexityScore = poseRes.Complexity
		snap.SlouchFactor = poseRes.SlouchScore
		snap.ShoulderYaw = poseRes.ShoulderYaw
	}
	if handRes.Available {
		snap.HandsOnWheelConfidence = handRes.OnWheelConfidence
	}
	snap.DistractionObjects = objRes.Categories
	snap.PhoneDetected = objRes.PhoneDetected

	snap.BlinkCount1Min = e.counter.Count(types.EventBlink, nowMS)
	snap.YawnCount5Min = e.counter.Count(types.EventYawn, nowMS)
	snap.HeadNodCount2Min = e.counter.Count(types.EventHeadNod, nowMS)
	snap.GazeDeviationCount1Min = e.counter.Count(types.EventGazeDeviation, nowMS)

	if e.zones.Expanded() {
		snap.AnalysisMode = "expanded"
	} else {
		snap.AnalysisMode = "primary"
	}
	if degraded {
		snap.AnalysisMode = snap.AnalysisMode + "/degraded"
	}

	e.snapshot = snap
	return snap
}

// Snapshot returns the latest published metrics.
func (e *Engine) Snapshot() types.MetricsSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// State returns the current driver state.
func (e *Engine) State() types.DriverState {
	return e.machine.Current()
}

// StateStatistics returns the state machine's transition summary.
func (e *Engine) StateStatistics() types.StateStatistics {
	return e.machine.Statistics()
}

// StateHistory returns the recorded transitions, oldest first.
func (e *Engine) StateHistory() []types.TransitionRecord {
	return e.machine.History()
}

// ZoneInteractions returns the active cabin zone interactions in
// seconds, as of the given capture timestamp.
func (e *Engine) ZoneInteractions(nowMS int64) map[dynamic.Zone]float64 {
	return e.zones.Interactions(nowMS)
}

func wrists(payload *types.HandPayload) []types.Landmark {
	if payload == nil {
		return nil
	}
	out := make([]types.Landmark, 0, len(payload.Hands))
	for _, h := range payload.Hands {
		out = append(out, h.Wrist)
	}
	return out
}
