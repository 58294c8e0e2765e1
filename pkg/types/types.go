package types

import "time"

// Modality identifies one independent sensing channel.
type Modality string

// Modality constants
const (
	ModalityFace   Modality = "face"
	ModalityPose   Modality = "pose"
	ModalityHand   Modality = "hand"
	ModalityObject Modality = "object"
)

// Landmark is a single 3D point. Face/hand landmarks are normalized
// image coordinates; pose landmarks are camera-relative meters.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FacePayload is the face detector output for one capture timestamp.
type FacePayload struct {
	Landmarks   []Landmark         `json:"landmarks"`
	Blendshapes map[string]float64 `json:"blendshapes,omitempty"`
	// Transform is the row-major 4x4 head transformation matrix, nil when
	// the detector did not produce one.
	Transform *[16]float64 `json:"transform,omitempty"`
}

// PosePayload is the body-pose detector output for one capture timestamp.
type PosePayload struct {
	WorldLandmarks []Landmark `json:"world_landmarks"`
}

// HandDetection is a single detected hand.
type HandDetection struct {
	Handedness string     `json:"handedness"`
	Wrist      Landmark   `json:"wrist"`
	Landmarks  []Landmark `json:"landmarks,omitempty"`
}

// HandPayload is the hand detector output for one capture timestamp.
type HandPayload struct {
	Hands []HandDetection `json:"hands"`
}

// BoundingBox is a normalized detection box.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ObjectDetection is a single detected object.
type ObjectDetection struct {
	Category   string      `json:"category"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// ObjectPayload is the object detector output for one capture timestamp.
type ObjectPayload struct {
	Detections []ObjectDetection `json:"detections"`
}

// DetectionSample is one per-modality detector callback. Timestamp is
// milliseconds on the shared monotonic capture clock and is the
// correlation key across modalities.
type DetectionSample struct {
	Modality  Modality `json:"modality"`
	Timestamp int64    `json:"timestamp"`
	Payload   any      `json:"payload"`
}

// ResultBundle is the per-timestamp correlated set of modality results.
// Face and Pose are always present; Hand and Object ride along only when
// they arrived before the bundle was emitted.
type ResultBundle struct {
	Timestamp int64 `json:"timestamp"`
	// FrameID references the captured frame held by the capture
	// collaborator; zero when no frame was registered.
	FrameID uint64         `json:"frame_id,omitempty"`
	Face    *FacePayload   `json:"face"`
	Pose    *PosePayload   `json:"pose"`
	Hand    *HandPayload   `json:"hand,omitempty"`
	Object  *ObjectPayload `json:"object,omitempty"`
}

// EventType classifies a discrete behavioral event.
type EventType string

// EventType constants
const (
	EventBlink         EventType = "blink"
	EventYawn          EventType = "yawn"
	EventHeadNod       EventType = "head_nod"
	EventGazeDeviation EventType = "gaze_deviation"
)

// AnalysisEvent is a high-level event synthesized from fused scores and
// consumed by the driver state machine.
type AnalysisEvent string

// AnalysisEvent constants
const (
	EventFatigueAccumulation       AnalysisEvent = "fatigue_accumulation"
	EventAttentionDecline          AnalysisEvent = "attention_decline"
	EventDistractionObjectDetected AnalysisEvent = "distraction_object_detected"
	EventPhoneUsageConfirmed       AnalysisEvent = "phone_usage_confirmed"
	EventMicrosleepPredicted       AnalysisEvent = "microsleep_predicted"
	EventEmotionStressDetected     AnalysisEvent = "emotion_stress_detected"
	EventPredictiveRiskHigh        AnalysisEvent = "predictive_risk_high"
	EventNormalBehavior            AnalysisEvent = "normal_behavior"
)

// DriverState is the discrete driver-safety state.
type DriverState string

// DriverState constants
const (
	StateSafe              DriverState = "safe"
	StateFatigueLow        DriverState = "fatigue_low"
	StateFatigueHigh       DriverState = "fatigue_high"
	StateDistractionNormal DriverState = "distraction_normal"
	StateDistractionDanger DriverState = "distraction_danger"
	StateMultipleRisk      DriverState = "multiple_risk"
	StatePhoneUsage        DriverState = "phone_usage"
	StateMicrosleep        DriverState = "microsleep"
	StateEmotionalStress   DriverState = "emotional_stress"
	StatePredictiveWarning DriverState = "predictive_warning"
)

// RiskLevel is the discrete overall risk classification.
type RiskLevel string

// RiskLevel constants, ordered from lowest to highest.
const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// EmotionState is the recognized emotional state of the driver.
type EmotionState string

// EmotionState constants
const (
	EmotionNeutral  EmotionState = "neutral"
	EmotionHappy    EmotionState = "happy"
	EmotionStress   EmotionState = "stress"
	EmotionAnger    EmotionState = "anger"
	EmotionFatigue  EmotionState = "fatigue"
	EmotionSurprise EmotionState = "surprise"
)

// GazeZone is a coarse region of the cabin the driver is looking at.
type GazeZone string

// GazeZone constants
const (
	ZoneFront             GazeZone = "front"
	ZoneRearviewMirror    GazeZone = "rearview_mirror"
	ZoneLeftSideMirror    GazeZone = "left_side_mirror"
	ZoneRightSideMirror   GazeZone = "right_side_mirror"
	ZoneInstrumentCluster GazeZone = "instrument_cluster"
	ZoneCenterStack       GazeZone = "center_stack"
	ZoneFloor             GazeZone = "floor"
	ZoneRoof              GazeZone = "roof"
	ZonePassenger         GazeZone = "passenger"
	ZoneDriverWindow      GazeZone = "driver_window"
	ZoneBlindSpotLeft     GazeZone = "blind_spot_left"
)

// MetricsSnapshot aggregates the continuous scores and discrete labels of
// the current processing cycle. It is owned by exactly one cycle at a
// time; consumers receive copies.
type MetricsSnapshot struct {
	// Fused and aggregate scores
	FatigueScore     float64   `json:"fatigue_score"`
	DistractionScore float64   `json:"distraction_score"`
	PredictiveScore  float64   `json:"predictive_score"`
	RiskLevel        RiskLevel `json:"risk_level"`

	// Face sub-scores
	EnhancedEAR            float64 `json:"enhanced_ear"`
	Perclos                float64 `json:"perclos"`
	TemporalAttention      float64 `json:"temporal_attention"`
	PersonalizedThreshold  float64 `json:"personalized_threshold"`
	YawnScore              float64 `json:"yawn_score"`
	LeftEyeClosure         float64 `json:"left_eye_closure"`
	RightEyeClosure        float64 `json:"right_eye_closure"`
	GazeDeviationScore     float64 `json:"gaze_deviation_score"`
	AttentionFocusScore    float64 `json:"attention_focus_score"`

	// Head pose and gaze
	HeadYaw          float64  `json:"head_yaw"`
	HeadPitch        float64  `json:"head_pitch"`
	HeadRoll         float64  `json:"head_roll"`
	GazeZone         GazeZone `json:"gaze_zone"`
	GazeZoneDuration float64  `json:"gaze_zone_duration"` // seconds

	// Emotion
	EmotionState      EmotionState `json:"emotion_state"`
	EmotionConfidence float64      `json:"emotion_confidence"`
	ArousalLevel      float64      `json:"arousal_level"`
	ValenceLevel      float64      `json:"valence_level"`

	// Identity
	DriverID         string  `json:"driver_id"`
	DriverConfidence float64 `json:"driver_confidence"`

	// Body pose
	PoseComplexityScore float64 `json:"pose_complexity_score"`
	SlouchFactor        float64 `json:"slouch_factor"`
	ShoulderYaw         float64 `json:"shoulder_yaw"`

	// Hand / object
	HandsOnWheelConfidence float64  `json:"hands_on_wheel_confidence"`
	DistractionObjects     []string `json:"distraction_objects,omitempty"`
	PhoneDetected          bool     `json:"phone_detected"`

	// Windowed event counts
	BlinkCount1Min         int `json:"blink_count_1min"`
	YawnCount5Min          int `json:"yawn_count_5min"`
	HeadNodCount2Min       int `json:"head_nod_count_2min"`
	GazeDeviationCount1Min int `json:"gaze_deviation_count_1min"`

	// AnalysisMode is "primary" normally and "expanded" while the
	// dynamic analyzer compensates for lost modalities.
	AnalysisMode string `json:"analysis_mode"`
}

// TransitionRecord is one driver-state change.
type TransitionRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	From      DriverState   `json:"from"`
	To        DriverState   `json:"to"`
	Trigger   AnalysisEvent `json:"trigger"`
}

// StateStatistics summarizes the transition history.
type StateStatistics struct {
	StateCounts      map[DriverState]int `json:"state_counts"`
	CurrentDuration  float64             `json:"current_duration"` // seconds
	TotalTransitions int                 `json:"total_transitions"`
}

// DriverIdentity is the result of the driver identification lookup.
type DriverIdentity struct {
	DriverID   string  `json:"driver_id"`
	Confidence float64 `json:"confidence"`
}
