package recorder

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/analysis"
	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

var csvHeader = []string{
	"timestamp_ms", "frame_id", "state", "risk_level",
	"fatigue", "distraction", "predictive",
	"perclos", "enhanced_ear", "gaze_zone", "gaze_zone_duration_s",
	"hands_on_wheel", "phone_detected", "analysis_mode", "events",
}

// Recorder writes analysis cycles to a per-session CSV file and a JSON
// summary alongside it when the session ends.
type Recorder struct {
	mu        sync.RWMutex
	file      *os.File
	csv       *csv.Writer
	sessionID string
	filename  string
	basePath  string
	recording bool
	cycles    uint64
	startTime time.Time
	summary   summaryAccumulator
	cycleChan chan analysis.CycleResult
	wg        sync.WaitGroup
	log       *zap.Logger
}

// summaryAccumulator gathers session-level aggregates as cycles stream
// through, so Stop can emit the summary without replaying the CSV.
type summaryAccumulator struct {
	maxFatigue     float64
	maxDistraction float64
	sumFatigue     float64
	sumDistraction float64
	stateCounts    map[types.DriverState]int
	eventCounts    map[types.AnalysisEvent]int
}

// Summary is the JSON document written next to the CSV on Stop.
type Summary struct {
	SessionID       string                        `json:"session_id"`
	StartTime       time.Time                     `json:"start_time"`
	EndTime         time.Time                     `json:"end_time"`
	Cycles          uint64                        `json:"cycles"`
	AvgFatigue      float64                       `json:"avg_fatigue"`
	MaxFatigue      float64                       `json:"max_fatigue"`
	AvgDistraction  float64                       `json:"avg_distraction"`
	MaxDistraction  float64                       `json:"max_distraction"`
	StateCounts     map[types.DriverState]int     `json:"state_counts"`
	EventCounts     map[types.AnalysisEvent]int   `json:"event_counts"`
}

// NewRecorder creates a recorder writing under basePath.
func NewRecorder(basePath string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		basePath:  basePath,
		cycleChan: make(chan analysis.CycleResult, 64),
		log:       log,
	}
}

// Start begins a new recording session.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return fmt.Errorf("already recording")
	}

	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return fmt.Errorf("create recording dir: %w", err)
	}

	sessionID := uuid.NewString()
	filename := fmt.Sprintf("session_%s_%s.csv",
		time.Now().Format("20060102_150405"), sessionID[:8])

	file, err := os.Create(filepath.Join(r.basePath, filename))
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(csvHeader); err != nil {
		file.Close()
		return fmt.Errorf("write header: %w", err)
	}

	r.file = file
	r.csv = w
	r.sessionID = sessionID
	r.filename = filename
	r.recording = true
	r.cycles = 0
	r.startTime = time.Now()
	r.summary = summaryAccumulator{
		stateCounts: make(map[types.DriverState]int),
		eventCounts: make(map[types.AnalysisEvent]int),
	}

	r.wg.Add(1)
	go r.writeCycles()

	r.log.Info("recording started",
		zap.String("session", sessionID),
		zap.String("file", filename))
	return nil
}

// Stop ends the session, flushes the CSV and writes the JSON summary.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return fmt.Errorf("not recording")
	}
	r.recording = false
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	r.file = nil

	if err := r.writeSummary(); err != nil {
		return err
	}
	r.log.Info("recording stopped",
		zap.String("session", r.sessionID),
		zap.Uint64("cycles", r.cycles))
	return nil
}

func (r *Recorder) writeSummary() error {
	end := time.Now()
	cycles := r.cycles

	summary := Summary{
		SessionID:      r.sessionID,
		StartTime:      r.startTime,
		EndTime:        end,
		Cycles:         cycles,
		MaxFatigue:     r.summary.maxFatigue,
		MaxDistraction: r.summary.maxDistraction,
		StateCounts:    r.summary.stateCounts,
		EventCounts:    r.summary.eventCounts,
	}
	if cycles > 0 {
		summary.AvgFatigue = r.summary.sumFatigue / float64(cycles)
		summary.AvgDistraction = r.summary.sumDistraction / float64(cycles)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	name := r.filename[:len(r.filename)-len(".csv")] + "_summary.json"
	if err := os.WriteFile(filepath.Join(r.basePath, name), data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Record sends a cycle to the recorder (non-blocking). Returns false if
// not recording or the queue is full.
func (r *Recorder) Record(cycle analysis.CycleResult) bool {
	r.mu.RLock()
	recording := r.recording
	r.mu.RUnlock()

	if !recording {
		return false
	}

	select {
	case r.cycleChan <- cycle:
		return true
	default:
		return false
	}
}

func (r *Recorder) writeCycles() {
	defer r.wg.Done()

	for {
		r.mu.RLock()
		recording := r.recording
		r.mu.RUnlock()

		if !recording {
			// Drain remaining cycles
			for len(r.cycleChan) > 0 {
				r.writeCycle(<-r.cycleChan)
			}
			return
		}

		select {
		case cycle := <-r.cycleChan:
			r.writeCycle(cycle)
		case <-time.After(100 * time.Millisecond):
			// Check recording state periodically
		}
	}
}

func (r *Recorder) writeCycle(cycle analysis.CycleResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.csv == nil {
		return
	}

	s := cycle.Snapshot
	events := ""
	for i, ev := range cycle.Events {
		if i > 0 {
			events += "|"
		}
		events += string(ev)
	}

	row := []string{
		strconv.FormatInt(cycle.Timestamp, 10),
		strconv.FormatUint(cycle.FrameID, 10),
		string(cycle.State),
		string(s.RiskLevel),
		formatScore(s.FatigueScore),
		formatScore(s.DistractionScore),
		formatScore(s.PredictiveScore),
		formatScore(s.Perclos),
		formatScore(s.EnhancedEAR),
		string(s.GazeZone),
		formatScore(s.GazeZoneDuration),
		formatScore(s.HandsOnWheelConfidence),
		strconv.FormatBool(s.PhoneDetected),
		s.AnalysisMode,
		events,
	}
	if err := r.csv.Write(row); err != nil {
		r.log.Warn("cycle write failed", zap.Error(err))
		return
	}

	r.cycles++
	r.summary.sumFatigue += s.FatigueScore
	r.summary.sumDistraction += s.DistractionScore
	if s.FatigueScore > r.summary.maxFatigue {
		r.summary.maxFatigue = s.FatigueScore
	}
	if s.DistractionScore > r.summary.maxDistraction {
		r.summary.maxDistraction = s.DistractionScore
	}
	r.summary.stateCounts[cycle.State]++
	for _, ev := range cycle.Events {
		r.summary.eventCounts[ev]++
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// IsRecording returns true if currently recording.
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// GetStatus returns the current recording status.
func (r *Recorder) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}

	return Status{
		Recording: r.recording,
		SessionID: r.sessionID,
		Filename:  r.filename,
		Cycles:    r.cycles,
		Duration:  duration,
		StartTime: r.startTime,
	}
}

// Close stops any active session.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		return r.Stop()
	}
	return nil
}

// Status holds the current recording status.
type Status struct {
	Recording bool          `json:"recording"`
	SessionID string        `json:"session_id"`
	Filename  string        `json:"filename"`
	Cycles    uint64        `json:"cycles"`
	Duration  time.Duration `json:"duration_ms"`
	StartTime time.Time     `json:"start_time"`
}
