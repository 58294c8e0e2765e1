package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// historyCapacity bounds the transition history; the oldest record is
	// dropped when full.
	historyCapacity = 100

	// normalBehaviorHold is how long the current state must have been held
	// before a NORMAL_BEHAVIOR event may revert to SAFE. The hold is
	// measured from the last state change, not from when normal behavior
	// first appeared.
	normalBehaviorHold = 5 * time.Second
)

// immediateTransitions always fire regardless of the current state.
var immediateTransitions = map[types.AnalysisEvent]types.DriverState{
	types.EventPhoneUsageConfirmed:   types.StatePhoneUsage,
	types.EventMicrosleepPredicted:   types.StateMicrosleep,
	types.EventEmotionStressDetected: types.StateEmotionalStress,
	types.EventPredictiveRiskHigh:    types.StatePredictiveWarning,
}

// Machine is the hysteretic driver-state machine. It is driven by a
// single coordinating cycle; the mutex protects concurrent readers of the
// current state and history.
type Machine struct {
	mu        sync.RWMutex
	current   types.DriverState
	startedAt time.Time
	history   []types.TransitionRecord

	now func() time.Time
	log *zap.Logger
}

// NewMachine creates a Machine in the SAFE state. A nil clock uses
// time.Now.
func NewMachine(now func() time.Time, log *zap.Logger) *Machine {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		current:   types.StateSafe,
		startedAt: now(),
		now:       now,
		log:       log,
	}
}

// HandleEvent applies one analysis event. An actual state change appends
// a transition record and resets the state-start timestamp; no change
// leaves both untouched.
func (m *Machine) HandleEvent(event types.AnalysisEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.nextState(event)
	if next == m.current {
		return
	}

	nowT := m.now()
	record := types.TransitionRecord{
		Timestamp: nowT,
		From:      m.current,
		To:        next,
		Trigger:   event,
	}
	if len(m.history) >= historyCapacity {
		m.history = m.history[1:]
	}
	m.history = append(m.history, record)

	m.log.Info("driver state transition",
		zap.String("from", string(m.current)),
		zap.String("to", string(next)),
		zap.String("event", string(event)))

	m.current = next
	m.startedAt = nowT
}

// nextState evaluates the transition rules in order. Caller must hold the
// mutex.
func (m *Machine) nextState(event types.AnalysisEvent) types.DriverState {
	if next, ok := immediateTransitions[event]; ok {
		return next
	}

	switch event {
	case types.EventFatigueAccumulation:
		// Toggle: only FATIGUE_LOW escalates; any other state, including
		// FATIGUE_HIGH itself, routes back to FATIGUE_LOW. Deliberate;
		// see DESIGN.md before changing this.
		if m.current == types.StateFatigueLow {
			return types.StateFatigueHigh
		}
		return types.StateFatigueLow

	case types.EventAttentionDecline:
		if m.current == types.StateDistractionNormal {
			return types.StateDistractionDanger
		}
		return types.StateDistractionNormal

	case types.EventDistractionObjectDetected:
		if m.current == types.StateFatigueHigh || m.current == types.StateEmotionalStress {
			return types.StateMultipleRisk
		}
		return types.StateDistractionDanger

	case types.EventNormalBehavior:
		if m.now().Sub(m.startedAt) > normalBehaviorHold {
			return types.StateSafe
		}
		return m.current
	}

	// Unknown events are an explicit no-op.
	return m.current
}

// Current returns the current driver state.
func (m *Machine) Current() types.DriverState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Duration returns how long the current state has been held.
func (m *Machine) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.startedAt)
}

// History returns a copy of the bounded transition history, oldest first.
func (m *Machine) History() []types.TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Statistics summarizes the transition history.
func (m *Machine) Statistics() types.StateStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[types.DriverState]int)
	for _, r := range m.history {
		counts[r.To]++
	}
	return types.StateStatistics{
		StateCounts:      counts,
		CurrentDuration:  m.now().Sub(m.startedAt).Seconds(),
		TotalTransitions: len(m.history),
	}
}
