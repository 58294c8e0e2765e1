// Package personalize adapts analysis thresholds to the identified
// driver. Every driver blinks differently; a fixed eye aspect ratio
// threshold over-reports drowsiness for some and misses it for others.
package personalize

import (
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultEARThreshold is the closed-eye threshold used before any
	// driver-specific calibration exists.
	DefaultEARThreshold = 0.25

	// DefaultGazeLimitSeconds is how long off-road gaze is tolerated
	// before it counts as a deviation.
	DefaultGazeLimitSeconds = 3.0

	minEARThreshold = 0.15
	maxEARThreshold = 0.28

	// calibrationRatio scales the observed open-eye baseline down to the
	// closed-eye threshold.
	calibrationRatio = 0.75

	// baselineAlpha is the EWMA weight for new open-eye observations.
	baselineAlpha = 0.05
)

// Profile holds one driver's adapted thresholds.
type Profile struct {
	DriverID         string  `json:"driver_id"`
	EARThreshold     float64 `json:"ear_threshold"`
	GazeLimitSeconds float64 `json:"gaze_limit_seconds"`
	OpenEARBaseline  float64 `json:"open_ear_baseline"`
	Samples          int     `json:"samples"`
}

// Store persists driver profiles between sessions.
type Store interface {
	Load(driverID string) (Profile, bool, error)
	Save(profile Profile) error
}

// MemoryStore is the default Store: profiles live for the process only.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (s *MemoryStore) Load(driverID string) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[driverID]
	return p, ok, nil
}

func (s *MemoryStore) Save(profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.DriverID] = profile
	return nil
}

// Manager resolves and adapts per-driver profiles. Methods are called
// from the single analysis cycle, so no internal locking beyond the
// store's own.
type Manager struct {
	store   Store
	current Profile
	log     *zap.Logger
}

// NewManager creates a Manager over the given store. A nil store falls
// back to an in-memory one.
func NewManager(store Store, log *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:   store,
		current: defaultProfile(""),
		log:     log,
	}
}

func defaultProfile(driverID string) Profile {
	return Profile{
		DriverID:         driverID,
		EARThreshold:     DefaultEARThreshold,
		GazeLimitSeconds: DefaultGazeLimitSeconds,
	}
}

// SetDriver switches the active profile. Unknown drivers start from the
// defaults; known drivers resume their adapted thresholds.
func (m *Manager) SetDriver(driverID string) {
	if driverID == m.current.DriverID {
		return
	}
	if err := m.store.Save(m.current); err != nil {
		m.log.Warn("profile save failed", zap.String("driver", m.current.DriverID), zap.Error(err))
	}
	p, ok, err := m.store.Load(driverID)
	if err != nil {
		m.log.Warn("profile load failed", zap.String("driver", driverID), zap.Error(err))
		ok = false
	}
	if !ok {
		p = defaultProfile(driverID)
	}
	m.current = p
	m.log.Info("driver profile active",
		zap.String("driver", driverID),
		zap.Float64("ear_threshold", p.EARThreshold),
		zap.Int("samples", p.Samples))
}

// ObserveOpenEye feeds one open-eye EAR observation into the calibration
// baseline. Callers should only report samples from clearly alert
// moments; the manager does not second-guess them beyond range checks.
func (m *Manager) ObserveOpenEye(ear float64) {
	if ear < 0.2 || ear > 0.5 {
		return
	}
	if m.current.Samples == 0 {
		m.current.OpenEARBaseline = ear
	} else {
		m.current.OpenEARBaseline = m.current.OpenEARBaseline*(1-baselineAlpha) + ear*baselineAlpha
	}
	m.current.Samples++

	threshold := m.current.OpenEARBaseline * calibrationRatio
	if threshold < minEARThreshold {
		threshold = minEARThreshold
	}
	if threshold > maxEARThreshold {
		threshold = maxEARThreshold
	}
	m.current.EARThreshold = threshold
}

// EARThreshold returns the active closed-eye threshold.
func (m *Manager) EARThreshold() float64 {
	return m.current.EARThreshold
}

// GazeLimitSeconds returns the active off-road gaze tolerance.
func (m *Manager) GazeLimitSeconds() float64 {
	return m.current.GazeLimitSeconds
}

// Profile returns a copy of the active profile.
func (m *Manager) Profile() Profile {
	return m.current
}

// Flush persists the active profile.
func (m *Manager) Flush() error {
	return m.store.Save(m.current)
}
