// Package perf tracks analysis cycle latency and arbitrates degraded
// mode: when cycles run long the engine sheds optional work until
// latency recovers.
package perf

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// historySize bounds the latency samples kept for rolling stats.
	historySize = 300

	// degradeThreshold activates degraded mode when the rolling average
	// exceeds it; recoverThreshold deactivates once the average falls
	// back under it. The gap prevents flapping.
	degradeThreshold = 200 * time.Millisecond
	recoverThreshold = 100 * time.Millisecond
)

// Stats is a snapshot of the tracker's rolling figures.
type Stats struct {
	Cycles   uint64        `json:"cycles"`
	Average  time.Duration `json:"average"`
	Max      time.Duration `json:"max"`
	Degraded bool          `json:"degraded"`
	Degrades uint64        `json:"degrades"`
	Score    float64       `json:"score"`
}

// Tracker accumulates cycle latencies. Safe for concurrent use; the
// analysis loop writes and the status endpoints read.
type Tracker struct {
	mu       sync.Mutex
	samples  []time.Duration
	next     int
	filled   bool
	cycles   uint64
	max      time.Duration
	degraded bool
	degrades uint64
	log      *zap.Logger
}

// NewTracker creates a Tracker.
func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{samples: make([]time.Duration, historySize), log: log}
}

// Record ingests one cycle latency and re-evaluates degraded mode.
func (t *Tracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = d
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
	t.cycles++
	if d > t.max {
		t.max = d
	}

	avg := t.averageLocked()
	switch {
	case !t.degraded && avg > degradeThreshold:
		t.degraded = true
		t.degrades++
		t.log.Warn("degraded mode on", zap.Duration("avg_cycle", avg))
	case t.degraded && avg < recoverThreshold:
		t.degraded = false
		t.log.Info("degraded mode off", zap.Duration("avg_cycle", avg))
	}
}

func (t *Tracker) averageLocked() time.Duration {
	n := t.next
	if t.filled {
		n = len(t.samples)
	}
	if n == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range t.samples[:n] {
		sum += d
	}
	return sum / time.Duration(n)
}

// Degraded reports whether the engine should shed optional work.
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Stats returns a snapshot of the rolling figures. Score is 1.0 at or
// under the recovery threshold, falling linearly to 0 at twice the
// degrade threshold.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	avg := t.averageLocked()
	return Stats{
		Cycles:   t.cycles,
		Average:  avg,
		Max:      t.max,
		Degraded: t.degraded,
		Degrades: t.degrades,
		Score:    score(avg),
	}
}

func score(avg time.Duration) float64 {
	if avg <= recoverThreshold {
		return 1
	}
	limit := 2 * degradeThreshold
	if avg >= limit {
		return 0
	}
	return float64(limit-avg) / float64(limit-recoverThreshold)
}
