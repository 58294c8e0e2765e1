package perf

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDegradedActivatesOnSlowCycles(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	for i := 0; i < 10; i++ {
		tr.Record(300 * time.Millisecond)
	}
	if !tr.Degraded() {
		t.Fatal("300ms average should trip degraded mode")
	}

	stats := tr.Stats()
	if stats.Degrades != 1 {
		t.Fatalf("degrades = %d, want 1", stats.Degrades)
	}
}

func TestDegradedRecoversBelowLowerThreshold(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	for i := 0; i < 10; i++ {
		tr.Record(300 * time.Millisecond)
	}

	// Between the thresholds degraded mode must hold: no flapping.
	for i := 0; i < 100; i++ {
		tr.Record(150 * time.Millisecond)
	}
	if !tr.Degraded() {
		t.Fatal("150ms average should not recover yet")
	}

	for i := 0; i < 200; i++ {
		tr.Record(10 * time.Millisecond)
	}
	if tr.Degraded() {
		t.Fatalf("should recover, avg = %v", tr.Stats().Average)
	}
	if got := tr.Stats().Degrades; got != 1 {
		t.Fatalf("degrades = %d, want 1", got)
	}
}

func TestStatsTracksMaxAndCycles(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	tr.Record(10 * time.Millisecond)
	tr.Record(90 * time.Millisecond)
	tr.Record(20 * time.Millisecond)

	stats := tr.Stats()
	if stats.Cycles != 3 {
		t.Fatalf("cycles = %d, want 3", stats.Cycles)
	}
	if stats.Max != 90*time.Millisecond {
		t.Fatalf("max = %v, want 90ms", stats.Max)
	}
	if stats.Average != 40*time.Millisecond {
		t.Fatalf("average = %v, want 40ms", stats.Average)
	}
	if stats.Score != 1 {
		t.Fatalf("score = %v, want 1 under the recovery threshold", stats.Score)
	}
}

func TestScoreDegradesLinearly(t *testing.T) {
	cases := []struct {
		avg  time.Duration
		want float64
	}{
		{50 * time.Millisecond, 1},
		{100 * time.Millisecond, 1},
		{400 * time.Millisecond, 0},
		{500 * time.Millisecond, 0},
	}
	for _, tc := range cases {
		if got := score(tc.avg); got != tc.want {
			t.Fatalf("score(%v) = %v, want %v", tc.avg, got, tc.want)
		}
	}

	mid := score(250 * time.Millisecond)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("score(250ms) = %v, want strictly between 0 and 1", mid)
	}
}
