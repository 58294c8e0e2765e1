package events

import (
	"testing"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

func TestWindowMonotonicExpiry(t *testing.T) {
	c := NewCounter()

	c.Add(types.EventBlink, 10_000)

	cases := []struct {
		now  int64
		want int
	}{
		{10_000, 1},          // at insertion
		{40_000, 1},          // inside
		{70_000, 1},          // exactly window edge: 60_000 elapsed, inclusive
		{70_001, 0},          // just past the edge
		{1_000_000, 0},       // long expired
	}
	for _, tc := range cases {
		if got := c.Count(types.EventBlink, tc.now); got != tc.want {
			t.Fatalf("Count(blink, %d) = %d, want %d", tc.now, got, tc.want)
		}
	}
}

func TestPerTypeWindows(t *testing.T) {
	c := NewCounter()

	// One of each at t=0.
	c.Add(types.EventBlink, 0)
	c.Add(types.EventYawn, 0)
	c.Add(types.EventHeadNod, 0)
	c.Add(types.EventGazeDeviation, 0)

	now := int64(90_000) // 90s later
	counts := c.Counts(now)

	if counts[types.EventBlink] != 0 {
		t.Errorf("blink (60s window) still counted at 90s")
	}
	if counts[types.EventGazeDeviation] != 0 {
		t.Errorf("gaze deviation (60s window) still counted at 90s")
	}
	if counts[types.EventHeadNod] != 1 {
		t.Errorf("head nod (120s window) expired at 90s")
	}
	if counts[types.EventYawn] != 1 {
		t.Errorf("yawn (300s window) expired at 90s")
	}
}

func TestHighRateDoesNotEvictInWindowEvents(t *testing.T) {
	c := NewCounter()

	// 10k blinks in one second, far above any plausible capacity bound.
	for i := int64(0); i < 10_000; i++ {
		c.Add(types.EventBlink, i)
	}

	if got := c.Count(types.EventBlink, 10_000); got != 10_000 {
		t.Fatalf("Count = %d, want 10000 (premature eviction)", got)
	}
}

func TestWriteEvictionBoundsMemory(t *testing.T) {
	c := NewCounter()

	c.Add(types.EventYawn, 0)
	// A write far past the longest window drops the stale entry.
	c.Add(types.EventYawn, maxWindowMS+1_000)

	c.mu.Lock()
	n := len(c.logs[types.EventYawn])
	c.mu.Unlock()
	if n != 1 {
		t.Fatalf("backing log holds %d entries, want 1", n)
	}
}

func TestUnknownEventType(t *testing.T) {
	c := NewCounter()
	c.Add(types.EventType("sneeze"), 0)
	if got := c.Count(types.EventType("sneeze"), 0); got != 0 {
		t.Fatalf("unknown event type counted: %d", got)
	}
}
