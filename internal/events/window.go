package events

import (
	"sync"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// Window durations in milliseconds per event type.
const (
	BlinkWindowMS         = 60_000
	YawnWindowMS          = 300_000
	HeadNodWindowMS       = 120_000
	GazeDeviationWindowMS = 60_000
)

var windows = map[types.EventType]int64{
	types.EventBlink:         BlinkWindowMS,
	types.EventYawn:          YawnWindowMS,
	types.EventHeadNod:       HeadNodWindowMS,
	types.EventGazeDeviation: GazeDeviationWindowMS,
}

// maxWindowMS is the longest configured window; entries older than this
// can never be counted again and are evicted on write.
const maxWindowMS = YawnWindowMS

// Counter tracks recent-occurrence counts per event type over fixed time
// windows. Eviction is time-bounded rather than capacity-bounded, so an
// event inside its window is never evicted early regardless of rate.
type Counter struct {
	mu   sync.Mutex
	logs map[types.EventType][]int64
}

// NewCounter creates an empty Counter for the known event types.
func NewCounter() *Counter {
	logs := make(map[types.EventType][]int64, len(windows))
	for t := range windows {
		logs[t] = nil
	}
	return &Counter{logs: logs}
}

// Add appends an occurrence of the event type at nowMS. Unknown event
// types are ignored. Entries older than the longest window are dropped on
// each write, bounding memory by event rate times the longest window.
func (c *Counter) Add(eventType types.EventType, nowMS int64) {
	if _, ok := windows[eventType]; !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	log := append(c.logs[eventType], nowMS)

	// Drop timestamps that fell out of every window.
	cut := 0
	for cut < len(log) && nowMS-log[cut] > maxWindowMS {
		cut++
	}
	c.logs[eventType] = log[cut:]
}

// Count returns how many occurrences of the event type fall inside its
// window relative to nowMS, i.e. those with nowMS-ts <= window.
func (c *Counter) Count(eventType types.EventType, nowMS int64) int {
	window, ok := windows[eventType]
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, ts := range c.logs[eventType] {
		if nowMS-ts <= window {
			n++
		}
	}
	return n
}

// Counts returns the windowed count for every known event type at nowMS.
func (c *Counter) Counts(nowMS int64) map[types.EventType]int {
	out := make(map[types.EventType]int, len(windows))
	for t := range windows {
		out[t] = c.Count(t, nowMS)
	}
	return out
}
