package identity

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// fakeClock advances manually.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestMemoizationWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(0, 0, clock.now)

	calls := 0
	compute := func() (types.DriverIdentity, error) {
		calls++
		return types.DriverIdentity{DriverID: "d1", Confidence: 0.9}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := c.GetOrCompute("k1", compute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.DriverID != "d1" {
			t.Fatalf("driver id = %q, want d1", got.DriverID)
		}
	}
	if calls != 1 {
		t.Fatalf("compute ran %d times within TTL, want 1", calls)
	}

	// After TTL expiry the entry is invalid regardless of access.
	clock.advance(301 * time.Second)
	if _, err := c.GetOrCompute("k1", compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("compute ran %d times after expiry, want 2", calls)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	c := NewCache(5, 0, clock.now)

	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := c.GetOrCompute(key, func() (types.DriverIdentity, error) {
			return types.DriverIdentity{DriverID: key}, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		clock.advance(time.Second)
	}

	// k0 was the oldest and must have been evicted; recompute required.
	calls := 0
	if _, err := c.GetOrCompute("k0", func() (types.DriverIdentity, error) {
		calls++
		return types.DriverIdentity{DriverID: "k0"}, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("evicted key did not recompute")
	}

	// k5 is still live.
	if _, err := c.GetOrCompute("k5", func() (types.DriverIdentity, error) {
		t.Fatalf("live key recomputed")
		return types.DriverIdentity{}, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComputeFailureFallsBack(t *testing.T) {
	c := NewCache(0, 0, nil)

	wantErr := errors.New("model unavailable")
	got, err := c.GetOrCompute("k1", func() (types.DriverIdentity, error) {
		return types.DriverIdentity{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	if got != Unknown {
		t.Fatalf("fallback identity = %+v, want Unknown", got)
	}

	// Failures are not cached; the next call retries.
	calls := 0
	if _, err := c.GetOrCompute("k1", func() (types.DriverIdentity, error) {
		calls++
		return types.DriverIdentity{DriverID: "d1"}, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("failed entry was cached")
	}
}

func TestSingleComputationPerKey(t *testing.T) {
	c := NewCache(0, 0, nil)

	var calls atomic.Int64
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrCompute("k1", func() (types.DriverIdentity, error) {
				calls.Add(1)
				<-gate
				return types.DriverIdentity{DriverID: "d1"}, nil
			})
		}()
	}

	// Let the goroutines pile onto the flight group, then release.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("compute ran %d times concurrently, want 1", got)
	}
}

func TestKeyQuantizationAbsorbsJitter(t *testing.T) {
	base := []types.Landmark{{X: 0.500, Y: 0.300, Z: 0.010}, {X: 0.120, Y: 0.480, Z: 0.020}}
	jittered := []types.Landmark{{X: 0.5021, Y: 0.2989, Z: 0.0104}, {X: 0.1189, Y: 0.4797, Z: 0.0196}}
	moved := []types.Landmark{{X: 0.58, Y: 0.30, Z: 0.01}, {X: 0.12, Y: 0.48, Z: 0.02}}

	if Key(base) != Key(jittered) {
		t.Fatalf("sub-quantization jitter changed the key")
	}
	if Key(base) == Key(moved) {
		t.Fatalf("distinct landmark sets collided")
	}
}
