package identity

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// DefaultCapacity is the maximum number of live cache entries.
	DefaultCapacity = 5
	// DefaultTTL is how long a computed identity stays valid.
	DefaultTTL = 300 * time.Second

	// quantStep is the landmark coordinate quantization applied before
	// hashing, so natural sensor jitter still hits the cache. Larger
	// steps raise the hit rate at the cost of identity precision.
	quantStep = 0.01
)

// Unknown is the fallback identity when identification fails.
var Unknown = types.DriverIdentity{DriverID: "unknown", Confidence: 0}

// ComputeFunc performs the expensive identification lookup.
type ComputeFunc func() (types.DriverIdentity, error)

type entry struct {
	value      types.DriverIdentity
	insertedAt time.Time
}

// Stats holds cache effectiveness counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Evicted  uint64 `json:"evicted"`
	Failures uint64 `json:"failures"`
}

// Cache memoizes driver identification results for a short time, keyed by
// a quantized fingerprint of face landmarks. At most one computation runs
// concurrently per key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	capacity int
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group

	hits     uint64
	misses   uint64
	evicted  uint64
	failures uint64
}

// NewCache creates a Cache. Zero capacity/ttl use the defaults; a nil
// clock uses time.Now.
func NewCache(capacity int, ttl time.Duration, now func() time.Time) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:  make(map[string]*entry, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}
}

// Key builds the cache key from face landmarks by quantizing each
// coordinate to quantStep before hashing.
func Key(landmarks []types.Landmark) string {
	h := fnv.New64a()
	var buf [12]byte
	for _, lm := range landmarks {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(math.Round(lm.X/quantStep))))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(math.Round(lm.Y/quantStep))))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(int32(math.Round(lm.Z/quantStep))))
		h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// GetOrCompute returns the cached identity for key if present and younger
// than the TTL; otherwise it invokes compute and caches the result,
// evicting the oldest entry when over capacity. Concurrent callers with
// the same key share a single computation. A failed computation returns
// the Unknown identity along with the error and caches nothing.
func (c *Cache) GetOrCompute(key string, compute ComputeFunc) (types.DriverIdentity, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another caller may have filled the entry while we
		// waited on the flight group.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		value, err := compute()
		if err != nil {
			c.mu.Lock()
			c.failures++
			c.mu.Unlock()
			return Unknown, err
		}
		c.insert(key, value)
		return value, nil
	})
	return v.(types.DriverIdentity), err
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evicted: c.evicted, Failures: c.failures}
}

func (c *Cache) lookup(key string) (types.DriverIdentity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.insertedAt) > c.ttl {
		c.misses++
		return types.DriverIdentity{}, false
	}
	c.hits++
	return e.value, true
}

func (c *Cache) insert(key string, value types.DriverIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{value: value, insertedAt: c.now()}

	for len(c.entries) > c.capacity {
		oldestKey := ""
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.insertedAt.Before(oldest) {
				oldestKey, oldest = k, e.insertedAt
			}
		}
		delete(c.entries, oldestKey)
		c.evicted++
	}
}
