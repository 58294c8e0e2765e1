package syncbuf

import (
	"sync"

	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

const (
	// DefaultQueueCapacity bounds the emitted-bundle queue.
	DefaultQueueCapacity = 5
	// DefaultHorizonMS is how long a pending entry may wait for its
	// mandatory modalities before being pruned.
	DefaultHorizonMS = 2000
)

// entry is a pending, not-yet-emitted correlation for one timestamp.
type entry struct {
	frameID uint64
	face    *types.FacePayload
	pose    *types.PosePayload
	hand    *types.HandPayload
	object  *types.ObjectPayload
}

// Stats holds the buffer's drop/staleness counters. Losses are silent by
// design; these counters are the only way they surface.
type Stats struct {
	Recorded     uint64 `json:"recorded"`
	Emitted      uint64 `json:"emitted"`
	QueueDropped uint64 `json:"queue_dropped"`
	Pruned       uint64 `json:"pruned"`
	Overwrites   uint64 `json:"overwrites"`
	Pending      int    `json:"pending"`
	QueueLen     int    `json:"queue_len"`
}

// Buffer correlates per-modality detector results into per-timestamp
// bundles. It is the only structure written by multiple uncoordinated
// producers, so every operation holds the mutex.
type Buffer struct {
	mu       sync.Mutex
	pending  map[int64]*entry
	queue    []*types.ResultBundle
	capacity int
	horizon  int64

	recorded     uint64
	emitted      uint64
	queueDropped uint64
	pruned       uint64
	overwrites   uint64

	log *zap.Logger
}

// New creates a Buffer with the given output queue capacity and pending
// horizon in milliseconds. Non-positive values fall back to the defaults.
func New(capacity int, horizonMS int64, log *zap.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if horizonMS <= 0 {
		horizonMS = DefaultHorizonMS
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Buffer{
		pending:  make(map[int64]*entry),
		capacity: capacity,
		horizon:  horizonMS,
		log:      log,
	}
}

// RecordFrame registers the frame reference for a capture timestamp so an
// emitted bundle can carry it. Has no effect once the bundle for that
// timestamp was already emitted or pruned.
func (b *Buffer) RecordFrame(timestampMS int64, frameID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureEntry(timestampMS).frameID = frameID
}

// Record inserts a modality payload for a capture timestamp. A repeated
// write for the same (timestamp, modality) overwrites the previous payload:
// collisions are last-write-wins. A bundle is emitted as soon as both face
// and pose are present; hand and object ride along if already recorded.
func (b *Buffer) Record(modality types.Modality, timestampMS int64, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.ensureEntry(timestampMS)
	b.recorded++

	switch modality {
	case types.ModalityFace:
		if e.face != nil {
			b.noteOverwrite(modality, timestampMS)
		}
		e.face, _ = payload.(*types.FacePayload)
	case types.ModalityPose:
		if e.pose != nil {
			b.noteOverwrite(modality, timestampMS)
		}
		e.pose, _ = payload.(*types.PosePayload)
	case types.ModalityHand:
		if e.hand != nil {
			b.noteOverwrite(modality, timestampMS)
		}
		e.hand, _ = payload.(*types.HandPayload)
	case types.ModalityObject:
		if e.object != nil {
			b.noteOverwrite(modality, timestampMS)
		}
		e.object, _ = payload.(*types.ObjectPayload)
	default:
		b.log.Warn("unknown modality ignored", zap.String("modality", string(modality)))
		return
	}

	if e.face != nil && e.pose != nil {
		b.emit(timestampMS, e)
	}
}

// Next pops the oldest emitted bundle, or returns false when the queue is
// empty. Each bundle is consumed exactly once.
func (b *Buffer) Next() (*types.ResultBundle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return nil, false
	}
	bundle := b.queue[0]
	b.queue = b.queue[1:]
	return bundle, true
}

// Prune removes pending entries whose timestamp is older than the horizon
// relative to nowMS. Pruned data is silently lost; only the counter records
// it.
func (b *Buffer) Prune(nowMS int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ts := range b.pending {
		if nowMS-ts > b.horizon {
			delete(b.pending, ts)
			b.pruned++
		}
	}
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Recorded:     b.recorded,
		Emitted:      b.emitted,
		QueueDropped: b.queueDropped,
		Pruned:       b.pruned,
		Overwrites:   b.overwrites,
		Pending:      len(b.pending),
		QueueLen:     len(b.queue),
	}
}

// ensureEntry returns the pending entry for a timestamp, creating it if
// absent. Caller must hold the mutex.
func (b *Buffer) ensureEntry(timestampMS int64) *entry {
	e, ok := b.pending[timestampMS]
	if !ok {
		e = &entry{}
		b.pending[timestampMS] = e
	}
	return e
}

// emit moves a completed entry into the bounded output queue, dropping the
// oldest queued bundle when full. Caller must hold the mutex.
func (b *Buffer) emit(timestampMS int64, e *entry) {
	delete(b.pending, timestampMS)

	bundle := &types.ResultBundle{
		Timestamp: timestampMS,
		FrameID:   e.frameID,
		Face:      e.face,
		Pose:      e.pose,
		Hand:      e.hand,
		Object:    e.object,
	}

	if len(b.queue) >= b.capacity {
		// Backpressure: discard the oldest unconsumed bundle rather
		// than blocking producers.
		b.queue = b.queue[1:]
		b.queueDropped++
	}
	b.queue = append(b.queue, bundle)
	b.emitted++
}

func (b *Buffer) noteOverwrite(modality types.Modality, timestampMS int64) {
	b.overwrites++
	b.log.Debug("modality payload overwritten",
		zap.String("modality", string(modality)),
		zap.Int64("timestamp_ms", timestampMS))
}
