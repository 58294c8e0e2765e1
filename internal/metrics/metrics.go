package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Ingest and synchronization counters
	SamplesReceived atomic.Uint64
	BundlesEmitted  atomic.Uint64
	BundlesDropped  atomic.Uint64
	EntriesPruned   atomic.Uint64

	// Analysis counters
	CyclesProcessed  atomic.Uint64
	AnalysisErrors   atomic.Uint64
	StateTransitions atomic.Uint64
	EventsDetected   atomic.Uint64

	// Identity cache
	IdentityHits   atomic.Uint64
	IdentityMisses atomic.Uint64

	// Latest fused scores, stored as float64 bits
	fatigueBits     atomic.Uint64
	distractionBits atomic.Uint64
	predictiveBits  atomic.Uint64

	// Latency tracking
	CycleLatencyMs atomic.Uint64 // Average cycle latency in ms

	// Degraded mode (0 = normal, 1 = degraded)
	DegradedMode atomic.Uint64

	// Monitor client tracking
	ActiveClients atomic.Uint64
	TotalClients  atomic.Uint64

	// Recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingCycles atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauge := func(name, help string, value func() float64) {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			value,
		))
	}

	// Ingest metrics
	gauge("dms_samples_received_total", "Total detection samples received",
		func() float64 { return float64(m.SamplesReceived.Load()) })
	gauge("dms_bundles_emitted_total", "Total synchronized bundles emitted",
		func() float64 { return float64(m.BundlesEmitted.Load()) })
	gauge("dms_bundles_dropped_total", "Total bundles dropped from the full output queue",
		func() float64 { return float64(m.BundlesDropped.Load()) })
	gauge("dms_entries_pruned_total", "Total incomplete bundles pruned past the horizon",
		func() float64 { return float64(m.EntriesPruned.Load()) })

	// Analysis metrics
	gauge("dms_cycles_processed_total", "Total analysis cycles processed",
		func() float64 { return float64(m.CyclesProcessed.Load()) })
	gauge("dms_analysis_errors_total", "Total analysis errors",
		func() float64 { return float64(m.AnalysisErrors.Load()) })
	gauge("dms_state_transitions_total", "Total driver state transitions",
		func() float64 { return float64(m.StateTransitions.Load()) })
	gauge("dms_events_detected_total", "Total high-level analysis events",
		func() float64 { return float64(m.EventsDetected.Load()) })

	// Identity cache metrics
	gauge("dms_identity_cache_hits_total", "Identity cache hits",
		func() float64 { return float64(m.IdentityHits.Load()) })
	gauge("dms_identity_cache_misses_total", "Identity cache misses",
		func() float64 { return float64(m.IdentityMisses.Load()) })

	// Score gauges
	gauge("dms_fatigue_score", "Latest fused fatigue score",
		func() float64 { return math.Float64frombits(m.fatigueBits.Load()) })
	gauge("dms_distraction_score", "Latest fused distraction score",
		func() float64 { return math.Float64frombits(m.distractionBits.Load()) })
	gauge("dms_predictive_score", "Latest predictive risk score",
		func() float64 { return math.Float64frombits(m.predictiveBits.Load()) })

	// Latency metrics
	gauge("dms_cycle_latency_ms", "Average analysis cycle latency in milliseconds",
		func() float64 { return float64(m.CycleLatencyMs.Load()) })
	gauge("dms_degraded_mode", "Degraded mode (0=normal, 1=degraded)",
		func() float64 { return float64(m.DegradedMode.Load()) })

	// Client metrics
	gauge("dms_active_clients", "Number of active monitor clients",
		func() float64 { return float64(m.ActiveClients.Load()) })
	gauge("dms_total_clients", "Total monitor clients connected",
		func() float64 { return float64(m.TotalClients.Load()) })

	// Recording metrics
	gauge("dms_recording_active", "Recording active (0=inactive, 1=active)",
		func() float64 { return float64(m.RecordingActive.Load()) })
	gauge("dms_recording_cycles", "Total cycles written to the recording",
		func() float64 { return float64(m.RecordingCycles.Load()) })
}

// UpdateScores stores the latest fused scores
func (m *Metrics) UpdateScores(fatigue, distraction, predictive float64) {
	m.fatigueBits.Store(math.Float64bits(fatigue))
	m.distractionBits.Store(math.Float64bits(distraction))
	m.predictiveBits.Store(math.Float64bits(predictive))
}

// UpdateCycleLatency updates the average cycle latency
func (m *Metrics) UpdateCycleLatency(duration time.Duration) {
	m.CycleLatencyMs.Store(uint64(duration.Milliseconds()))
}

// SetDegraded records whether degraded mode is active
func (m *Metrics) SetDegraded(on bool) {
	if on {
		m.DegradedMode.Store(1)
	} else {
		m.DegradedMode.Store(0)
	}
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
