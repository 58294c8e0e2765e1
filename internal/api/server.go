// Package api exposes the service's HTTP surface: health and status
// endpoints, recording control, the detector ingest socket and the live
// monitor socket.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/analysis"
	"github.com/StudentDONGHYUN/DMS-Project/internal/metrics"
	"github.com/StudentDONGHYUN/DMS-Project/internal/monitor"
	"github.com/StudentDONGHYUN/DMS-Project/internal/perf"
	"github.com/StudentDONGHYUN/DMS-Project/internal/recorder"
	"github.com/StudentDONGHYUN/DMS-Project/internal/syncbuf"
	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

// IngestMessage is one detector sample on the ingest socket. Exactly one
// payload field matching Modality should be set.
type IngestMessage struct {
	Modality  types.Modality       `json:"modality"`
	Timestamp int64                `json:"timestamp"`
	FrameID   uint64               `json:"frame_id,omitempty"`
	Face      *types.FacePayload   `json:"face,omitempty"`
	Pose      *types.PosePayload   `json:"pose,omitempty"`
	Hand      *types.HandPayload   `json:"hand,omitempty"`
	Object    *types.ObjectPayload `json:"object,omitempty"`
}

var ingestUpgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the HTTP surface to the pipeline components.
type Server struct {
	buf      *syncbuf.Buffer
	engine   *analysis.Engine
	recorder *recorder.Recorder
	hub      *monitor.Hub
	metrics  *metrics.Metrics
	perf     *perf.Tracker
	log      *zap.Logger
	started  time.Time
}

// NewServer returns a configured Server.
func NewServer(buf *syncbuf.Buffer, engine *analysis.Engine, rec *recorder.Recorder,
	hub *monitor.Hub, m *metrics.Metrics, pt *perf.Tracker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		buf:      buf,
		engine:   engine,
		recorder: rec,
		hub:      hub,
		metrics:  m,
		perf:     pt,
		log:      log,
		started:  time.Now(),
	}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/state/history", s.handleStateHistory)
	mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.HandleFunc("/ws/ingest", s.handleIngest)
	mux.HandleFunc("/ws/monitor", s.hub.ServeWS)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"state":           s.engine.State(),
		"metrics":         s.engine.Snapshot(),
		"state_stats":     s.engine.StateStatistics(),
		"sync":            s.buf.Stats(),
		"performance":     s.perf.Stats(),
		"monitor_clients": s.hub.ClientCount(),
		"timestamp":       float64(time.Now().Unix()),
	}
	writeJSON(w, payload)
}

func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"history": s.engine.StateHistory(),
	})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if err := s.recorder.Start(); err != nil {
		writeJSONStatus(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	s.metrics.RecordingActive.Store(1)
	writeJSON(w, map[string]any{
		"success": true,
		"status":  s.recorder.GetStatus(),
	})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	status := s.recorder.GetStatus()
	if err := s.recorder.Stop(); err != nil {
		writeJSONStatus(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	s.metrics.RecordingActive.Store(0)
	writeJSON(w, map[string]any{
		"success": true,
		"status":  status,
	})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.recorder.GetStatus())
}

// handleIngest feeds detector samples into the synchronization buffer.
// One socket per detector process; messages from different sockets for
// the same timestamp are correlated by the buffer.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	conn, err := ingestUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ingest upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.log.Info("ingest client connected", zap.String("remote", r.RemoteAddr))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Info("ingest client disconnected",
				zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}

		var msg IngestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// A malformed sample costs one modality one cycle, nothing
			// more. Keep the socket open.
			s.log.Warn("malformed ingest message", zap.Error(err))
			continue
		}
		s.ingest(msg)
	}
}

func (s *Server) ingest(msg IngestMessage) {
	if msg.FrameID != 0 {
		s.buf.RecordFrame(msg.Timestamp, msg.FrameID)
	}

	switch msg.Modality {
	case types.ModalityFace:
		if msg.Face != nil {
			s.buf.Record(types.ModalityFace, msg.Timestamp, msg.Face)
		}
	case types.ModalityPose:
		if msg.Pose != nil {
			s.buf.Record(types.ModalityPose, msg.Timestamp, msg.Pose)
		}
	case types.ModalityHand:
		if msg.Hand != nil {
			s.buf.Record(types.ModalityHand, msg.Timestamp, msg.Hand)
		}
	case types.ModalityObject:
		if msg.Object != nil {
			s.buf.Record(types.ModalityObject, msg.Timestamp, msg.Object)
		}
	default:
		s.log.Warn("unknown ingest modality", zap.String("modality", string(msg.Modality)))
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
