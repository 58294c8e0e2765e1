package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
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

type testFixture struct {
	ts  *httptest.Server
	buf *syncbuf.Buffer
	rec *recorder.Recorder
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	log := zap.NewNop()
	m := metrics.New()
	pt := perf.NewTracker(log)
	buf := syncbuf.New(0, 0, log)
	engine := analysis.NewEngine(analysis.Options{Perf: pt, Logger: log})
	rec := recorder.NewRecorder(t.TempDir(), log)
	hub := monitor.NewHub(4, m, log)

	srv := NewServer(buf, engine, rec, hub, m, pt, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		rec.Close()
	})
	return &testFixture{ts: ts, buf: buf, rec: rec}
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func postJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	f := newTestFixture(t)

	code, payload := getJSON(t, f.ts.URL+"/health")
	if code != http.StatusOK {
		t.Fatalf("GET /health status = %d", code)
	}
	if payload["status"] != "ok" {
		t.Fatalf("health status = %v, want ok", payload["status"])
	}
}

func TestStatusShape(t *testing.T) {
	f := newTestFixture(t)

	code, payload := getJSON(t, f.ts.URL+"/api/status")
	if code != http.StatusOK {
		t.Fatalf("GET /api/status status = %d", code)
	}
	for _, key := range []string{"state", "metrics", "state_stats", "sync", "performance"} {
		if payload[key] == nil {
			t.Fatalf("status payload missing %q", key)
		}
	}
}

func TestRecordingLifecycle(t *testing.T) {
	f := newTestFixture(t)

	code, payload := getJSON(t, f.ts.URL+"/api/recording/status")
	if code != http.StatusOK {
		t.Fatalf("GET /api/recording/status status = %d", code)
	}
	if payload["recording"] != false {
		t.Fatalf("initial recording = %v, want false", payload["recording"])
	}

	code, payload = postJSON(t, f.ts.URL+"/api/recording/start")
	if code != http.StatusOK {
		t.Fatalf("POST /api/recording/start status = %d", code)
	}
	if payload["success"] != true {
		t.Fatalf("start success = %v", payload["success"])
	}

	// Starting twice conflicts.
	code, _ = postJSON(t, f.ts.URL+"/api/recording/start")
	if code != http.StatusConflict {
		t.Fatalf("second start status = %d, want %d", code, http.StatusConflict)
	}

	code, payload = postJSON(t, f.ts.URL+"/api/recording/stop")
	if code != http.StatusOK {
		t.Fatalf("POST /api/recording/stop status = %d", code)
	}
	if payload["success"] != true {
		t.Fatalf("stop success = %v", payload["success"])
	}

	code, _ = postJSON(t, f.ts.URL+"/api/recording/stop")
	if code != http.StatusConflict {
		t.Fatalf("second stop status = %d, want %d", code, http.StatusConflict)
	}
}

func TestRecordingStartRequiresPost(t *testing.T) {
	f := newTestFixture(t)

	resp, err := http.Get(f.ts.URL + "/api/recording/start")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestIngestFeedsSyncBuffer(t *testing.T) {
	f := newTestFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/ingest"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ingest: %v", err)
	}
	defer conn.Close()

	send := func(msg IngestMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send(IngestMessage{
		Modality:  types.ModalityFace,
		Timestamp: 1000,
		FrameID:   42,
		Face:      &types.FacePayload{Landmarks: []types.Landmark{{X: 0.5, Y: 0.5}}},
	})
	send(IngestMessage{
		Modality:  types.ModalityPose,
		Timestamp: 1000,
		Pose:      &types.PosePayload{WorldLandmarks: make([]types.Landmark, 33)},
	})

	// The server handles the socket asynchronously; poll for the bundle.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bundle, ok := f.buf.Next(); ok {
			if bundle.Timestamp != 1000 {
				t.Fatalf("bundle timestamp = %d, want 1000", bundle.Timestamp)
			}
			if bundle.FrameID != 42 {
				t.Fatalf("bundle frame id = %d, want 42", bundle.FrameID)
			}
			if bundle.Face == nil || bundle.Pose == nil {
				t.Fatal("bundle missing mandatory modalities")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no bundle emitted within deadline")
}

func TestIngestSurvivesMalformedMessage(t *testing.T) {
	f := newTestFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws/ingest"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ingest: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	// The socket must stay open and keep accepting valid samples.
	msg := IngestMessage{
		Modality:  types.ModalityFace,
		Timestamp: 2000,
		Face:      &types.FacePayload{Landmarks: []types.Landmark{{X: 0.1}}},
	}
	data, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.buf.Stats().Recorded > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("valid sample after garbage never recorded")
}
