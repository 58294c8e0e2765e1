// dms-feed streams synthetic detector output into a running server's
// ingest socket. It exists for demos and load checks: pick a scenario,
// point it at the server, and watch the state machine react.
package main

import (
	"encoding/json"
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/api"
	"github.com/StudentDONGHYUN/DMS-Project/pkg/types"
)

var (
	serverURL = flag.String("server", "ws://localhost:8080/ws/ingest", "Ingest websocket URL")
	scenario  = flag.String("scenario", "normal", "Scenario: normal, drowsy, phone, distracted")
	fps       = flag.Int("fps", 30, "Samples per second per modality")
	duration  = flag.Duration("duration", 0, "How long to run (0 = until interrupted)")
)

func main() {
	flag.Parse()

	log, _ := zap.NewDevelopment()
	defer log.Sync()

	gen, ok := scenarios[*scenario]
	if !ok {
		log.Fatal("unknown scenario", zap.String("scenario", *scenario))
	}

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatal("dial failed", zap.String("url", *serverURL), zap.Error(err))
	}
	defer conn.Close()

	log.Info("feeding",
		zap.String("server", *serverURL),
		zap.String("scenario", *scenario),
		zap.Int("fps", *fps))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	var frameID uint64
	start := time.Now()

	for {
		select {
		case <-sigChan:
			log.Info("interrupted")
			return
		case <-deadline:
			log.Info("duration reached")
			return
		case <-ticker.C:
			frameID++
			ts := time.Now().UnixMilli()
			elapsed := time.Since(start).Seconds()

			for _, msg := range gen(ts, frameID, elapsed) {
				data, err := json.Marshal(msg)
				if err != nil {
					log.Warn("marshal failed", zap.Error(err))
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Fatal("write failed", zap.Error(err))
				}
			}
		}
	}
}

// generator produces one frame's worth of ingest messages.
type generator func(ts int64, frameID uint64, elapsed float64) []api.IngestMessage

var scenarios = map[string]generator{
	"normal":     normalScenario,
	"drowsy":     drowsyScenario,
	"phone":      phoneScenario,
	"distracted": distractedScenario,
}

func normalScenario(ts int64, frameID uint64, elapsed float64) []api.IngestMessage {
	return []api.IngestMessage{
		faceMessage(ts, frameID, 0.30, 0.1, identityMatrix()),
		poseMessage(ts),
		handMessage(ts, 0.40, 0.60, 0.60, 0.60),
	}
}

// drowsyScenario closes the eyes progressively and adds yawns.
func drowsyScenario(ts int64, frameID uint64, elapsed float64) []api.IngestMessage {
	closure := math.Min(1, elapsed/30)
	ear := 0.30 - 0.15*closure
	jawOpen := 0.0
	// A yawn every ten seconds or so once fatigue builds.
	if closure > 0.5 && int(elapsed)%10 == 0 {
		jawOpen = 0.8
	}
	msg := faceMessage(ts, frameID, ear, jawOpen, identityMatrix())
	return []api.IngestMessage{
		msg,
		poseMessage(ts),
		handMessage(ts, 0.40, 0.60, 0.60, 0.60),
	}
}

// phoneScenario holds a phone near one hand, off the wheel.
func phoneScenario(ts int64, frameID uint64, elapsed float64) []api.IngestMessage {
	return []api.IngestMessage{
		faceMessage(ts, frameID, 0.30, 0.1, identityMatrix()),
		poseMessage(ts),
		handMessage(ts, 0.40, 0.60, 0.85, 0.30),
		{
			Modality:  types.ModalityObject,
			Timestamp: ts,
			Object: &types.ObjectPayload{Detections: []types.ObjectDetection{{
				Category:   "cell phone",
				Confidence: 0.9,
				Box:        types.BoundingBox{X: 0.8, Y: 0.25, Width: 0.08, Height: 0.15},
			}}},
		},
	}
}

// distractedScenario turns the head toward the passenger seat.
func distractedScenario(ts int64, frameID uint64, elapsed float64) []api.IngestMessage {
	yaw := 70.0
	return []api.IngestMessage{
		faceMessage(ts, frameID, 0.30, 0.1, yawMatrix(yaw)),
		poseMessage(ts),
		handMessage(ts, 0.40, 0.60, 0.60, 0.60),
	}
}

func faceMessage(ts int64, frameID uint64, ear, jawOpen float64, transform *[16]float64) api.IngestMessage {
	return api.IngestMessage{
		Modality:  types.ModalityFace,
		Timestamp: ts,
		FrameID:   frameID,
		Face: &types.FacePayload{
			Landmarks: faceMesh(ear),
			Blendshapes: map[string]float64{
				"jawOpen":      jawOpen,
				"eyeBlinkLeft": jitter(0.05), "eyeBlinkRight": jitter(0.05),
			},
			Transform: transform,
		},
	}
}

// faceMesh builds a full landmark mesh whose eye contours produce
// roughly the requested aspect ratio.
func faceMesh(ear float64) []types.Landmark {
	mesh := make([]types.Landmark, 478)
	for i := range mesh {
		mesh[i] = types.Landmark{X: 0.5 + jitter(0.002), Y: 0.5 + jitter(0.002)}
	}
	eye := func(idx [6]int, cx float64) {
		const half = 0.03 // half eye width
		v := ear * half   // vertical offset giving the target ratio
		mesh[idx[0]] = types.Landmark{X: cx - half, Y: 0.45}
		mesh[idx[3]] = types.Landmark{X: cx + half, Y: 0.45}
		mesh[idx[1]] = types.Landmark{X: cx - half/2, Y: 0.45 - v}
		mesh[idx[2]] = types.Landmark{X: cx + half/2, Y: 0.45 - v}
		mesh[idx[5]] = types.Landmark{X: cx - half/2, Y: 0.45 + v}
		mesh[idx[4]] = types.Landmark{X: cx + half/2, Y: 0.45 + v}
	}
	eye([6]int{33, 160, 158, 133, 153, 144}, 0.40)
	eye([6]int{362, 385, 387, 263, 373, 380}, 0.60)
	return mesh
}

func poseMessage(ts int64) api.IngestMessage {
	lm := make([]types.Landmark, 33)
	lm[11] = types.Landmark{X: -0.2, Y: -0.3}
	lm[12] = types.Landmark{X: 0.2, Y: -0.3}
	lm[23] = types.Landmark{X: -0.15, Y: 0.15}
	lm[24] = types.Landmark{X: 0.15, Y: 0.15}
	return api.IngestMessage{
		Modality:  types.ModalityPose,
		Timestamp: ts,
		Pose:      &types.PosePayload{WorldLandmarks: lm},
	}
}

func handMessage(ts int64, lx, ly, rx, ry float64) api.IngestMessage {
	return api.IngestMessage{
		Modality:  types.ModalityHand,
		Timestamp: ts,
		Hand: &types.HandPayload{Hands: []types.HandDetection{
			{Handedness: "Left", Wrist: types.Landmark{X: lx, Y: ly}},
			{Handedness: "Right", Wrist: types.Landmark{X: rx, Y: ry}},
		}},
	}
}

func identityMatrix() *[16]float64 {
	return &[16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// yawMatrix rotates the head transform around the vertical axis.
func yawMatrix(deg float64) *[16]float64 {
	r := -deg * math.Pi / 180
	c, s := math.Cos(r), math.Sin(r)
	return &[16]float64{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

func jitter(scale float64) float64 {
	return (rand.Float64() - 0.5) * 2 * scale
}
