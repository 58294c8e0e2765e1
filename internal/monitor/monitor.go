// Package monitor pushes live analysis snapshots to websocket clients.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/analysis"
	"github.com/StudentDONGHYUN/DMS-Project/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The monitor feed is same-deployment tooling; origin checks are
	// the reverse proxy's job.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans analysis cycles out to connected monitor clients. Slow
// clients lose frames, never stall the analysis loop.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*client]struct{}
	queueSize int
	dropped   atomic.Uint64
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewHub creates a Hub. queueSize bounds each client's outbound queue.
func NewHub(queueSize int, m *metrics.Metrics, log *zap.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 16
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:   make(map[*client]struct{}),
		queueSize: queueSize,
		metrics:   m,
		log:       log,
	}
}

// ServeWS upgrades the request and serves the client until it leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("monitor upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.queueSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveClients.Store(uint64(count))
		h.metrics.TotalClients.Add(1)
	}
	h.log.Info("monitor client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Int("clients", count))

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast queues a cycle for every connected client. Full client
// queues drop the frame for that client only.
func (h *Hub) Broadcast(cycle analysis.CycleResult) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}
	payload, err := json.Marshal(cycle)
	if err != nil {
		h.log.Warn("cycle marshal failed", zap.Error(err))
		return
	}
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
	if h.metrics != nil {
		h.metrics.ActiveClients.Store(uint64(count))
	}
	h.log.Info("monitor client disconnected", zap.Int("clients", count))
}

// readPump discards inbound messages; its job is pong handling and
// disconnect detection.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns frames dropped to slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// CloseAll disconnects every client, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
