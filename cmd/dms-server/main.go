package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/analysis"
	"github.com/StudentDONGHYUN/DMS-Project/internal/api"
	"github.com/StudentDONGHYUN/DMS-Project/internal/config"
	"github.com/StudentDONGHYUN/DMS-Project/internal/logging"
	"github.com/StudentDONGHYUN/DMS-Project/internal/metrics"
	"github.com/StudentDONGHYUN/DMS-Project/internal/monitor"
	"github.com/StudentDONGHYUN/DMS-Project/internal/perf"
	"github.com/StudentDONGHYUN/DMS-Project/internal/recorder"
	"github.com/StudentDONGHYUN/DMS-Project/internal/syncbuf"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Config file path (optional)")
	httpAddr   = flag.String("http", "", "HTTP server address (overrides config)")
	pprofAddr  = flag.String("pprof", ":6060", "pprof server address")
	recordDir  = flag.String("record-dir", "", "Recording output directory (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level (overrides config)")
)

// Server is the main analysis server
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg        config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
	buf        *syncbuf.Buffer
	perf       *perf.Tracker
	engine     *analysis.Engine
	recorder   *recorder.Recorder
	hub        *monitor.Hub
	httpServer *http.Server
}

func main() {
	flag.Parse()

	loader, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}
	cfg := loader.Get()
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	if *recordDir != "" {
		cfg.Record.Dir = *recordDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		zap.NewExample().Fatal("logger setup failed", zap.Error(err))
	}
	defer log.Sync()

	log.Info("driver monitoring server starting",
		zap.String("http", cfg.Server.Addr),
		zap.String("record_dir", cfg.Record.Dir))

	srv := NewServer(cfg, log)
	if err := srv.Start(); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}

	// Structural settings need a restart; the watch exists so operators
	// learn that from the log instead of silence.
	loader.Watch(log, func(next config.Config) {
		if next.Sync != cfg.Sync || next.Server != cfg.Server {
			log.Warn("server and sync settings apply on next restart")
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("server stopped")
}

// NewServer assembles the pipeline
func NewServer(cfg config.Config, log *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	m := metrics.New()
	pt := perf.NewTracker(log.Named("perf"))
	buf := syncbuf.New(cfg.Sync.QueueCapacity, cfg.Sync.HorizonMS, log.Named("sync"))
	engine := analysis.NewEngine(analysis.Options{
		Perf:   pt,
		Logger: log.Named("analysis"),
	})
	rec := recorder.NewRecorder(cfg.Record.Dir, log.Named("recorder"))
	hub := monitor.NewHub(cfg.Monitor.ClientQueueSize, m, log.Named("monitor"))

	apiServer := api.NewServer(buf, engine, rec, hub, m, pt, log.Named("api"))

	return &Server{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		buf:      buf,
		perf:     pt,
		engine:   engine,
		recorder: rec,
		hub:      hub,
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: apiServer.Handler(),
		},
	}
}

// Start launches the pipeline goroutines and the HTTP server
func (s *Server) Start() error {
	go func() {
		s.log.Info("pprof server listening", zap.String("addr", *pprofAddr))
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			s.log.Warn("pprof server error", zap.Error(err))
		}
	}()

	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.Server.Addr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("http server error", zap.Error(err))
		}
	}()

	s.wg.Add(3)
	go s.processBundles()
	go s.pruneLoop()
	go s.statsLoop()

	s.log.Info("server started")
	return nil
}

// processBundles drains the synchronization buffer and runs the analysis
// cycle for each emitted bundle
func (s *Server) processBundles() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			for {
				bundle, ok := s.buf.Next()
				if !ok {
					break
				}

				cycle := s.engine.Process(s.ctx, bundle)

				s.metrics.CyclesProcessed.Add(1)
				s.metrics.EventsDetected.Add(uint64(len(cycle.Events)))
				s.metrics.UpdateScores(
					cycle.Snapshot.FatigueScore,
					cycle.Snapshot.DistractionScore,
					cycle.Snapshot.PredictiveScore,
				)
				s.metrics.UpdateCycleLatency(cycle.Latency)
				s.metrics.SetDegraded(s.perf.Degraded())
				s.metrics.StateTransitions.Store(uint64(s.engine.StateStatistics().TotalTransitions))

				s.hub.Broadcast(cycle)
				if s.recorder.Record(cycle) {
					s.metrics.RecordingCycles.Add(1)
				}
			}
		}
	}
}

// pruneLoop sweeps incomplete correlations past the horizon
func (s *Server) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Sync.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.buf.Prune(time.Now().UnixMilli())
		}
	}
}

// statsLoop mirrors the buffer counters into the metrics registry
func (s *Server) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			stats := s.buf.Stats()
			s.metrics.SamplesReceived.Store(stats.Recorded)
			s.metrics.BundlesEmitted.Store(stats.Emitted)
			s.metrics.BundlesDropped.Store(stats.QueueDropped)
			s.metrics.EntriesPruned.Store(stats.Pruned)
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.cancel()
	s.wg.Wait()

	if s.recorder.IsRecording() {
		if err := s.recorder.Stop(); err != nil {
			s.log.Warn("recording stop failed", zap.Error(err))
		}
	}
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
