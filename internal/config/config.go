// Package config loads service configuration from file, environment and
// flags via viper, with hot reload for the tunable analysis settings.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/StudentDONGHYUN/DMS-Project/internal/logging"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Sync    SyncConfig     `mapstructure:"sync"`
	Monitor MonitorConfig  `mapstructure:"monitor"`
	Record  RecordConfig   `mapstructure:"record"`
	Log     logging.Config `mapstructure:"log"`
}

// ServerConfig covers the HTTP surface.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SyncConfig tunes the synchronization buffer.
type SyncConfig struct {
	QueueCapacity int   `mapstructure:"queue_capacity"`
	HorizonMS     int64 `mapstructure:"horizon_ms"`
	// PruneInterval is how often incomplete bundles are swept.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// MonitorConfig tunes the websocket monitor feed.
type MonitorConfig struct {
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	ClientQueueSize   int           `mapstructure:"client_queue_size"`
}

// RecordConfig tunes session recording.
type RecordConfig struct {
	Dir string `mapstructure:"dir"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("sync.queue_capacity", 5)
	v.SetDefault("sync.horizon_ms", 2000)
	v.SetDefault("sync.prune_interval", 500*time.Millisecond)
	v.SetDefault("monitor.broadcast_interval", 100*time.Millisecond)
	v.SetDefault("monitor.client_queue_size", 16)
	v.SetDefault("record.dir", "recordings")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
}

// Loader owns the viper instance and hands out consistent snapshots.
type Loader struct {
	mu  sync.RWMutex
	v   *viper.Viper
	cfg Config
}

// Load reads configuration. path may be empty, in which case only
// defaults and DMS_* environment variables apply. A missing file at an
// explicit path is an error; a malformed file always is.
func Load(path string) (*Loader, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("DMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	l := &Loader{v: v}
	if err := l.unmarshal(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) unmarshal() error {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return nil
}

func validate(cfg Config) error {
	if cfg.Sync.QueueCapacity < 1 {
		return fmt.Errorf("sync.queue_capacity must be positive, got %d", cfg.Sync.QueueCapacity)
	}
	if cfg.Sync.HorizonMS < 1 {
		return fmt.Errorf("sync.horizon_ms must be positive, got %d", cfg.Sync.HorizonMS)
	}
	if cfg.Monitor.BroadcastInterval <= 0 {
		return fmt.Errorf("monitor.broadcast_interval must be positive, got %v", cfg.Monitor.BroadcastInterval)
	}
	return nil
}

// Get returns the current configuration snapshot.
func (l *Loader) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch re-reads the file on change and invokes onChange with the new
// snapshot. Invalid updates are logged and dropped; the previous
// configuration stays active.
func (l *Loader) Watch(log *zap.Logger, onChange func(Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if err := l.unmarshal(); err != nil {
			log.Warn("config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("file", e.Name))
		if onChange != nil {
			onChange(l.Get())
		}
	})
	l.v.WatchConfig()
}
