package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dms.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	l, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Get()
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Sync.QueueCapacity != 5 || cfg.Sync.HorizonMS != 2000 {
		t.Fatalf("sync defaults = %+v", cfg.Sync)
	}
	if cfg.Monitor.BroadcastInterval != 100*time.Millisecond {
		t.Fatalf("broadcast interval = %v", cfg.Monitor.BroadcastInterval)
	}
	if cfg.Record.Dir != "recordings" {
		t.Fatalf("record dir = %q", cfg.Record.Dir)
	}
	if cfg.Log.Level != "info" || !cfg.Log.Console {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\nsync:\n  queue_capacity: 8\n")
	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Get()
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Sync.QueueCapacity != 8 {
		t.Fatalf("queue capacity = %d", cfg.Sync.QueueCapacity)
	}
	if cfg.Sync.HorizonMS != 2000 {
		t.Fatal("untouched keys should keep defaults")
	}
}

func TestMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing explicit config file should fail")
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	path := writeConfig(t, "sync:\n  queue_capacity: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatal("zero queue capacity should be rejected")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("DMS_SERVER_ADDR", ":7070")
	l, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if addr := l.Get().Server.Addr; addr != ":7070" {
		t.Fatalf("addr = %q, want :7070", addr)
	}
}
