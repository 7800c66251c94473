package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.StoreDriver != "sqlite" || c.FillValue != "N/A" || c.ForecastHorizon != 30 || c.ListenAddr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if !strings.HasSuffix(c.StoreDSN, filepath.Join(".nimbus", "nimbus.db")) {
		t.Fatalf("dsn: %s", c.StoreDSN)
	}
	if !strings.HasSuffix(c.UploadDir, filepath.Join(".nimbus", "uploads")) {
		t.Fatalf("upload dir: %s", c.UploadDir)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nimbus.yaml")
	in := &Global{StoreDriver: "postgres", StoreDSN: "postgres://x", FillValue: "missing", ForecastHorizon: 7}
	if err := Save(in, path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NIMBUS_FORECAST_HORIZON", "14")
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.StoreDriver != "postgres" || c.StoreDSN != "postgres://x" || c.FillValue != "missing" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.ForecastHorizon != 14 {
		t.Fatalf("env override not applied: %d", c.ForecastHorizon)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSaveDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := Save(&Global{LogLevel: "debug"}, ""); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(home, ".nimbus", "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "log_level: debug") {
		t.Fatalf("saved yaml: %s", b)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", "json")
	log.Info("hidden")
	log.Warn("shown", "step", 2)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "shown" || rec["step"] != float64(2) {
		t.Fatalf("record: %v", rec)
	}

	buf.Reset()
	NewLogger(&buf, "bogus", "text").Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("unknown level should default to info: %q", buf.String())
	}
}
