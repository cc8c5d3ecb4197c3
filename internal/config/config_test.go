package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rawbids/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[paths]
source_dir = "/data/sourcedata"
raw_dir = "/data/rawdata"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatalf("expected config at %s to exist", resolved)
	}
	if cfg.Conversion.Binary != "dcm2niix" {
		t.Fatalf("expected default conversion binary, got %q", cfg.Conversion.Binary)
	}
	if cfg.Fieldmap.SplitThreshold != 4 {
		t.Fatalf("expected default split threshold 4, got %d", cfg.Fieldmap.SplitThreshold)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console log format, got %q", cfg.Logging.Format)
	}
	if cfg.Workflow.Workers != 1 {
		t.Fatalf("expected single worker default, got %d", cfg.Workflow.Workers)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := writeConfig(t, `
[paths]
source_dir = "~/scans/sourcedata"
raw_dir = "~/scans/rawdata"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.SourceDir != filepath.Join(home, "scans", "sourcedata") {
		t.Fatalf("expected expanded source dir, got %q", cfg.Paths.SourceDir)
	}
}

func TestLoadRejectsSharedSourceAndRaw(t *testing.T) {
	path := writeConfig(t, `
[paths]
source_dir = "/data/bids"
raw_dir = "/data/bids"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for identical source and raw dirs")
	}
}

func TestLoadNormalizesUnknownLogFormat(t *testing.T) {
	path := writeConfig(t, `
[paths]
source_dir = "/data/sourcedata"
raw_dir = "/data/rawdata"

[logging]
format = "logfmt"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected fallback to console, got %q", cfg.Logging.Format)
	}
}

func TestValidateRequiresDefaceBinaryWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Deface.Enabled = true
	cfg.Deface.Binary = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "deface.binary") {
		t.Fatalf("expected deface.binary error, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
