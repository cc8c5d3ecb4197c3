package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rawbids/internal/config"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/sourcedata"
)

func newTestValidator(t *testing.T) (*Validator, *config.Config) {
	t.Helper()
	root := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.SourceDir = filepath.Join(root, "sourcedata")
	cfg.Paths.RawDir = filepath.Join(root, "rawdata")
	if err := os.MkdirAll(cfg.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return NewValidator(cfg, logging.NewNop()), cfg
}

func seedFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestValidatorBuildsManifest(t *testing.T) {
	validator, cfg := newTestValidator(t)
	sessionPath := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies")
	seedFile(t, filepath.Join(sessionPath, "DICOM", "001.dcm"), "dcm")
	seedFile(t, filepath.Join(sessionPath, "Scanner_behav",
		"emorep_scannermovieData_sub-ER0009_ses-day2_run-1_04082022.csv"), "type,timefromstart\n")
	seedFile(t, filepath.Join(sessionPath, "Scanner_physio", "ER0009_physio_day2_run1.acq"), "acq")

	item := &queue.Item{
		SubjectID:    "ER0009",
		SessionLabel: "day2",
		SessionTask:  "movies",
		SourcePath:   sessionPath,
		Status:       queue.StatusValidating,
	}
	if err := validator.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	manifest, err := sourcedata.DecodeManifest(item.ManifestJSON)
	if err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if !manifest.HasImaging() {
		t.Fatal("expected imaging data")
	}
	if len(manifest.Behavioral) != 1 || manifest.Behavioral[0].Task != "movies" || manifest.Behavioral[0].Run != 1 {
		t.Fatalf("unexpected behavioral files %+v", manifest.Behavioral)
	}
	if len(manifest.Physio) != 1 || manifest.Physio[0].Run != 1 {
		t.Fatalf("unexpected physio files %+v", manifest.Physio)
	}
}

func TestValidatorFailsEmptySession(t *testing.T) {
	validator, cfg := newTestValidator(t)
	sessionPath := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies")
	if err := os.MkdirAll(sessionPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	item := &queue.Item{
		SubjectID:    "ER0009",
		SessionLabel: "day2",
		SessionTask:  "movies",
		SourcePath:   sessionPath,
	}
	err := validator.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected validation failure for empty session")
	}
	if !strings.Contains(err.Error(), "Session layout invalid") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatorKeepsDiagnosticsForUnknownFiles(t *testing.T) {
	validator, cfg := newTestValidator(t)
	sessionPath := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies")
	seedFile(t, filepath.Join(sessionPath, "DICOM", "001.dcm"), "dcm")
	seedFile(t, filepath.Join(sessionPath, "Scanner_behav", "notes.txt"), "scratch")

	item := &queue.Item{
		SubjectID:    "ER0009",
		SessionLabel: "day2",
		SessionTask:  "movies",
		SourcePath:   sessionPath,
	}
	if err := validator.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	diags := item.Diagnostics()
	found := false
	for _, d := range diags {
		if strings.Contains(d, "notes.txt") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected diagnostic for notes.txt, got %v", diags)
	}
}

func TestValidatorHealthCheck(t *testing.T) {
	validator, cfg := newTestValidator(t)
	if health := validator.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy, got %+v", health)
	}
	cfg.Paths.SourceDir = filepath.Join(cfg.Paths.SourceDir, "missing")
	if health := validator.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy for missing source dir")
	}
}
