package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"rawbids/internal/config"
	"rawbids/internal/logging"
	"rawbids/internal/queue"
	"rawbids/internal/stage"
)

type fakeStage struct {
	name string

	mu      sync.Mutex
	calls   map[string]int
	failFor map[string]string
}

func newFakeStage(name string) *fakeStage {
	return &fakeStage{name: name, calls: make(map[string]int), failFor: make(map[string]string)}
}

func (f *fakeStage) Prepare(ctx context.Context, item *queue.Item) error { return nil }

func (f *fakeStage) Execute(ctx context.Context, item *queue.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[item.SubjectID]++
	if msg, ok := f.failFor[item.SubjectID]; ok {
		return errors.New(msg)
	}
	return nil
}

func (f *fakeStage) HealthCheck(ctx context.Context) stage.Health { return stage.Healthy(f.name) }

func (f *fakeStage) callCount(subjectID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[subjectID]
}

func newTestManager(t *testing.T) (*Manager, *queue.Store, *config.Config, *fakeStage, *fakeStage, *fakeStage, *fakeStage) {
	t.Helper()
	root := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.SourceDir = filepath.Join(root, "sourcedata")
	cfg.Paths.RawDir = filepath.Join(root, "rawdata")
	cfg.Paths.DerivativesDir = filepath.Join(root, "derivatives")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.QueueDBPath = filepath.Join(root, "queue.db")
	for _, dir := range []string{cfg.Paths.SourceDir, cfg.Paths.RawDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	store, err := queue.Open(cfg.Paths.QueueDBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	validator := newFakeStage("validate")
	converter := newFakeStage("convert")
	organizer := newFakeStage("organize")
	linker := newFakeStage("link")
	manager := NewManagerWithHandlers(cfg, store, logging.NewNop(), validator, converter, organizer, linker)
	return manager, store, cfg, validator, converter, organizer, linker
}

func seedSourceSession(t *testing.T, sourceDir, subjectID, sessionDir string) {
	t.Helper()
	dicomDir := filepath.Join(sourceDir, subjectID, sessionDir, "DICOM")
	if err := os.MkdirAll(dicomDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dicomDir, "001.dcm"), []byte("dcm"), 0o644); err != nil {
		t.Fatalf("seed dicom: %v", err)
	}
}

func TestRunProcessesDiscoveredSessions(t *testing.T) {
	manager, store, cfg, validator, converter, organizer, linker := newTestManager(t)
	seedSourceSession(t, cfg.Paths.SourceDir, "ER0009", "day2_movies")

	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Discovered != 1 || summary.Enqueued != 1 || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	item, err := store.FindSession(context.Background(), "ER0009", "day2")
	if err != nil || item == nil {
		t.Fatalf("FindSession: %v %v", item, err)
	}
	if item.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}
	for _, fake := range []*fakeStage{validator, converter, organizer, linker} {
		if fake.callCount("ER0009") != 1 {
			t.Fatalf("stage %s ran %d times", fake.name, fake.callCount("ER0009"))
		}
	}
}

func TestRunRecordsFailureAndContinues(t *testing.T) {
	manager, store, cfg, _, converter, organizer, _ := newTestManager(t)
	seedSourceSession(t, cfg.Paths.SourceDir, "ER0009", "day2_movies")
	seedSourceSession(t, cfg.Paths.SourceDir, "ER0010", "day3_scenarios")
	converter.failFor["ER0009"] = "dcm2niix exploded"

	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("expected one failure detail, got %v", summary.Failures)
	}

	failed, err := store.FindSession(context.Background(), "ER0009", "day2")
	if err != nil || failed == nil {
		t.Fatalf("FindSession: %v %v", failed, err)
	}
	if failed.Status != queue.StatusFailed || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failed item %+v", failed)
	}
	if organizer.callCount("ER0009") != 0 {
		t.Fatal("organize should not run after a convert failure")
	}
	if organizer.callCount("ER0010") != 1 {
		t.Fatal("healthy session should still be organized")
	}
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	manager, _, cfg, validator, _, _, _ := newTestManager(t)
	seedSourceSession(t, cfg.Paths.SourceDir, "ER0009", "day2_movies")

	if _, err := manager.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Enqueued != 0 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if validator.callCount("ER0009") != 1 {
		t.Fatalf("validation reran: %d calls", validator.callCount("ER0009"))
	}
}

func TestRunRetriesAfterFailureReset(t *testing.T) {
	manager, store, cfg, _, converter, _, _ := newTestManager(t)
	seedSourceSession(t, cfg.Paths.SourceDir, "ER0009", "day2_movies")
	converter.failFor["ER0009"] = "transient scanner export issue"

	if _, err := manager.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	delete(converter.failFor, "ER0009")
	if _, err := store.RetryFailed(context.Background()); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestRunWithWorkerPool(t *testing.T) {
	manager, _, cfg, _, _, _, linker := newTestManager(t)
	cfg.Workflow.Workers = 3
	for _, id := range []string{"ER0009", "ER0010", "ER0011", "ER0012"} {
		seedSourceSession(t, cfg.Paths.SourceDir, id, "day2_movies")
	}

	summary, err := manager.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Completed != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for _, id := range []string{"ER0009", "ER0010", "ER0011", "ER0012"} {
		if linker.callCount(id) != 1 {
			t.Fatalf("linker ran %d times for %s", linker.callCount(id), id)
		}
	}
}

func TestManagerHealth(t *testing.T) {
	manager, _, _, _, _, _, _ := newTestManager(t)
	checks := manager.Health(context.Background())
	if len(checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(checks))
	}
	for _, check := range checks {
		if !check.Ready {
			t.Fatalf("unexpected unhealthy check %+v", check)
		}
	}
}
