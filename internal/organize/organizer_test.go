package organize

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

type fakeAcq struct {
	acqPaths []string
	txtPaths []string
}

func (f *fakeAcq) Convert(_ context.Context, acqPath, txtPath string) error {
	f.acqPaths = append(f.acqPaths, acqPath)
	f.txtPaths = append(f.txtPaths, txtPath)
	return os.WriteFile(txtPath, []byte("exported"), 0o644)
}

func newTestConfig(t *testing.T) *config.Config {
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
	return cfg
}

func writeFixture(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const taskLogBody = "type,timefromstart,stimdescrip,stimtype\n" +
	"MovieStimOnset,10.00,amusement_clip04.mp4,None\n" +
	"MovieStimOffset,20.50,None,None\n"

const ratingsBody = "type,timefromstart,stimdescrip,stimtype\n" +
	"RatingOnset,5.00,FEAR,None\n" +
	"RatingResponse,6.00,None,2\n"

func newItem(t *testing.T, manifest sourcedata.Manifest) *queue.Item {
	t.Helper()
	encoded, err := manifest.Encode()
	if err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	return &queue.Item{
		SubjectID:    manifest.SubjectID,
		SessionLabel: manifest.SessionLabel,
		SessionTask:  manifest.SessionTask,
		ManifestJSON: encoded,
	}
}

func TestOrganizerPlacesEvents(t *testing.T) {
	cfg := newTestConfig(t)
	taskLog := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_behav", "task.csv")
	writeFixture(t, taskLog, taskLogBody)

	item := newItem(t, sourcedata.Manifest{
		SubjectID: "ER0009", SessionLabel: "day2", SessionTask: "movies",
		Behavioral: []sourcedata.BehavioralFile{
			{Path: taskLog, Kind: sourcedata.KindTaskEvents, Task: "movies", Run: 1},
		},
	})

	organizer := NewOrganizerWithDependencies(cfg, &fakeAcq{}, logging.NewNop())
	if err := organizer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	funcDir := filepath.Join(cfg.Paths.RawDir, "sub-ER0009", "ses-day2", "func")
	tsv := filepath.Join(funcDir, "sub-ER0009_ses-day2_task-movies_run-01_events.tsv")
	body, err := os.ReadFile(tsv)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if !strings.HasPrefix(string(body), "onset\tduration\t") {
		t.Fatalf("unexpected events content %q", body)
	}
	if _, err := os.Stat(strings.TrimSuffix(tsv, ".tsv") + ".json"); err != nil {
		t.Fatalf("missing events sidecar: %v", err)
	}
	for _, name := range []string{"dataset_description.json", "README", ".bidsignore"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.RawDir, name)); err != nil {
			t.Errorf("missing dataset file %s: %v", name, err)
		}
	}
}

func TestOrganizerPlacesRestRatings(t *testing.T) {
	cfg := newTestConfig(t)
	ratings := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_behav", "ratings.csv")
	writeFixture(t, ratings, ratingsBody)

	item := newItem(t, sourcedata.Manifest{
		SubjectID: "ER0009", SessionLabel: "day2", SessionTask: "movies",
		Behavioral: []sourcedata.BehavioralFile{
			{Path: ratings, Kind: sourcedata.KindRestRatings, Date: "2022-04-19"},
		},
	})

	organizer := NewOrganizerWithDependencies(cfg, &fakeAcq{}, logging.NewNop())
	if err := organizer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	dest := filepath.Join(cfg.Paths.RawDir, "sub-ER0009", "ses-day2", "beh",
		"sub-ER0009_ses-day2_rest-ratings_2022-04-19.tsv")
	body, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read ratings: %v", err)
	}
	if !strings.HasPrefix(string(body), "prompt\tresp_int\tresp_alpha") {
		t.Fatalf("unexpected ratings content %q", body)
	}
}

func TestOrganizerPlacesPhysio(t *testing.T) {
	cfg := newTestConfig(t)
	acqFile := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_physio", "physio.acq")
	writeFixture(t, acqFile, "biopac payload")

	item := newItem(t, sourcedata.Manifest{
		SubjectID: "ER0009", SessionLabel: "day2", SessionTask: "movies",
		Physio: []sourcedata.PhysioFile{
			{Path: acqFile, Task: "movies", Run: 2},
		},
	})

	client := &fakeAcq{}
	organizer := NewOrganizerWithDependencies(cfg, client, logging.NewNop())
	if err := organizer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	dest := filepath.Join(cfg.Paths.RawDir, "sub-ER0009", "ses-day2", "phys",
		"sub-ER0009_ses-day2_task-movies_run-02_recording-biopack_physio.acq")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("missing physio copy: %v", err)
	}
	if len(client.txtPaths) != 1 || client.txtPaths[0] != strings.TrimSuffix(dest, ".acq")+".txt" {
		t.Fatalf("unexpected acq2txt calls %v", client.txtPaths)
	}
}

func TestOrganizerIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	acqFile := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_physio", "physio.acq")
	writeFixture(t, acqFile, "biopac payload")

	item := newItem(t, sourcedata.Manifest{
		SubjectID: "ER0009", SessionLabel: "day2", SessionTask: "movies",
		Physio: []sourcedata.PhysioFile{
			{Path: acqFile, Task: "rest", Run: 1},
		},
	})

	client := &fakeAcq{}
	organizer := NewOrganizerWithDependencies(cfg, client, logging.NewNop())
	for i := 0; i < 2; i++ {
		if err := organizer.Execute(context.Background(), item); err != nil {
			t.Fatalf("Execute pass %d: %v", i, err)
		}
	}
	if len(client.acqPaths) != 1 {
		t.Fatalf("expected one acq2txt call across reruns, got %d", len(client.acqPaths))
	}
}

func TestOrganizerCollisionFails(t *testing.T) {
	cfg := newTestConfig(t)
	first := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_physio", "a.acq")
	second := filepath.Join(cfg.Paths.SourceDir, "ER0009", "day2_movies", "Scanner_physio", "b.acq")
	writeFixture(t, first, "one")
	writeFixture(t, second, "two")

	item := newItem(t, sourcedata.Manifest{
		SubjectID: "ER0009", SessionLabel: "day2", SessionTask: "movies",
		Physio: []sourcedata.PhysioFile{
			{Path: first, Task: "movies", Run: 1},
			{Path: second, Task: "movies", Run: 1},
		},
	})

	organizer := NewOrganizerWithDependencies(cfg, &fakeAcq{}, logging.NewNop())
	err := organizer.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !strings.Contains(err.Error(), "both map to") {
		t.Fatalf("unexpected error: %v", err)
	}
}
