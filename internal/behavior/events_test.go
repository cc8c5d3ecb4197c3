package behavior

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTaskLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.csv")
	body := "type,timefromstart,stimdescrip,stimtype\n" + strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write task log: %v", err)
	}
	return path
}

func TestBuildEventsExtractsMovieTrials(t *testing.T) {
	path := writeTaskLog(t, []string{
		"MovieStimOnset,10.00,amusement_clip04.mp4,None",
		"MovieStimOffset,20.50,None,None",
		"JudgeOnset,21.00,None,None",
		"JudgeResponse,22.10,1.10,1correct",
		"JudgeOffset,23.00,None,None",
		"EmoSelOnset,24.00,None,None",
		"EmoSelOffset,27.25,amusement,None",
	})

	events, err := BuildEvents(path, "movies", "day2", "ER0500")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}

	movie := events[0]
	if movie.TrialType != "movie" || movie.Onset != 10.0 || movie.Duration != 10.5 {
		t.Fatalf("unexpected movie event %+v", movie)
	}
	if movie.StimInfo != "amusement_clip04.mp4" || movie.Emotion != "amusement" {
		t.Fatalf("expected emotion from stimulus name, got %+v", movie)
	}

	judge := events[1]
	if judge.Response != "1" || judge.Accuracy != "correct" || judge.ResponseTime != "1.10" {
		t.Fatalf("unexpected judge event %+v", judge)
	}

	emoSel := events[2]
	if emoSel.TrialType != "emotion" || emoSel.Response != "amusement" || emoSel.ResponseTime != "3.25" {
		t.Fatalf("unexpected emotion event %+v", emoSel)
	}
}

func TestBuildEventsSortsByOnset(t *testing.T) {
	path := writeTaskLog(t, []string{
		"JudgeOnset,30.00,None,None",
		"JudgeOffset,31.00,None,None",
		"MovieStimOnset,10.00,fear_clip01.mp4,None",
		"MovieStimOffset,20.00,None,None",
	})
	events, err := BuildEvents(path, "movies", "day2", "ER0500")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(events) != 2 || events[0].TrialType != "movie" || events[1].TrialType != "judge" {
		t.Fatalf("expected onset order, got %+v", events)
	}
}

func TestBuildEventsAppliesWashPatch(t *testing.T) {
	lines := []string{
		"WashStimOnset,40.00,wash_blue.png,None",
		"WashStimOffset,41.00,None,None",
		"movieblockEnd,50.00,None,None",
	}

	patched, err := BuildEvents(writeTaskLog(t, lines), "movies", "day2", "ER0009")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(patched) != 1 || patched[0].Duration != 10.0 {
		t.Fatalf("expected patched wash duration 10.0, got %+v", patched)
	}

	unpatched, err := BuildEvents(writeTaskLog(t, lines), "movies", "day2", "ER0500")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(unpatched) != 1 || unpatched[0].Duration != 1.0 {
		t.Fatalf("expected unpatched wash duration 1.0, got %+v", unpatched)
	}

	// Rescanned subjects keep the normal offset on day3.
	day3, err := BuildEvents(writeTaskLog(t, lines), "movies", "day3", "ER0046")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(day3) != 1 || day3[0].Duration != 1.0 {
		t.Fatalf("expected day3 wash duration 1.0 for ER0046, got %+v", day3)
	}
}

func TestBuildEventsUsesScenarioMarkers(t *testing.T) {
	path := writeTaskLog(t, []string{
		"VigOnset,5.00,calmness_vig12.txt,None",
		"VigOffset,15.00,None,None",
	})
	events, err := BuildEvents(path, "scenarios", "day3", "ER0500")
	if err != nil {
		t.Fatalf("BuildEvents: %v", err)
	}
	if len(events) != 1 || events[0].TrialType != "scenario" || events[0].Emotion != "calmness" {
		t.Fatalf("unexpected scenario events %+v", events)
	}
}

func TestWriteEventsTSV(t *testing.T) {
	events := []Event{{
		Onset: 10, Duration: 10.5, TrialType: "movie",
		StimInfo: "amusement_clip04.mp4", Response: "n/a",
		ResponseTime: "n/a", Accuracy: "n/a", Emotion: "amusement",
	}}
	path := filepath.Join(t.TempDir(), "events.tsv")
	if err := WriteEventsTSV(events, path); err != nil {
		t.Fatalf("WriteEventsTSV: %v", err)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read tsv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", body)
	}
	if lines[0] != "onset\tduration\ttrial_type\tstim_info\tresponse\tresponse_time\taccuracy\temotion" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "10.00\t10.50\tmovie\t") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWriteEventsJSONAddsTaskLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	if err := WriteEventsJSON("movies", path); err != nil {
		t.Fatalf("WriteEventsJSON: %v", err)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var doc map[string]struct {
		Levels map[string]string `json:"Levels"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if _, ok := doc["trial_type"].Levels["movie"]; !ok {
		t.Fatalf("expected movie trial level, got %v", doc["trial_type"].Levels)
	}
	if _, ok := doc["trial_type"].Levels["scenario"]; ok {
		t.Fatal("did not expect scenario level for movies task")
	}
}
