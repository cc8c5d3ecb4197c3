package bids

import (
	"fmt"
	"strings"
)

// Session pairs a visit day with the stimulus task presented on it.
type Session struct {
	Day  string
	Task string
}

// Known stimulus tasks. "rest" also appears as a task entity but never names
// a session directory.
const (
	TaskMovies    = "movies"
	TaskScenarios = "scenarios"
	TaskRest      = "rest"
)

// ParseSessionDir splits a source session directory name of the form
// day2_movies into its day label and task.
func ParseSessionDir(name string) (Session, error) {
	day, task, ok := strings.Cut(name, "_")
	if !ok {
		return Session{}, fmt.Errorf("session directory %q missing task component", name)
	}
	if !strings.HasPrefix(day, "day") || len(day) != 4 {
		return Session{}, fmt.Errorf("session directory %q has malformed day label %q", name, day)
	}
	switch task {
	case TaskMovies, TaskScenarios:
	default:
		return Session{}, fmt.Errorf("session directory %q has unknown task %q", name, task)
	}
	return Session{Day: day, Task: task}, nil
}

// NormalizeSessionLabel maps the historical spellings of a session label to
// the canonical day form: "ses-day2", "day2", and "2" all become "day2".
func NormalizeSessionLabel(raw string) (string, error) {
	label := strings.TrimSpace(raw)
	label = strings.TrimPrefix(label, "ses-")
	if !strings.HasPrefix(label, "day") {
		label = "day" + label
	}
	if len(label) != 4 || label[3] < '0' || label[3] > '9' {
		return "", fmt.Errorf("unrecognized session label %q", raw)
	}
	return label, nil
}
