package fmap

import (
	"encoding/json"
	"fmt"
	"os"
)

// Assignment lists run designators for each fieldmap. A functional run
// belongs to a fieldmap when any designator is a substring of its filename,
// so both "run-01" and "task-movies_run-01" work as keys.
type Assignment struct {
	Fmap1 []string `json:"fmap1"`
	Fmap2 []string `json:"fmap2"`
}

// Overrides maps subject ID to session label to an explicit assignment.
type Overrides map[string]map[string]Assignment

// LoadOverrides reads the override table. A missing file means no overrides;
// a present but malformed file is an error, since silently ignoring it would
// re-enable the default policy for subjects that opted out of it.
func LoadOverrides(path string) (Overrides, error) {
	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Overrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fieldmap overrides %s: %w", path, err)
	}
	var overrides Overrides
	if err := json.Unmarshal(payload, &overrides); err != nil {
		return nil, fmt.Errorf("parse fieldmap overrides %s: %w", path, err)
	}
	return overrides, nil
}

// Lookup returns the assignment for a subject/session, if any.
func (o Overrides) Lookup(subjectID, sessionLabel string) (Assignment, bool) {
	sessions, ok := o[subjectID]
	if !ok {
		return Assignment{}, false
	}
	assignment, ok := sessions[sessionLabel]
	return assignment, ok
}
